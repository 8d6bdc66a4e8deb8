package model

import "time"

// Score is one admin's mark for one submission. At most one row exists per
// (SubmissionID, AdminID); rescoring updates it in place.
type Score struct {
	ID           int64     `json:"id"`
	SubmissionID int64     `json:"submission_id"`
	AdminID      int64     `json:"admin_id"`
	Score        int       `json:"score"`
	Feedback     *string   `json:"feedback"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ScoreWithAdmin adds the scoring admin's display name.
type ScoreWithAdmin struct {
	Score
	AdminUsername string `json:"admin_username"`
}

// AdminScore is the compact per-admin view used by leaderboards and by a
// participant looking at their own marks.
type AdminScore struct {
	AdminID       int64   `json:"admin_id"`
	AdminUsername string  `json:"admin_username"`
	Score         int     `json:"score"`
	Feedback      *string `json:"feedback"`
}

// MyScores is what a participant sees for their own submission.
type MyScores struct {
	SubmissionID int64        `json:"submission_id"`
	Scores       []AdminScore `json:"scores"`
	TotalScore   int          `json:"total_score"`
}
