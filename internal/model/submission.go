package model

import "time"

// Submission is a participant's PDF for one challenge. At most one row exists
// per (ChallengeID, UserID); resubmitting replaces Filename and SubmittedAt.
type Submission struct {
	ID          int64     `json:"id"`
	ChallengeID int64     `json:"challenge_id"`
	UserID      int64     `json:"user_id"`
	Filename    string    `json:"filename"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SubmissionWithUser is a submission joined with its submitter, used for the
// admin view of a challenge.
type SubmissionWithUser struct {
	Submission
	Username       string  `json:"username"`
	AvatarFilename *string `json:"avatar_filename"`
}
