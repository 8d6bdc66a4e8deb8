package model

// LeaderboardRow is one row of the users × submissions × scores × admins join.
// Everything past the user columns is nullable: a user without a submission
// yields a single row with SubmissionID == nil, a submission without scores
// yields a single row with ScoreID == nil.
type LeaderboardRow struct {
	UserID         int64
	Username       string
	AvatarFilename *string
	SubmissionID   *int64
	ScoreID        *int64
	AdminID        *int64
	AdminUsername  *string
	Score          *int
	Feedback       *string
}

// LeaderboardEntry is the derived per-user ranking record.
type LeaderboardEntry struct {
	Rank           int          `json:"rank"`
	UserID         int64        `json:"user_id"`
	Username       string       `json:"username"`
	AvatarFilename *string      `json:"avatar_filename"`
	SubmissionID   *int64       `json:"submission_id"`
	Scores         []AdminScore `json:"scores"`
	TotalScore     int          `json:"total_score"`
}
