// Package repository declares the storage interfaces the service layer
// depends on. The sqlite subpackage is the only implementation.
package repository

import (
	"context"

	"github.com/sakif/rankboard/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error)
	SetAvatar(ctx context.Context, id int64, filename *string) error
	DeleteUser(ctx context.Context, id int64) error
	CountAdmins(ctx context.Context) (int, error)
}

type ChallengeRepository interface {
	CreateChallenge(ctx context.Context, c *model.Challenge) error
	GetChallengeByID(ctx context.Context, id int64) (*model.Challenge, error)
	ListChallenges(ctx context.Context) ([]model.Challenge, error)
	UpdateChallenge(ctx context.Context, id int64, upd model.ChallengeUpdate) (*model.Challenge, error)
	DeleteChallenge(ctx context.Context, id int64) error
}

// SubmissionRepository stores at most one submission per (challenge, user).
// InsertSubmission returns apperror.ErrConflict when that pair already exists.
type SubmissionRepository interface {
	InsertSubmission(ctx context.Context, s *model.Submission) error
	UpdateSubmissionFile(ctx context.Context, id int64, filename string) (*model.Submission, error)
	GetSubmissionByID(ctx context.Context, id int64) (*model.Submission, error)
	GetSubmissionForChallengeAndUser(ctx context.Context, challengeID, userID int64) (*model.Submission, error)
	ListSubmissionsForChallenge(ctx context.Context, challengeID int64) ([]model.SubmissionWithUser, error)
	ListSubmissionFilenames(ctx context.Context, challengeID int64) ([]string, error)
	ListSubmissionFilenamesByUser(ctx context.Context, userID int64) ([]string, error)
	DeleteSubmission(ctx context.Context, id int64) error
}

// ScoreRepository stores at most one score per (submission, admin).
type ScoreRepository interface {
	UpsertScore(ctx context.Context, s *model.Score) error
	ListScoresForSubmission(ctx context.Context, submissionID int64) ([]model.ScoreWithAdmin, error)
}

// LeaderboardRepository returns the raw joined rows the leaderboard is
// folded from.
type LeaderboardRepository interface {
	LeaderboardRows(ctx context.Context, challengeID int64) ([]model.LeaderboardRow, error)
}

// BlobIndex lists every filename the database still references, per bucket.
// The maintenance sweep diffs it against the blob store.
type BlobIndex interface {
	ReferencedAvatars(ctx context.Context) ([]string, error)
	ReferencedSubmissions(ctx context.Context) ([]string, error)
}
