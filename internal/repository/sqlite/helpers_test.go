package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sakif/rankboard/internal/model"
)

// newTestDB returns a fresh in-memory database, closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(MemoryPath)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, username string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$04$notarealhashnotarealhashnotarealhashnotarealhashnot",
		Role:         role,
	}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create test user %q: %v", username, err)
	}
	return u
}

func createTestChallenge(t *testing.T, db *DB, adminID int64, title string) *model.Challenge {
	t.Helper()
	c := &model.Challenge{
		Title:            title,
		Description:      "solve it",
		Deadline:         time.Now().Add(24 * time.Hour),
		CreatedByAdminID: adminID,
	}
	if err := db.CreateChallenge(context.Background(), c); err != nil {
		t.Fatalf("failed to create test challenge: %v", err)
	}
	return c
}

func createTestSubmission(t *testing.T, db *DB, challengeID, userID int64, filename string) *model.Submission {
	t.Helper()
	s := &model.Submission{ChallengeID: challengeID, UserID: userID, Filename: filename}
	if err := db.InsertSubmission(context.Background(), s); err != nil {
		t.Fatalf("failed to create test submission: %v", err)
	}
	return s
}

func createTestScore(t *testing.T, db *DB, submissionID, adminID int64, score int) *model.Score {
	t.Helper()
	s := &model.Score{SubmissionID: submissionID, AdminID: adminID, Score: score}
	if err := db.UpsertScore(context.Background(), s); err != nil {
		t.Fatalf("failed to create test score: %v", err)
	}
	return s
}

func strPtr(s string) *string { return &s }
