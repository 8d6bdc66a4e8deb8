package sqlite

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/model"
)

func TestInsertSubmission_OnePerChallengeAndUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := createTestUser(t, db, "root", model.RoleAdmin)
	user := createTestUser(t, db, "alice", model.RoleUser)
	c := createTestChallenge(t, db, admin.ID, "c")

	first := createTestSubmission(t, db, c.ID, user.ID, "first.pdf")
	if first.ID == 0 || first.SubmittedAt.IsZero() {
		t.Fatalf("InsertSubmission() did not fill ID/SubmittedAt: %+v", first)
	}

	err := db.InsertSubmission(ctx, &model.Submission{ChallengeID: c.ID, UserID: user.ID, Filename: "second.pdf"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second InsertSubmission() error = %v, want ErrConflict", err)
	}
}

func TestInsertSubmission_UnknownChallenge(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice", model.RoleUser)

	err := db.InsertSubmission(context.Background(), &model.Submission{ChallengeID: 404, UserID: user.ID, Filename: "x.pdf"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("InsertSubmission() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateSubmissionFile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := createTestUser(t, db, "root", model.RoleAdmin)
	user := createTestUser(t, db, "alice", model.RoleUser)
	c := createTestChallenge(t, db, admin.ID, "c")
	sub := createTestSubmission(t, db, c.ID, user.ID, "v1.pdf")

	got, err := db.UpdateSubmissionFile(ctx, sub.ID, "v2.pdf")
	if err != nil {
		t.Fatalf("UpdateSubmissionFile() error = %v", err)
	}
	if got.ID != sub.ID {
		t.Errorf("ID = %d, want %d (same row)", got.ID, sub.ID)
	}
	if got.Filename != "v2.pdf" {
		t.Errorf("Filename = %q, want v2.pdf", got.Filename)
	}
	if got.SubmittedAt.Before(sub.SubmittedAt) {
		t.Errorf("SubmittedAt went backwards: %v < %v", got.SubmittedAt, sub.SubmittedAt)
	}
}

func TestGetSubmissionForChallengeAndUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := createTestUser(t, db, "root", model.RoleAdmin)
	alice := createTestUser(t, db, "alice", model.RoleUser)
	bob := createTestUser(t, db, "bob", model.RoleUser)
	c := createTestChallenge(t, db, admin.ID, "c")
	sub := createTestSubmission(t, db, c.ID, alice.ID, "a.pdf")

	got, err := db.GetSubmissionForChallengeAndUser(ctx, c.ID, alice.ID)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if got == nil || got.ID != sub.ID {
		t.Errorf("got %+v, want submission %d", got, sub.ID)
	}

	got, err = db.GetSubmissionForChallengeAndUser(ctx, c.ID, bob.ID)
	if err != nil {
		t.Fatalf("error for absent submission = %v, want nil", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for a user who never submitted", got)
	}
}

func TestListSubmissionsForChallenge(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "root", model.RoleAdmin)
	alice := createTestUser(t, db, "alice", model.RoleUser)
	bob := createTestUser(t, db, "bob", model.RoleUser)
	c := createTestChallenge(t, db, admin.ID, "c")
	other := createTestChallenge(t, db, admin.ID, "other")
	createTestSubmission(t, db, c.ID, alice.ID, "a.pdf")
	createTestSubmission(t, db, c.ID, bob.ID, "b.pdf")
	createTestSubmission(t, db, other.ID, bob.ID, "b2.pdf")

	subs, err := db.ListSubmissionsForChallenge(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ListSubmissionsForChallenge() error = %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("len = %d, want 2", len(subs))
	}
	names := []string{subs[0].Username, subs[1].Username}
	sort.Strings(names)
	if names[0] != "alice" || names[1] != "bob" {
		t.Errorf("usernames = %v, want alice and bob", names)
	}
}

func TestListSubmissionFilenamesByUser_IncludesCreatedChallenges(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "judge", model.RoleAdmin)
	alice := createTestUser(t, db, "alice", model.RoleUser)
	bob := createTestUser(t, db, "bob", model.RoleUser)
	c := createTestChallenge(t, db, admin.ID, "c")
	createTestSubmission(t, db, c.ID, alice.ID, "a.pdf")
	createTestSubmission(t, db, c.ID, bob.ID, "b.pdf")

	aliceFiles, err := db.ListSubmissionFilenamesByUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(aliceFiles) != 1 || aliceFiles[0] != "a.pdf" {
		t.Errorf("alice files = %v, want [a.pdf]", aliceFiles)
	}

	adminFiles, err := db.ListSubmissionFilenamesByUser(context.Background(), admin.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(adminFiles) != 2 {
		t.Errorf("admin files = %v, want both submissions to the admin's challenge", adminFiles)
	}
}

func TestDeleteSubmission(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := createTestUser(t, db, "root", model.RoleAdmin)
	alice := createTestUser(t, db, "alice", model.RoleUser)
	c := createTestChallenge(t, db, admin.ID, "c")
	sub := createTestSubmission(t, db, c.ID, alice.ID, "a.pdf")
	createTestScore(t, db, sub.ID, admin.ID, 3)

	if err := db.DeleteSubmission(ctx, sub.ID); err != nil {
		t.Fatalf("DeleteSubmission() error = %v", err)
	}
	if err := db.DeleteSubmission(ctx, sub.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteSubmission() error = %v, want ErrNotFound", err)
	}
}
