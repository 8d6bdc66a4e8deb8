package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/repository"
)

var _ repository.SubmissionRepository = (*DB)(nil)

const submissionColumns = `id, challenge_id, user_id, filename, submitted_at, updated_at`

func scanSubmission(s rowScanner) (*model.Submission, error) {
	var sub model.Submission
	if err := s.Scan(
		&sub.ID,
		&sub.ChallengeID,
		&sub.UserID,
		&sub.Filename,
		&sub.SubmittedAt,
		&sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &sub, nil
}

// InsertSubmission creates the (challenge, user) submission row.
//
// If another request inserted the same pair first, the UNIQUE constraint
// fires and apperror.ErrConflict is returned so the caller can fall back to
// UpdateSubmissionFile. A missing challenge or user yields ErrNotFound.
func (db *DB) InsertSubmission(ctx context.Context, s *model.Submission) error {
	now := time.Now().UTC()
	s.SubmittedAt = now
	s.UpdatedAt = now

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO submissions (challenge_id, user_id, filename, submitted_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.ChallengeID,
		s.UserID,
		s.Filename,
		s.SubmittedAt,
		s.UpdatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.Conflict("submission already exists for this challenge")
		case isForeignKeyViolation(err):
			return apperror.NotFound("challenge", s.ChallengeID)
		}
		return fmt.Errorf("sqlite: inserting submission: %w", err)
	}

	s.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading submission id: %w", err)
	}
	return nil
}

// UpdateSubmissionFile points an existing submission at a new file and
// refreshes both submitted_at and updated_at.
func (db *DB) UpdateSubmissionFile(ctx context.Context, id int64, filename string) (*model.Submission, error) {
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE submissions SET filename = ?, submitted_at = ?, updated_at = ? WHERE id = ?`,
		filename, now, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating submission %d: %w", id, err)
	}
	if err := requireAffected(res, "submission", id); err != nil {
		return nil, err
	}
	return db.GetSubmissionByID(ctx, id)
}

func (db *DB) GetSubmissionByID(ctx context.Context, id int64) (*model.Submission, error) {
	s, err := scanSubmission(db.conn.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("submission", id)
		}
		return nil, fmt.Errorf("sqlite: getting submission %d: %w", id, err)
	}
	return s, nil
}

// GetSubmissionForChallengeAndUser returns (nil, nil) when the user has not
// submitted. Absence is a normal answer here, not an error.
func (db *DB) GetSubmissionForChallengeAndUser(ctx context.Context, challengeID, userID int64) (*model.Submission, error) {
	s, err := scanSubmission(db.conn.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE challenge_id = ? AND user_id = ?`,
		challengeID, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting submission for challenge %d user %d: %w", challengeID, userID, err)
	}
	return s, nil
}

// ListSubmissionsForChallenge returns every submission with its submitter,
// most recent first.
func (db *DB) ListSubmissionsForChallenge(ctx context.Context, challengeID int64) ([]model.SubmissionWithUser, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT s.id, s.challenge_id, s.user_id, s.filename, s.submitted_at, s.updated_at,
		        u.username, u.avatar_filename
		 FROM submissions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.challenge_id = ?
		 ORDER BY s.submitted_at DESC, s.id DESC`,
		challengeID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing submissions for challenge %d: %w", challengeID, err)
	}
	defer rows.Close()

	subs := []model.SubmissionWithUser{}
	for rows.Next() {
		var (
			s      model.SubmissionWithUser
			avatar sql.NullString
		)
		if err := rows.Scan(
			&s.ID, &s.ChallengeID, &s.UserID, &s.Filename, &s.SubmittedAt, &s.UpdatedAt,
			&s.Username, &avatar,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning submission row: %w", err)
		}
		s.AvatarFilename = nullString(avatar)
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating submissions: %w", err)
	}
	return subs, nil
}

// ListSubmissionFilenames returns the stored filenames of every submission
// to a challenge. Used before the challenge is deleted.
func (db *DB) ListSubmissionFilenames(ctx context.Context, challengeID int64) ([]string, error) {
	return db.queryStrings(ctx,
		`SELECT filename FROM submissions WHERE challenge_id = ?`, challengeID)
}

// ListSubmissionFilenamesByUser returns the filenames that deleting userID
// orphans: their own submissions plus every submission to a challenge they
// created, since both cascade with the user row.
func (db *DB) ListSubmissionFilenamesByUser(ctx context.Context, userID int64) ([]string, error) {
	return db.queryStrings(ctx,
		`SELECT filename FROM submissions
		 WHERE user_id = ?
		    OR challenge_id IN (SELECT id FROM challenges WHERE created_by_admin_id = ?)`,
		userID, userID)
}

func (db *DB) DeleteSubmission(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting submission %d: %w", id, err)
	}
	return requireAffected(res, "submission", id)
}

func (db *DB) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying filenames: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite: scanning filename: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating filenames: %w", err)
	}
	return out, nil
}
