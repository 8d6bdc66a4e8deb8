package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/repository"
)

var _ repository.ScoreRepository = (*DB)(nil)

// UpsertScore creates or replaces the (submission, admin) score in one
// statement, so two admins (or two tabs of the same admin) can never produce
// a duplicate row. On return s carries the row's id and timestamps; created_at
// is preserved across rescoring.
func (db *DB) UpsertScore(ctx context.Context, s *model.Score) error {
	now := time.Now().UTC()

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO scores (submission_id, admin_id, score, feedback, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (submission_id, admin_id) DO UPDATE SET
		     score      = excluded.score,
		     feedback   = excluded.feedback,
		     updated_at = excluded.updated_at
		 RETURNING id, created_at, updated_at`,
		s.SubmissionID,
		s.AdminID,
		s.Score,
		s.Feedback,
		now,
		now,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("submission", s.SubmissionID)
		}
		return fmt.Errorf("sqlite: upserting score for submission %d: %w", s.SubmissionID, err)
	}
	return nil
}

// ListScoresForSubmission returns each admin's score, earliest first.
func (db *DB) ListScoresForSubmission(ctx context.Context, submissionID int64) ([]model.ScoreWithAdmin, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT sc.id, sc.submission_id, sc.admin_id, sc.score, sc.feedback,
		        sc.created_at, sc.updated_at, u.username
		 FROM scores sc
		 JOIN users u ON u.id = sc.admin_id
		 WHERE sc.submission_id = ?
		 ORDER BY sc.created_at ASC, sc.id ASC`,
		submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing scores for submission %d: %w", submissionID, err)
	}
	defer rows.Close()

	scores := []model.ScoreWithAdmin{}
	for rows.Next() {
		var (
			s        model.ScoreWithAdmin
			feedback sql.NullString
		)
		if err := rows.Scan(
			&s.ID, &s.SubmissionID, &s.AdminID, &s.Score.Score, &feedback,
			&s.CreatedAt, &s.UpdatedAt, &s.AdminUsername,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning score row: %w", err)
		}
		s.Feedback = nullString(feedback)
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating scores: %w", err)
	}
	return scores, nil
}
