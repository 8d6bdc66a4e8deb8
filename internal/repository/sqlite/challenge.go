package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/repository"
)

var _ repository.ChallengeRepository = (*DB)(nil)

const challengeColumns = `id, title, description, created_at, deadline, created_by_admin_id, updated_at`

func scanChallenge(s rowScanner) (*model.Challenge, error) {
	var c model.Challenge
	if err := s.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.CreatedAt,
		&c.Deadline,
		&c.CreatedByAdminID,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateChallenge inserts c. A zero CreatedAt defaults to now; an explicit
// value is kept so admins can backdate a challenge.
func (db *DB) CreateChallenge(ctx context.Context, c *model.Challenge) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.Deadline = c.Deadline.UTC()
	c.UpdatedAt = now

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO challenges (title, description, created_at, deadline, created_by_admin_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.Title,
		c.Description,
		c.CreatedAt,
		c.Deadline,
		c.CreatedByAdminID,
		c.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", c.CreatedByAdminID)
		}
		return fmt.Errorf("sqlite: inserting challenge: %w", err)
	}

	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading challenge id: %w", err)
	}
	return nil
}

func (db *DB) GetChallengeByID(ctx context.Context, id int64) (*model.Challenge, error) {
	c, err := scanChallenge(db.conn.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("challenge", id)
		}
		return nil, fmt.Errorf("sqlite: getting challenge %d: %w", id, err)
	}
	return c, nil
}

// ListChallenges returns challenges newest first.
func (db *DB) ListChallenges(ctx context.Context) ([]model.Challenge, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing challenges: %w", err)
	}
	defer rows.Close()

	challenges := []model.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning challenge row: %w", err)
		}
		challenges = append(challenges, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating challenges: %w", err)
	}
	return challenges, nil
}

func (db *DB) UpdateChallenge(ctx context.Context, id int64, upd model.ChallengeUpdate) (*model.Challenge, error) {
	var (
		sets []string
		args []any
	)
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.CreatedAt != nil {
		sets = append(sets, "created_at = ?")
		args = append(args, upd.CreatedAt.UTC())
	}
	if upd.Deadline != nil {
		sets = append(sets, "deadline = ?")
		args = append(args, upd.Deadline.UTC())
	}
	if len(sets) == 0 {
		return db.GetChallengeByID(ctx, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE challenges SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating challenge %d: %w", id, err)
	}
	if err := requireAffected(res, "challenge", id); err != nil {
		return nil, err
	}
	return db.GetChallengeByID(ctx, id)
}

// DeleteChallenge removes the challenge row; submissions and scores cascade.
// Callers that need the submission filenames must list them first.
func (db *DB) DeleteChallenge(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM challenges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting challenge %d: %w", id, err)
	}
	return requireAffected(res, "challenge", id)
}
