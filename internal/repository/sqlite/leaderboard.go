package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/repository"
)

var (
	_ repository.LeaderboardRepository = (*DB)(nil)
	_ repository.BlobIndex             = (*DB)(nil)
)

// LeaderboardRows returns one row per (participant, score) for a challenge.
//
// The roster is every role='user' account, whether or not they submitted.
// Joining the challenge row first means an unknown challenge id returns no
// rows at all instead of a roster with empty submissions.
//
// Rows are ordered by username, then by score creation, so folding them in
// order yields a deterministic per-user score list.
func (db *DB) LeaderboardRows(ctx context.Context, challengeID int64) ([]model.LeaderboardRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.username, u.avatar_filename,
		        s.id,
		        sc.id, sc.admin_id, a.username, sc.score, sc.feedback
		 FROM challenges c
		 JOIN users u ON u.role = 'user'
		 LEFT JOIN submissions s ON s.challenge_id = c.id AND s.user_id = u.id
		 LEFT JOIN scores sc ON sc.submission_id = s.id
		 LEFT JOIN users a ON a.id = sc.admin_id
		 WHERE c.id = ?
		 ORDER BY u.username ASC, u.id ASC, sc.created_at ASC, sc.id ASC`,
		challengeID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying leaderboard for challenge %d: %w", challengeID, err)
	}
	defer rows.Close()

	out := []model.LeaderboardRow{}
	for rows.Next() {
		var (
			r             model.LeaderboardRow
			avatar        sql.NullString
			submissionID  sql.NullInt64
			scoreID       sql.NullInt64
			adminID       sql.NullInt64
			adminUsername sql.NullString
			score         sql.NullInt64
			feedback      sql.NullString
		)
		if err := rows.Scan(
			&r.UserID, &r.Username, &avatar,
			&submissionID,
			&scoreID, &adminID, &adminUsername, &score, &feedback,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning leaderboard row: %w", err)
		}
		r.AvatarFilename = nullString(avatar)
		r.SubmissionID = nullInt64(submissionID)
		r.ScoreID = nullInt64(scoreID)
		r.AdminID = nullInt64(adminID)
		r.AdminUsername = nullString(adminUsername)
		r.Feedback = nullString(feedback)
		if score.Valid {
			v := int(score.Int64)
			r.Score = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating leaderboard rows: %w", err)
	}
	return out, nil
}

// ReferencedAvatars lists every avatar filename still attached to a user.
func (db *DB) ReferencedAvatars(ctx context.Context) ([]string, error) {
	return db.queryStrings(ctx,
		`SELECT avatar_filename FROM users WHERE avatar_filename IS NOT NULL`)
}

// ReferencedSubmissions lists every submission filename in the database.
func (db *DB) ReferencedSubmissions(ctx context.Context) ([]string, error) {
	return db.queryStrings(ctx, `SELECT filename FROM submissions`)
}

func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
