package model

import "time"

// Challenge is a timed task created by an admin.
//
// Deadline is advisory: nothing in the submission path rejects late uploads.
// IsActive exists so clients can show whether the deadline has passed.
type Challenge struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"created_at"`
	Deadline         time.Time `json:"deadline"`
	CreatedByAdminID int64     `json:"created_by_admin_id"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsActive reports whether the deadline is still in the future at now.
func (c *Challenge) IsActive(now time.Time) bool {
	return c.Deadline.After(now)
}

// ChallengeUpdate is a partial update; nil fields are left untouched.
type ChallengeUpdate struct {
	Title       *string
	Description *string
	CreatedAt   *time.Time
	Deadline    *time.Time
}

// Empty reports whether the update changes nothing.
func (u ChallengeUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.CreatedAt == nil && u.Deadline == nil
}
