// Package model defines the data structures used throughout the application.
//
// Persisted entities (User, Challenge, Submission, Score) mirror the SQLite
// tables one to one. LeaderboardEntry is derived and never stored.
package model

import "time"

// Role is the coarse access level of an account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents an account. Accounts are provisioned by admins (or by the
// root-admin bootstrap); there is no self-registration.
//
// PasswordHash carries the bcrypt hash and is never serialised. AvatarFilename
// is a name inside the avatars bucket, nil when the user has no avatar.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	AvatarFilename *string   `json:"avatar_filename"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsAdmin is shorthand for u.Role == RoleAdmin.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserUpdate carries a partial profile change. Nil fields are left untouched.
// Password is plaintext here; the service hashes it before it reaches the
// repository as PasswordHash.
type UserUpdate struct {
	Username     *string
	Email        *string
	Password     *string
	PasswordHash *string
	Role         *Role
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.Password == nil &&
		u.PasswordHash == nil && u.Role == nil
}
