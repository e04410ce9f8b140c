package models

import (
	"errors"
	"time"
)

// Store-level errors returned by account repositories when a unique constraint rejects a write.
var (
	ErrDuplicateAccount = errors.New("account already exists")
	ErrDuplicateEmail   = errors.New("email already in use")
)

// Account represents the single account record in the database.
type Account struct {
	ID             int64     `db:"id"`                     // Primary key
	Username       string    `db:"username"`               // Unique, immutable after creation
	PasswordHash   string    `db:"password_hash" json:"-"` // bcrypt hash, never serialized
	Email          *string   `db:"email"`                  // Unique when present
	FirstName      *string   `db:"first_name"`             // Optional
	LastName       *string   `db:"last_name"`              // Optional
	ProfilePicture *string   `db:"profile_picture"`        // Base64 image or reference
	IsAdmin        bool      `db:"is_admin"`               // Reserved, gates nothing
	CreatedAt      time.Time `db:"created_at"`             // Creation timestamp, UTC
}

// RegisterInput carries the registration fields after HTTP mapping.
// Optional fields are nil when absent or blank.
type RegisterInput struct {
	Username  string
	Password  string
	Email     *string
	FirstName *string
	LastName  *string
}

// ProfileUpdate replaces the mutable profile fields of an account.
// A nil field clears the stored value.
type ProfileUpdate struct {
	Email          *string
	FirstName      *string
	LastName       *string
	ProfilePicture *string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresIn int64 // seconds
	Account   *Account
}
