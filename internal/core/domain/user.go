package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrResetTokenInvalid  = errors.New("reset token invalid or expired")
)

// User models a registered participant. Accounts are created with
// RegistrationCompleted=false; the profile-completion flow flips it.
// Accounts are never hard-deleted.
type User struct {
	ID                    string    `json:"id"`
	Email                 string    `json:"email"`
	PasswordHash          string    `json:"-"`
	Name                  string    `json:"name"`
	TzID                  string    `json:"tz_id"`
	RegistrationCompleted bool      `json:"registration_completed"`
	CollegeName           string    `json:"college_name,omitempty"`
	MobileNumber          string    `json:"mobile_number,omitempty"`
	YearOfStudy           string    `json:"year_of_study,omitempty"`
	Department            string    `json:"department,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Profile carries the fields collected during registration completion.
type Profile struct {
	CollegeName  string
	MobileNumber string
	YearOfStudy  string
	Department   string
}

// ResetToken is a one-time password-reset credential. Only the bcrypt
// hash of the secret is stored; at most one active token exists per
// user (creating a new one deletes all prior ones).
type ResetToken struct {
	UserID     string
	SecretHash string
	ExpiresAt  time.Time
}

// Expired reports whether the token is past its lifetime at instant now.
func (t ResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
