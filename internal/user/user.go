package user

import (
	"time"

	"libraryapi/internal/apperr"
)

var (
	ErrNotFound      = apperr.NotFound("user not found")
	ErrUsernameTaken = apperr.Conflict("username already registered")
	ErrEmailTaken    = apperr.Conflict("email already registered")
	// ErrInvalidCredentials covers unknown users, wrong passwords and
	// deactivated accounts alike.
	ErrInvalidCredentials = apperr.Unauthorized("incorrect username or password")
	// ErrInactive rejects a token whose account was deactivated or deleted.
	ErrInactive      = apperr.Unauthorized("account is inactive or no longer exists")
	ErrWrongPassword = apperr.Validation("current password is incorrect")
	ErrInvalidRole   = apperr.Validation("role must be admin or regular")
	// ErrHasOpenLoans blocks deleting an account that still holds books.
	ErrHasOpenLoans = apperr.Conflict("user has books that are not returned")
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     *string   `json:"full_name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterInput is a new account with a plain-text password.
type RegisterInput struct {
	Username string
	Email    string
	FullName *string
	Password string
}

// NewUser is what the repository stores; the password is already hashed.
type NewUser struct {
	Username     string
	Email        string
	FullName     *string
	PasswordHash string
	Role         string
}

// Patch holds the profile fields to change; nil fields are left as they are.
// Only admins may change IsActive.
type Patch struct {
	Email    *string
	FullName *string
	IsActive *bool
}

func (p Patch) IsEmpty() bool {
	return p.Email == nil && p.FullName == nil && p.IsActive == nil
}

// Query filters the admin account listing.
type Query struct {
	Role     string
	IsActive *bool
	Skip     int
	Limit    int
}
