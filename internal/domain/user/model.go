package user

import (
	"time"

	"github.com/pneumo/pneumo/internal/platform/auth"
)

// User is a staff account: worker, clinician, or admin. PasswordHash never
// leaves the server.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         auth.Role `db:"role" json:"role"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CreateUserInput is the admin-facing payload for provisioning an account.
type CreateUserInput struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Role      auth.Role `json:"role"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
}

// UpdateUserInput carries the mutable account fields. Nil fields are left
// unchanged.
type UpdateUserInput struct {
	Role      *auth.Role `json:"role,omitempty"`
	FirstName *string    `json:"first_name,omitempty"`
	LastName  *string    `json:"last_name,omitempty"`
	Email     *string    `json:"email,omitempty"`
	Active    *bool      `json:"active,omitempty"`
}
