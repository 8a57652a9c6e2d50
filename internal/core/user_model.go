package core

import (
	"context"
	"time"
)

// Roles a user can hold within a company. Admins manage users and can
// delete records, managers run the day-to-day books, viewers read only.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleViewer  = "viewer"
)

// User represents an authenticated system user scoped to a company.
type User struct {
	ID           int       `json:"id"`
	CompanyID    int       `json:"company_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserInput carries the fields needed to create a user account.
type UserInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// UserService provides registration, authentication and user lookup.
type UserService interface {
	// RegisterCompany creates a company together with its first admin
	// user in a single transaction. The input role is ignored; the
	// founding user is always an admin.
	RegisterCompany(ctx context.Context, companyName string, input UserInput) (*Company, *User, error)

	// CreateUser adds a user to an existing company.
	CreateUser(ctx context.Context, companyID int, input UserInput) (*User, error)

	// Authenticate verifies a username/password pair against the stored
	// bcrypt hash. Unknown usernames, deactivated accounts and wrong
	// passwords all return ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password string) (*User, error)

	// GetByUsername finds an active user by username. Usernames are
	// unique across companies so logins need no company context.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)

	// GetUsers lists all users of a company, newest first.
	GetUsers(ctx context.Context, companyID int) ([]User, error)

	// SetUserActive enables or disables a user account.
	SetUserActive(ctx context.Context, companyID, userID int, active bool) (*User, error)
}
