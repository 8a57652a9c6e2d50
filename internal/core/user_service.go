package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const userColumns = `id, company_id, username, email, password_hash, role, is_active, created_at`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.CompanyID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

type userService struct {
	pool *pgxpool.Pool
}

// NewUserService constructs a UserService backed by PostgreSQL.
func NewUserService(pool *pgxpool.Pool) UserService {
	return &userService{pool: pool}
}

func validateUserInput(input UserInput) error {
	if strings.TrimSpace(input.Username) == "" {
		return newValidationError("username", "cannot be empty")
	}
	if len(input.Username) < 3 {
		return newValidationError("username", "must be at least 3 characters")
	}
	if len(input.Password) < 8 {
		return newValidationError("password", "must be at least 8 characters")
	}
	switch input.Role {
	case "", RoleAdmin, RoleManager, RoleViewer:
	default:
		return newValidationError("role", "must be %s, %s or %s", RoleAdmin, RoleManager, RoleViewer)
	}
	return nil
}

// usernameTaken checks for an existing account regardless of active state so
// deactivating a user never frees their name for someone else.
func usernameTaken(ctx context.Context, q pgxQuerier, username string) (bool, error) {
	var taken bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return taken, nil
}

func insertUser(ctx context.Context, q pgxQuerier, companyID int, input UserInput, role string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u, err := scanUser(q.QueryRow(ctx, `
		INSERT INTO users (company_id, username, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING `+userColumns,
		companyID, strings.TrimSpace(input.Username), strings.TrimSpace(input.Email), string(hash), role,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *userService) RegisterCompany(ctx context.Context, companyName string, input UserInput) (*Company, *User, error) {
	if strings.TrimSpace(companyName) == "" {
		return nil, nil, newValidationError("company_name", "cannot be empty")
	}
	if err := validateUserInput(input); err != nil {
		return nil, nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	taken, err := usernameTaken(ctx, tx, strings.TrimSpace(input.Username))
	if err != nil {
		return nil, nil, err
	}
	if taken {
		return nil, nil, newConflictError("username %q is already taken", strings.TrimSpace(input.Username))
	}

	c := &Company{}
	err = tx.QueryRow(ctx, `
		INSERT INTO companies (name)
		VALUES ($1)
		RETURNING id, name, created_at`,
		strings.TrimSpace(companyName),
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create company: %w", err)
	}

	u, err := insertUser(ctx, tx, c.ID, input, RoleAdmin)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return c, u, nil
}

func (s *userService) CreateUser(ctx context.Context, companyID int, input UserInput) (*User, error) {
	if err := validateUserInput(input); err != nil {
		return nil, err
	}
	role := input.Role
	if role == "" {
		role = RoleManager
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM companies WHERE id = $1)`, companyID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check company: %w", err)
	}
	if !exists {
		return nil, newNotFoundError("company", companyID)
	}

	taken, err := usernameTaken(ctx, tx, strings.TrimSpace(input.Username))
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, newConflictError("username %q is already taken", strings.TrimSpace(input.Username))
	}

	u, err := insertUser(ctx, tx, companyID, input, role)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return u, nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 AND is_active = true
		LIMIT 1`,
		username,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 AND is_active = true
		LIMIT 1`,
		username,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %q not found", username)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *userService) GetByID(ctx context.Context, userID int) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1`,
		userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newNotFoundError("user", userID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *userService) GetUsers(ctx context.Context, companyID int) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE company_id = $1
		ORDER BY created_at DESC, id DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *userService) SetUserActive(ctx context.Context, companyID, userID int, active bool) (*User, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET is_active = $3
		WHERE id = $1 AND company_id = $2`,
		userID, companyID, active,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, newNotFoundError("user", userID)
	}
	return s.GetByID(ctx, userID)
}
