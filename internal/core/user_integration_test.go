package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/arunteja30/poultry-tracker/internal/core"
)

func TestUser_RegisterAndAuthenticate(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	svc := core.NewUserService(pool)

	t.Run("RegisterCompany", func(t *testing.T) {
		company, admin, err := svc.RegisterCompany(ctx, "Green Valley Poultry", core.UserInput{
			Username: "valley_admin",
			Email:    "owner@greenvalley.example",
			Password: "correct horse",
		})
		if err != nil {
			t.Fatalf("RegisterCompany: %v", err)
		}
		if company.Name != "Green Valley Poultry" {
			t.Errorf("expected company name back, got %q", company.Name)
		}
		if admin.Role != core.RoleAdmin {
			t.Errorf("expected founding user to be admin, got %s", admin.Role)
		}
		if admin.CompanyID != company.ID {
			t.Errorf("expected user in company %d, got %d", company.ID, admin.CompanyID)
		}
		if admin.PasswordHash == "correct horse" {
			t.Error("password stored in plain text")
		}
	})

	t.Run("Authenticate_Success", func(t *testing.T) {
		u, err := svc.Authenticate(ctx, "valley_admin", "correct horse")
		if err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
		if u.Username != "valley_admin" {
			t.Errorf("expected valley_admin, got %s", u.Username)
		}
	})

	t.Run("Authenticate_WrongPassword", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "valley_admin", "wrong horse")
		if !errors.Is(err, core.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Authenticate_UnknownUser", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "nobody", "whatever!")
		if !errors.Is(err, core.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("DuplicateUsername_Conflicts", func(t *testing.T) {
		_, _, err := svc.RegisterCompany(ctx, "Copycat Farms", core.UserInput{
			Username: "valley_admin",
			Password: "another pass",
		})
		var conflict *core.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected conflict for duplicate username, got %v", err)
		}
	})
}

func TestUser_CreateAndManage(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	svc := core.NewUserService(pool)

	_, admin, err := svc.RegisterCompany(ctx, "Green Valley Poultry", core.UserInput{
		Username: "valley_admin",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("RegisterCompany: %v", err)
	}
	companyID := admin.CompanyID

	t.Run("CreateUser_DefaultsToManager", func(t *testing.T) {
		u, err := svc.CreateUser(ctx, companyID, core.UserInput{
			Username: "supervisor",
			Password: "feedandwater",
		})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if u.Role != core.RoleManager {
			t.Errorf("expected manager role, got %s", u.Role)
		}
	})

	t.Run("CreateUser_BadRole", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, companyID, core.UserInput{
			Username: "intruder1",
			Password: "feedandwater",
			Role:     "superuser",
		})
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Field != "role" {
			t.Fatalf("expected role validation error, got %v", err)
		}
	})

	t.Run("CreateUser_ShortPassword", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, companyID, core.UserInput{
			Username: "hasty",
			Password: "short",
		})
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Field != "password" {
			t.Fatalf("expected password validation error, got %v", err)
		}
	})

	t.Run("CreateUser_MissingCompany", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, 99999, core.UserInput{
			Username: "orphan",
			Password: "feedandwater",
		})
		var notFound *core.NotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected not found for missing company, got %v", err)
		}
	})

	t.Run("GetUsers", func(t *testing.T) {
		users, err := svc.GetUsers(ctx, companyID)
		if err != nil {
			t.Fatalf("GetUsers: %v", err)
		}
		if len(users) != 2 {
			t.Errorf("expected 2 users, got %d", len(users))
		}
	})

	t.Run("Deactivate_BlocksLogin_KeepsName", func(t *testing.T) {
		u, err := svc.GetByUsername(ctx, "supervisor")
		if err != nil {
			t.Fatalf("GetByUsername: %v", err)
		}
		if _, err := svc.SetUserActive(ctx, companyID, u.ID, false); err != nil {
			t.Fatalf("SetUserActive: %v", err)
		}

		if _, err := svc.Authenticate(ctx, "supervisor", "feedandwater"); !errors.Is(err, core.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials for deactivated user, got %v", err)
		}

		// The username stays reserved.
		_, err = svc.CreateUser(ctx, companyID, core.UserInput{
			Username: "supervisor",
			Password: "newpassword",
		})
		var conflict *core.ConflictError
		if !errors.As(err, &conflict) {
			t.Errorf("expected conflict reusing deactivated username, got %v", err)
		}
	})
}
