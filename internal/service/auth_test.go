package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/infra/cache"
	"github.com/redlantern/bookkeeper/internal/service"

	"go.uber.org/zap"
)

func newAuthService() *service.AuthService {
	cols, _ := newCollections()
	return service.NewAuthService(cols, cache.New[domain.Session](5*time.Minute), "test-secret", time.Hour, zap.NewNop())
}

func TestSeedDefaultAdmin_OnlyWhenEmpty(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	if err := svc.SeedDefaultAdmin(ctx, "admin", "secret"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := svc.Login(ctx, "admin", "secret")
	if err != nil {
		t.Fatalf("login after seed: %v", err)
	}
	if !result.User.IsAdmin {
		t.Error("seeded admin must be an admin")
	}

	// A second seed with different credentials must be a no-op.
	if err := svc.SeedDefaultAdmin(ctx, "other", "other"); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	_, err = svc.Login(ctx, "other", "other")
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected no second admin to exist, got %v", err)
	}
}

func TestLogin_WrongCredentials(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	if err := svc.SeedDefaultAdmin(ctx, "admin", "secret"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var unauthorized *domain.ErrUnauthorized
	if _, err := svc.Login(ctx, "admin", "wrong"); !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized for wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "secret"); !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}
}

func TestValidateToken_RoundTripAndRevocation(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	if err := svc.SeedDefaultAdmin(ctx, "admin", "secret"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	result, err := svc.Login(ctx, "admin", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	sess, err := svc.ValidateToken(ctx, result.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if sess.Username != "admin" || !sess.IsAdmin {
		t.Errorf("unexpected session: %+v", sess)
	}

	// Second validation hits the cache and must agree.
	again, err := svc.ValidateToken(ctx, result.Token)
	if err != nil {
		t.Fatalf("validate cached: %v", err)
	}
	if again.ID != sess.ID {
		t.Errorf("cache returned a different session: %s vs %s", again.ID, sess.ID)
	}

	if err := svc.Logout(ctx, sess); err != nil {
		t.Fatalf("logout: %v", err)
	}

	_, err = svc.ValidateToken(ctx, result.Token)
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized after logout, got %v", err)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := newAuthService()

	_, err := svc.ValidateToken(context.Background(), "not-a-token")
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized for malformed token, got %v", err)
	}
}

func TestCreateUser_AdminOnlyAndUnique(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()
	admin := adminSession()

	user, err := svc.CreateUser(ctx, admin, "alice", "pw", false)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.IsAdmin {
		t.Error("expected non-admin user")
	}

	_, err = svc.CreateUser(ctx, admin, "alice", "pw2", false)
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict for duplicate username, got %v", err)
	}

	member := memberSession("user-bob", "bob")
	_, err = svc.CreateUser(ctx, member, "carol", "pw", false)
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected forbidden for non-admin, got %v", err)
	}

	_, err = svc.CreateUser(ctx, admin, "", "pw", false)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error for empty username, got %v", err)
	}
}

func TestListUsers_OmitsPasswords(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()
	admin := adminSession()

	if _, err := svc.CreateUser(ctx, admin, "alice", "pw", false); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := svc.CreateUser(ctx, admin, "bob", "pw", true); err != nil {
		t.Fatalf("create user: %v", err)
	}

	users, err := svc.ListUsers(ctx, admin)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	member := memberSession("user-alice", "alice")
	_, err = svc.ListUsers(ctx, member)
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected forbidden for non-admin, got %v", err)
	}
}
