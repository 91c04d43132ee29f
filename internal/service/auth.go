// Package service provides the business logic layer (use cases).
// AuthService handles login, logout, session validation, and user
// administration.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/port"
	"github.com/redlantern/bookkeeper/internal/records"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const bcryptCost = 12

// dummyPasswordHash is a real cost-12 hash of a throwaway password. Comparing
// against it on unknown usernames costs the same as a genuine mismatch, so
// response timing does not reveal whether a username exists.
const dummyPasswordHash = "$2b$12$rxOtSNyt0Sr8IHsEm5EdaeYEbdCS5T.3cB3w.UZaSJKzzOWoaxzxO"

// AuthService orchestrates authentication flows. Sessions are opaque store
// records; the bearer token handed to clients is a signed wrapper around the
// session id, so deleting the record revokes the token immediately.
type AuthService struct {
	users        *records.Collection[domain.User]
	sessions     *records.Collection[domain.Session]
	sessionCache port.Cache[domain.Session]
	jwtSecret    []byte
	tokenTTL     time.Duration
	logger       *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(cols *records.Collections, sessionCache port.Cache[domain.Session], jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:        cols.Users,
		sessions:     cols.Sessions,
		sessionCache: sessionCache,
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     tokenTTL,
		logger:       logger,
	}
}

// SeedDefaultAdmin creates the bootstrap admin user when the users
// collection is empty, so a fresh deployment is reachable.
func (s *AuthService) SeedDefaultAdmin(ctx context.Context, username, password string) error {
	users, err := s.users.All(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	admin := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}
	if err := s.users.Put(ctx, admin.ID, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	s.logger.Warn("seeded default admin user — change its password",
		zap.String("username", username),
	)
	return nil
}

// Login verifies credentials, stores a session record, and returns a signed
// bearer token wrapping the session id.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.LoginResult, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	users, err := s.users.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var user *domain.User
	for i := range users {
		if users[i].Username == username {
			user = &users[i]
			break
		}
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(password))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("login: failed password attempt", zap.String("username", username))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	sess := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Put(ctx, sess.ID, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	token, err := s.signSessionToken(sess.ID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.Bool("is_admin", user.IsAdmin),
	)

	return &domain.LoginResult{
		Token: token,
		User:  domain.UserInfo{ID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin},
	}, nil
}

// Logout removes the session record and its cache entry, revoking every
// token that wraps it.
func (s *AuthService) Logout(ctx context.Context, sess *domain.Session) error {
	ctx, span := authTracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if sess == nil {
		return &domain.ErrUnauthorized{}
	}
	if err := s.sessions.Remove(ctx, sess.ID); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	s.sessionCache.Delete(sess.ID)

	s.logger.Info("user logged out", zap.String("user_id", sess.UserID))
	return nil
}

// CurrentUser echoes the session's user projection.
func (s *AuthService) CurrentUser(sess *domain.Session) (*domain.UserInfo, error) {
	if sess == nil {
		return nil, &domain.ErrUnauthorized{}
	}
	return &domain.UserInfo{ID: sess.UserID, Username: sess.Username, IsAdmin: sess.IsAdmin}, nil
}

// CreateUser adds a login principal. Admin-only; usernames are unique.
func (s *AuthService) CreateUser(ctx context.Context, sess *domain.Session, username, password string, isAdmin bool) (*domain.UserInfo, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.CreateUser")
	defer span.End()

	if err := Authorize(sess, OpUserCreate); err != nil {
		return nil, err
	}
	if username == "" {
		return nil, &domain.ErrValidation{Field: "username", Message: "username is required"}
	}
	if password == "" {
		return nil, &domain.ErrValidation{Field: "password", Message: "password is required"}
	}

	users, err := s.users.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if u.Username == username {
			return nil, &domain.ErrConflict{Message: "username already exists"}
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
	}
	if err := s.users.Put(ctx, user.ID, user); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}

	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("username", username),
		zap.Bool("is_admin", isAdmin),
		zap.String("created_by", sess.UserID),
	)

	return &domain.UserInfo{ID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin}, nil
}

// ListUsers returns every user without password hashes. Admin-only.
func (s *AuthService) ListUsers(ctx context.Context, sess *domain.Session) ([]domain.UserInfo, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.ListUsers")
	defer span.End()

	if err := Authorize(sess, OpUserList); err != nil {
		return nil, err
	}

	users, err := s.users.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]domain.UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, domain.UserInfo{ID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin})
	}
	return out, nil
}

// ============================================================
// Token validation — used by middleware
// ============================================================

// sessionClaims are the custom claims in session tokens.
type sessionClaims struct {
	Sid string `json:"sid"`
	jwt.RegisteredClaims
}

// ValidateToken parses a bearer token and resolves its session record.
// A token whose session record is gone (logout) is unauthorized even if the
// signature is still valid.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*domain.Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Sid == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	if cached, ok := s.sessionCache.Get(claims.Sid); ok {
		return &cached, nil
	}

	sess, err := s.sessions.Get(ctx, claims.Sid)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, &domain.ErrUnauthorized{Message: "session expired"}
	}

	s.sessionCache.Set(sess.ID, *sess)
	return sess, nil
}

func (s *AuthService) signSessionToken(sessionID string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Sid: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			Issuer:    "bookkeeper",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
