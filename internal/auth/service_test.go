package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/bookhaven/bookhaven-backend/pkg/auth"
	"github.com/bookhaven/bookhaven-backend/pkg/auth/session"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/security"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret",
		Issuer:                 "bookhaven-test",
		ExpirationMinutes:      15,
		RefreshTokenTTLMinutes: 60,
	}
}

type fakeUserRepo struct {
	byEmail       map[string]*models.User
	byID          map[uuid.UUID]*models.User
	lastLoginID   uuid.UUID
	lastLoginAt   time.Time
	lastLoginErr  error
	lastLoginHits int
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{
		byEmail: map[string]*models.User{},
		byID:    map[uuid.UUID]*models.User{},
	}
	for _, user := range users {
		repo.byEmail[user.Email] = user
		repo.byID[user.ID] = user
	}
	return repo
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if user, ok := f.byEmail[email]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := f.byID[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	f.lastLoginHits++
	f.lastLoginID = id
	f.lastLoginAt = at
	return f.lastLoginErr
}

type fakeSessions struct {
	generatedFor []string
	rotateOld    string
	rotateErr    error
	revoked      []string
}

func (f *fakeSessions) Generate(_ context.Context, accessID string) (string, error) {
	f.generatedFor = append(f.generatedFor, accessID)
	return "refresh-token-1", nil
}

func (f *fakeSessions) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	if f.rotateErr != nil {
		return "", "", f.rotateErr
	}
	f.rotateOld = oldAccessID
	return "rotated-access-id", "refresh-token-2", nil
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	f.revoked = append(f.revoked, accessID)
	return nil
}

func approvedUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.User{
		ID:           uuid.New(),
		FullName:     "Ada Lovelace",
		Email:        email,
		PasswordHash: hash,
		Status:       enums.StatusApproved,
		Role:         enums.RoleUser,
	}
}

func newTestService(t *testing.T, repo *fakeUserRepo, sessions *fakeSessions) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestLoginSuccess(t *testing.T) {
	user := approvedUser(t, "ada@example.com", "correct horse battery")
	repo := newFakeUserRepo(user)
	sessions := &fakeSessions{}
	svc := newTestService(t, repo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "  Ada@Example.com ",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
	if resp.User == nil || resp.User.Email != user.Email {
		t.Fatalf("unexpected user in response: %+v", resp.User)
	}
	if repo.lastLoginHits != 1 || repo.lastLoginID != user.ID {
		t.Fatal("expected last login stamp")
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enums.RoleUser || claims.Status != enums.StatusApproved {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(sessions.generatedFor) != 1 || sessions.generatedFor[0] != claims.ID {
		t.Fatal("refresh session should be keyed by the token jti")
	}
}

func TestLoginPendingAccountStillGetsTokens(t *testing.T) {
	user := approvedUser(t, "ada@example.com", "correct horse battery")
	user.Status = enums.StatusPending
	svc := newTestService(t, newFakeUserRepo(user), &fakeSessions{})

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Status != enums.StatusPending {
		t.Fatalf("expected pending status in claims, got %s", claims.Status)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	user := approvedUser(t, "ada@example.com", "correct horse battery")
	svc := newTestService(t, newFakeUserRepo(user), &fakeSessions{})

	cases := []struct {
		name  string
		email string
		pass  string
	}{
		{"wrong password", "ada@example.com", "incorrect"},
		{"unknown email", "nobody@example.com", "correct horse battery"},
		{"blank email", "   ", "correct horse battery"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), LoginRequest{Email: tc.email, Password: tc.pass})
			if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	user := approvedUser(t, "ada@example.com", "correct horse battery")
	repo := newFakeUserRepo(user)
	sessions := &fakeSessions{}
	svc := newTestService(t, repo, sessions)

	expired, err := pkgAuth.MintAccessToken(testJWTConfig(), time.Now().Add(-time.Hour), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		Status: user.Status,
		JTI:    "stale-access-id",
	})
	if err != nil {
		t.Fatalf("mint expired token: %v", err)
	}

	resp, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  expired,
		RefreshToken: "refresh-token-1",
	})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if sessions.rotateOld != "stale-access-id" {
		t.Fatalf("expected rotation of the old session, got %q", sessions.rotateOld)
	}
	if resp.RefreshToken != "refresh-token-2" {
		t.Fatalf("expected rotated refresh token, got %q", resp.RefreshToken)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse rotated token: %v", err)
	}
	if claims.ID != "rotated-access-id" {
		t.Fatalf("expected new jti, got %q", claims.ID)
	}
}

func TestRefreshRejectsInvalidSession(t *testing.T) {
	user := approvedUser(t, "ada@example.com", "correct horse battery")
	sessions := &fakeSessions{rotateErr: session.ErrInvalidRefreshToken}
	svc := newTestService(t, newFakeUserRepo(user), sessions)

	token, err := pkgAuth.MintAccessToken(testJWTConfig(), time.Now(), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		Status: user.Status,
		JTI:    "some-id",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{AccessToken: token, RefreshToken: "forged"})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{AccessToken: "not-a-jwt", RefreshToken: "x"})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for malformed token, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	sessions := &fakeSessions{}
	svc := newTestService(t, newFakeUserRepo(), sessions)

	if err := svc.Logout(context.Background(), "live-access-id"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "live-access-id" {
		t.Fatalf("expected session revocation, got %v", sessions.revoked)
	}

	err := svc.Logout(context.Background(), "  ")
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for blank access id, got %v", err)
	}
}
