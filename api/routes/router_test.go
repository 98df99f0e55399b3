package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	authsvc "github.com/bookhaven/bookhaven-backend/internal/auth"
	bookssvc "github.com/bookhaven/bookhaven-backend/internal/books"
	borrowsvc "github.com/bookhaven/bookhaven-backend/internal/borrowing"
	"github.com/bookhaven/bookhaven-backend/internal/notifications"
	pkgAuth "github.com/bookhaven/bookhaven-backend/pkg/auth"
	"github.com/bookhaven/bookhaven-backend/pkg/auth/session"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionChecker struct{}

func (stubSessionChecker) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req authsvc.LoginRequest) (*authsvc.LoginResponse, error) {
	return &authsvc.LoginResponse{}, nil
}

func (stubAuthService) Refresh(ctx context.Context, req authsvc.RefreshRequest) (*authsvc.RefreshResponse, error) {
	return &authsvc.RefreshResponse{}, nil
}

func (stubAuthService) Logout(ctx context.Context, accessID string) error {
	return nil
}

type stubRegisterService struct{}

func (stubRegisterService) Register(ctx context.Context, req authsvc.RegisterRequest) (*authsvc.LoginResponse, error) {
	return &authsvc.LoginResponse{}, nil
}

type stubBooksService struct{}

func (stubBooksService) Get(ctx context.Context, id uuid.UUID) (*bookssvc.BookDTO, error) {
	return &bookssvc.BookDTO{ID: id}, nil
}

func (stubBooksService) List(ctx context.Context, input bookssvc.ListBooksInput) (*bookssvc.BookListResult, error) {
	return &bookssvc.BookListResult{}, nil
}

func (stubBooksService) Create(ctx context.Context, dto bookssvc.CreateBookDTO) (*bookssvc.BookDTO, error) {
	return &bookssvc.BookDTO{}, nil
}

func (stubBooksService) Update(ctx context.Context, id uuid.UUID, dto bookssvc.UpdateBookDTO) (*bookssvc.BookDTO, error) {
	return &bookssvc.BookDTO{ID: id}, nil
}

func (stubBooksService) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

type stubLendingService struct{}

func (stubLendingService) Borrow(ctx context.Context, input borrowsvc.BorrowInput) (*borrowsvc.BorrowRecordDTO, error) {
	return &borrowsvc.BorrowRecordDTO{}, nil
}

func (stubLendingService) Return(ctx context.Context, input borrowsvc.ReturnInput) (*borrowsvc.BorrowRecordDTO, error) {
	return &borrowsvc.BorrowRecordDTO{}, nil
}

func (stubLendingService) ListLoans(ctx context.Context, input borrowsvc.ListLoansInput) (*borrowsvc.LoanListResult, error) {
	return &borrowsvc.LoanListResult{}, nil
}

func (stubLendingService) EligibilityFor(ctx context.Context, userID, bookID uuid.UUID) (borrowsvc.Decision, error) {
	return borrowsvc.Decision{Eligible: true}, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            stubPinger{},
		Sessions:      stubSessionChecker{},
		Auth:          stubAuthService{},
		Register:      stubRegisterService{},
		Books:         stubBooksService{},
		Lending:       stubLendingService{},
		Notifications: stubNotificationsService{},
	})
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestBooksRequireJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestBooksListSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAdminBooksRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	member := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/books/"+uuid.NewString(), nil)
	member.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, member)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/books/"+uuid.NewString(), nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestRefreshIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	body := `{"access_token":"stale","refresh_token":"refresh"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	accessID := session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		Status: enums.StatusApproved,
		JTI:    accessID,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
