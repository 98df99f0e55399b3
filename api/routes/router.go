package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookhaven/bookhaven-backend/api/controllers"
	"github.com/bookhaven/bookhaven-backend/api/middleware"
	"github.com/bookhaven/bookhaven-backend/internal/activity"
	authsvc "github.com/bookhaven/bookhaven-backend/internal/auth"
	bookssvc "github.com/bookhaven/bookhaven-backend/internal/books"
	borrowsvc "github.com/bookhaven/bookhaven-backend/internal/borrowing"
	"github.com/bookhaven/bookhaven-backend/internal/notifications"
	"github.com/bookhaven/bookhaven-backend/pkg/auth/session"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Sessions      session.AccessSessionChecker
	Auth          authsvc.Service
	Register      authsvc.RegisterService
	Books         bookssvc.Service
	Lending       borrowsvc.Service
	Notifications notifications.Service
	Activity      *activity.Tracker
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.DB, d.Redis, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.Login(d.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg)).Post("/register", controllers.Register(d.Register, logg))
		r.Post("/refresh", controllers.Refresh(d.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
			r.Post("/logout", controllers.Logout(d.Auth, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
		r.Use(middleware.Activity(d.Activity))

		r.Route("/books", func(r chi.Router) {
			r.Get("/", controllers.ListBooks(d.Books, logg))
			r.Get("/{bookId}", controllers.GetBook(d.Books, d.Lending, logg))
			r.Post("/{bookId}/borrow", controllers.BorrowBook(d.Lending, logg))
		})

		r.Post("/loans/{recordId}/return", controllers.ReturnLoan(d.Lending, logg))
		r.Get("/me/loans", controllers.ListMyLoans(d.Lending, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(d.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, logg))
		})

		r.Route("/admin/books", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Post("/", controllers.CreateBook(d.Books, logg))
			r.Patch("/{bookId}", controllers.UpdateBook(d.Books, logg))
			r.Delete("/{bookId}", controllers.DeleteBook(d.Books, logg))
		})
	})

	return r
}
