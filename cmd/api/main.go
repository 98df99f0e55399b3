package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/bookhaven/bookhaven-backend/api/routes"
	"github.com/bookhaven/bookhaven-backend/internal/activity"
	"github.com/bookhaven/bookhaven-backend/internal/auth"
	"github.com/bookhaven/bookhaven-backend/internal/books"
	"github.com/bookhaven/bookhaven-backend/internal/borrowing"
	"github.com/bookhaven/bookhaven-backend/internal/engagement"
	"github.com/bookhaven/bookhaven-backend/internal/notifications"
	"github.com/bookhaven/bookhaven-backend/internal/users"
	"github.com/bookhaven/bookhaven-backend/pkg/auth/session"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/migrate"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox"
	"github.com/bookhaven/bookhaven-backend/pkg/redis"
	"github.com/bookhaven/bookhaven-backend/pkg/workflow"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	booksRepo := books.NewRepository(dbClient.DB())
	loansRepo := borrowing.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	workflowEngine, err := workflow.NewEngine(workflow.EngineParams{
		Store:           workflow.NewRepository(dbClient.DB()),
		Logger:          logg,
		MaxStepAttempts: cfg.Engagement.MaxStepAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create workflow engine", err)
		os.Exit(1)
	}

	mailer, err := notifications.NewMailer(notificationsRepo, dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification mailer", err)
		os.Exit(1)
	}

	workflows, err := engagement.NewWorkflows(engagement.WorkflowsParams{
		Users:         usersRepo,
		Mailer:        mailer,
		WelcomeDelay:  cfg.Engagement.WelcomeDelay,
		CheckInterval: cfg.Engagement.CheckInterval,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create engagement workflows", err)
		os.Exit(1)
	}
	workflows.Register(workflowEngine)

	engagementService, err := engagement.NewService(workflowEngine)
	if err != nil {
		logg.Error(context.Background(), "failed to create engagement service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		Users:          usersRepo,
		Outbox:         outboxService,
		Onboarding:     engagementService,
		SessionManager: sessionManager,
		PasswordConfig: cfg.Password,
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	booksService, err := books.NewService(booksRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create books service", err)
		os.Exit(1)
	}

	lendingService, err := borrowing.NewService(borrowing.ServiceParams{
		Users:      usersRepo,
		Books:      booksRepo,
		Loans:      loansRepo,
		Tx:         dbClient,
		Outbox:     outboxService,
		Policy:     borrowing.Policy{MaxConcurrentLoans: cfg.Loan.MaxConcurrentLoans},
		LoanPeriod: cfg.Loan.Period(),
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create lending service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	activityTracker := activity.NewTracker(usersRepo, logg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Sessions:      sessionManager,
			Auth:          authService,
			Register:      registerService,
			Books:         booksService,
			Lending:       lendingService,
			Notifications: notificationsService,
			Activity:      activityTracker,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
