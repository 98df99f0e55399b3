package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bookhaven/bookhaven-backend/internal/books"
	"github.com/bookhaven/bookhaven-backend/internal/users"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/security"
	"github.com/bookhaven/bookhaven-backend/pkg/storage/mediakit"
)

// seedBook is one catalog entry from the seed file. CoverFile points at a
// local image to upload when the entry has no hosted cover yet.
type seedBook struct {
	books.CreateBookDTO
	CoverFile string `json:"cover_file,omitempty"`
}

type seedEnv struct {
	cfg  *config.Config
	logg *logger.Logger
	db   *db.Client
}

func main() {
	root := &cobra.Command{
		Use:           "seed",
		Short:         "Populate the BookHaven database with starter data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBooksCmd(), newAdminCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "seed failed:", err)
		os.Exit(1)
	}
}

func bootstrap(ctx context.Context) (*seedEnv, error) {
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}

	return &seedEnv{cfg: cfg, logg: logg, db: dbClient}, nil
}

func (e *seedEnv) close() {
	if err := e.db.Close(); err != nil {
		e.logg.Error(context.Background(), "error closing database", err)
	}
}

func newBooksCmd() *cobra.Command {
	var (
		file      string
		coversDir string
	)

	cmd := &cobra.Command{
		Use:   "books",
		Short: "Load catalog titles from a JSON seed file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			entries, err := loadSeedFile(file)
			if err != nil {
				return err
			}

			var uploader mediakit.Uploader
			if coversDir != "" {
				client, err := mediakit.NewClient(ctx, env.cfg.Media, env.logg)
				if err != nil {
					return fmt.Errorf("media client: %w", err)
				}
				uploader = client
			}

			service, err := books.NewService(books.NewRepository(env.db.DB()), env.logg)
			if err != nil {
				return err
			}

			created := 0
			for _, entry := range entries {
				dto := entry.CreateBookDTO
				if entry.CoverFile != "" && uploader != nil {
					url, err := uploadCover(ctx, uploader, coversDir, entry.CoverFile)
					if err != nil {
						return fmt.Errorf("cover %q: %w", entry.CoverFile, err)
					}
					dto.CoverURL = url
				}

				book, err := service.Create(ctx, dto)
				if err != nil {
					return fmt.Errorf("create %q: %w", dto.Title, err)
				}
				created++
				env.logg.Info(env.logg.WithFields(ctx, map[string]any{
					"book_id": book.ID.String(),
					"title":   book.Title,
				}), "seeded title")
			}

			env.logg.Info(env.logg.WithField(ctx, "count", created), "catalog seed complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "seed/catalog.json", "path to the catalog seed file")
	cmd.Flags().StringVar(&coversDir, "covers-dir", "", "directory with local cover images to upload")
	return cmd
}

func newAdminCmd() *cobra.Command {
	var (
		fullName     string
		email        string
		password     string
		universityID int64
	)

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Create an approved admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			hash, err := security.HashPassword(password, env.cfg.Password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			role := enums.RoleAdmin
			status := enums.StatusApproved
			repo := users.NewRepository(env.db.DB())
			user, err := repo.Create(ctx, users.CreateUserDTO{
				FullName:       fullName,
				Email:          email,
				UniversityID:   universityID,
				PasswordHash:   hash,
				UniversityCard: "seeded-admin",
				Status:         &status,
				Role:           &role,
			})
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}

			env.logg.Info(env.logg.WithFields(ctx, map[string]any{
				"user_id": user.ID.String(),
				"email":   user.Email,
			}), "admin account created")
			return nil
		},
	}

	cmd.Flags().StringVar(&fullName, "name", "Library Admin", "admin full name")
	cmd.Flags().StringVar(&email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (required)")
	cmd.Flags().Int64Var(&universityID, "university-id", 0, "admin university id (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("university-id")
	return cmd
}

func loadSeedFile(path string) ([]seedBook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %q: %w", path, err)
	}
	var entries []seedBook
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode seed file %q: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("seed file %q contains no entries", path)
	}
	return entries, nil
}

func uploadCover(ctx context.Context, uploader mediakit.Uploader, dir, name string) (string, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	result, err := uploader.Upload(ctx, mediakit.UploadParams{
		FileName: name,
		Folder:   "covers",
		Content:  f,
	})
	if err != nil {
		return "", err
	}
	return result.URL, nil
}
