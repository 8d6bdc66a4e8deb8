package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/rankboard/internal/auth"
	"github.com/sakif/rankboard/internal/config"
	"github.com/sakif/rankboard/internal/metrics"
	sqliteRepo "github.com/sakif/rankboard/internal/repository/sqlite"
	"github.com/sakif/rankboard/internal/service"
	"github.com/sakif/rankboard/internal/storage"
)

// App is the composition root: every long-lived dependency, built once from
// the config. The HTTP server and the CLI maintenance commands share it.
//
// DEPENDENCY CHAIN:
//
//	config → sqlite.DB, BlobStore, Metrics, TokenService, PasswordService
//	       → services (receive repository interfaces, never the concrete DB)
//	       → handlers (receive services, see server.go)
type App struct {
	Config  *config.Config
	DB      *sqliteRepo.DB
	Blobs   storage.BlobStore
	Metrics *metrics.Metrics

	Tokens    *auth.TokenService
	Passwords *auth.PasswordService
	GitHub    *auth.GitHubProvider // nil when not configured

	Auth        *service.AuthService
	Users       *service.UserService
	Challenges  *service.ChallengeService
	Submissions *service.SubmissionService
	Scores      *service.ScoreService
	Maintenance *service.MaintenanceService
	Seeder      *service.Seeder
}

// Open builds an App. The caller owns it and must call Close.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.DatabasePath != sqliteRepo.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(cfg.BcryptCost)

	var github *auth.GitHubProvider
	if cfg.GitHub.Enabled() {
		github = auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL)
	}

	m := metrics.New()
	cleaner := storage.NewCleaner(blobs, logger, m)

	authService, err := service.NewAuthService(db, tokens, passwords, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating auth service: %w", err)
	}
	users := service.NewUserService(db, db, passwords, blobs, cleaner, logger)
	challenges := service.NewChallengeService(db, db, cleaner, logger)

	return &App{
		Config:      cfg,
		DB:          db,
		Blobs:       blobs,
		Metrics:     m,
		Tokens:      tokens,
		Passwords:   passwords,
		GitHub:      github,
		Auth:        authService,
		Users:       users,
		Challenges:  challenges,
		Submissions: service.NewSubmissionService(db, db, blobs, cleaner, m, logger),
		Scores:      service.NewScoreService(db, db, db, m, logger),
		Maintenance: service.NewMaintenanceService(db, cleaner, logger),
		Seeder:      service.NewSeeder(users, challenges, logger),
	}, nil
}

// Close releases the database. Blob stores hold no resources.
func (a *App) Close() error {
	return a.DB.Close()
}

// EnsureRootAdmin creates the configured bootstrap admin if it is missing.
// It is a no-op when ROOT_ADMIN_EMAIL is unset.
func (a *App) EnsureRootAdmin(ctx context.Context, logger *slog.Logger) error {
	root := a.Config.RootAdmin
	if root.Email == "" {
		return nil
	}
	created, err := a.Users.EnsureRootAdmin(ctx, root.Username, root.Email, root.Password)
	if err != nil {
		return fmt.Errorf("ensuring root admin: %w", err)
	}
	if created {
		logger.Info("root admin created", slog.String("email", root.Email))
	}
	return nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		s, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("opening S3 storage: %w", err)
		}
		return s, nil
	default:
		s, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("opening local storage: %w", err)
		}
		return s, nil
	}
}
