// Package config loads runtime settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Port        int
	Env         string
	LogLevel    slog.Level
	FrontendURL string

	SessionSecret string
	SessionTTL    time.Duration
	BcryptCost    int

	DatabasePath string

	StorageBackend string
	UploadDir      string
	S3             S3

	RootAdmin RootAdmin
	GitHub    GitHub

	LoginRatePerMin  int
	UploadRatePerMin int
}

type S3 struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// RootAdmin is the bootstrap account created at startup when no user with
// that email exists. Empty Email disables the bootstrap.
type RootAdmin struct {
	Username string
	Email    string
	Password string
}

// GitHub login is enabled when both client id and secret are set.
type GitHub struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

func (g GitHub) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads envFiles (default ".env") if present, then the process
// environment. Variables already set in the environment win over the file.
// All invalid values are reported together.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", f, err)
		}
	}

	var p parser
	cfg := &Config{
		Port:          p.int("PORT", 8080),
		Env:           p.str("APP_ENV", EnvDevelopment),
		LogLevel:      p.level("LOG_LEVEL", slog.LevelInfo),
		FrontendURL:   strings.TrimRight(p.str("FRONTEND_URL", "http://localhost:5173"), "/"),
		SessionSecret: p.str("SESSION_SECRET", ""),
		SessionTTL:    p.duration("SESSION_TTL", 7*24*time.Hour),
		BcryptCost:    p.int("BCRYPT_COST", 12),
		DatabasePath:  p.str("DATABASE_PATH", "data/rankboard.db"),

		StorageBackend: strings.ToLower(p.str("STORAGE_BACKEND", StorageLocal)),
		UploadDir:      p.str("UPLOAD_DIR", "uploads"),
		S3: S3{
			Endpoint:        p.str("S3_ENDPOINT", ""),
			Region:          p.str("S3_REGION", "auto"),
			Bucket:          p.str("S3_BUCKET", ""),
			AccessKeyID:     p.str("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: p.str("S3_SECRET_ACCESS_KEY", ""),
			Prefix:          p.str("S3_PREFIX", ""),
		},

		RootAdmin: RootAdmin{
			Username: p.str("ROOT_ADMIN_USERNAME", "admin"),
			Email:    p.str("ROOT_ADMIN_EMAIL", ""),
			Password: p.str("ROOT_ADMIN_PASSWORD", ""),
		},
		GitHub: GitHub{
			ClientID:     p.str("GITHUB_CLIENT_ID", ""),
			ClientSecret: p.str("GITHUB_CLIENT_SECRET", ""),
			CallbackURL:  p.str("GITHUB_CALLBACK_URL", ""),
		},

		LoginRatePerMin:  p.int("LOGIN_RATE_PER_MIN", 5),
		UploadRatePerMin: p.int("UPLOAD_RATE_PER_MIN", 10),
	}

	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := errors.Join(append(p.errs, cfg.validate()...)...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV must be development, production or test, got %q", c.Env))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be set and at least 32 characters"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	switch c.StorageBackend {
	case StorageLocal:
	case StorageS3:
		if c.S3.Bucket == "" || c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "" {
			errs = append(errs, errors.New("STORAGE_BACKEND=s3 requires S3_BUCKET, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be local or s3, got %q", c.StorageBackend))
	}
	if c.RootAdmin.Email != "" && c.RootAdmin.Password == "" {
		errs = append(errs, errors.New("ROOT_ADMIN_PASSWORD is required when ROOT_ADMIN_EMAIL is set"))
	}
	return errs
}

// parser collects conversion errors instead of failing on the first one.
type parser struct {
	errs []error
}

func (p *parser) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func (p *parser) int(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return fallback
	}
	return d
}

func (p *parser) level(key string, fallback slog.Level) slog.Level {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a log level", key, v))
		return fallback
	}
	return l
}
