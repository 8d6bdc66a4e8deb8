// Package service holds the business rules. Handlers call services;
// services call repositories and the blob store.
//
//	Handler (HTTP) -> Service (rules, ownership) -> Repository (SQLite)
//	                                             -> BlobStore (disk or S3)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/auth"
	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/repository"
)

// AuthService turns credentials into a session token.
//
// There is no self-registration: both password and GitHub login only sign
// in accounts an admin already created.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger

	// dummyHash is compared against when the email is unknown so that both
	// failure paths cost one bcrypt comparison.
	dummyHash string
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) (*AuthService, error) {
	dummy, err := passwords.Hash("rankboard-dummy-Password1!")
	if err != nil {
		return nil, fmt.Errorf("service/auth: preparing dummy hash: %w", err)
	}
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// AuthResult bundles the user and the issued token so the handler can set
// the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

var errBadCredentials = apperror.Unauthorized("invalid email or password")

// Login checks email and password. Unknown email and wrong password give
// the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.passwords.Verify(s.dummyHash, password)
		s.logger.Warn("login failed", slog.String("reason", "unknown email"))
		return nil, errBadCredentials
	}

	if err := s.passwords.Verify(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Warn("login failed",
				slog.String("reason", "wrong password"),
				slog.Int64("user_id", u.ID),
			)
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: verifying password for user %d: %w", u.ID, err)
	}

	return s.issue(u, "password")
}

// LoginWithGitHub signs in the existing account whose email matches the
// GitHub primary email.
func (s *AuthService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.Email == "" {
		return nil, apperror.Unauthorized("GitHub account has no verified email")
	}
	u, err := s.users.GetUserByEmail(ctx, gh.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("github login rejected",
				slog.String("login", gh.Login),
				slog.String("reason", "no matching account"),
			)
			return nil, apperror.Unauthorized("no account is registered for this GitHub email")
		}
		return nil, err
	}
	return s.issue(u, "github")
}

func (s *AuthService) issue(u *model.User, method string) (*AuthResult, error) {
	token, err := s.tokens.Generate(u.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", u.ID, err)
	}
	s.logger.Info("user logged in",
		slog.Int64("user_id", u.ID),
		slog.String("username", u.Username),
		slog.String("method", method),
	)
	return &AuthResult{User: u, Token: token}, nil
}

// Session returns the user behind the identity the middleware resolved.
func (s *AuthService) Session(ctx context.Context, who auth.Identity) (*model.User, error) {
	return s.users.GetUserByID(ctx, who.UserID)
}
