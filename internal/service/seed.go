package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/model"
)

const (
	seedJudgePassword = "Judge123!"
	seedUserPassword  = "User123!"

	SampleChallengeTitle = "Sample Challenge"
)

var (
	seedJudges = []string{"judge1", "judge2"}
	seedUsers  = []string{"alice", "bob", "charlie", "diana", "eve"}
)

// Seeder fills an empty database with demo accounts and a challenge.
// Running it again only creates what is missing.
type Seeder struct {
	users      *UserService
	challenges *ChallengeService
	logger     *slog.Logger
}

func NewSeeder(users *UserService, challenges *ChallengeService, logger *slog.Logger) *Seeder {
	return &Seeder{users: users, challenges: challenges, logger: logger}
}

// SeedOptions configures a run. Fake adds that many generated participants.
type SeedOptions struct {
	RootUsername string
	RootEmail    string
	RootPassword string
	Fake         int
}

// SeedReport counts what a run created.
type SeedReport struct {
	Users      int
	Challenges int
}

func (s *Seeder) Seed(ctx context.Context, opts SeedOptions) (*SeedReport, error) {
	report := &SeedReport{}

	var creatorID int64
	if opts.RootEmail != "" {
		if _, err := s.users.EnsureRootAdmin(ctx, opts.RootUsername, opts.RootEmail, opts.RootPassword); err != nil {
			return nil, err
		}
		root, err := s.users.users.GetUserByEmail(ctx, opts.RootEmail)
		if err != nil {
			return nil, err
		}
		creatorID = root.ID
	}

	for _, name := range seedJudges {
		u, created, err := s.ensure(ctx, name, seedEmail(name), seedJudgePassword, model.RoleAdmin)
		if err != nil {
			return nil, err
		}
		if created {
			report.Users++
		}
		if creatorID == 0 {
			creatorID = u.ID
		}
	}
	for _, name := range seedUsers {
		_, created, err := s.ensure(ctx, name, seedEmail(name), seedUserPassword, model.RoleUser)
		if err != nil {
			return nil, err
		}
		if created {
			report.Users++
		}
	}

	n, err := s.fakeUsers(ctx, opts.Fake)
	report.Users += n
	if err != nil {
		return report, err
	}

	created, err := s.ensureSampleChallenge(ctx, creatorID)
	if err != nil {
		return report, err
	}
	if created {
		report.Challenges++
	}

	s.logger.Info("seed complete",
		slog.Int("users_created", report.Users),
		slog.Int("challenges_created", report.Challenges),
	)
	return report, nil
}

func seedEmail(username string) string {
	return username + "@rankboard.local"
}

func (s *Seeder) ensure(ctx context.Context, username, email, password string, role model.Role) (*model.User, bool, error) {
	u, err := s.users.users.GetUserByEmail(ctx, email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, err
	}
	u, err = s.users.Create(ctx, NewUser{Username: username, Email: email, Password: password, Role: role})
	if err != nil {
		return nil, false, fmt.Errorf("seeding %s: %w", username, err)
	}
	return u, true, nil
}

// fakeUsers creates n generated participants. Name collisions with
// existing accounts are skipped rather than retried.
func (s *Seeder) fakeUsers(ctx context.Context, n int) (int, error) {
	created := 0
	for range n {
		username := strings.ToLower(gofakeit.Username())
		email := strings.ToLower(gofakeit.Email())
		_, err := s.users.Create(ctx, NewUser{
			Username: username,
			Email:    email,
			Password: seedUserPassword,
			Role:     model.RoleUser,
		})
		if err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				s.logger.Debug("skipping duplicate fake user", slog.String("username", username))
				continue
			}
			return created, fmt.Errorf("seeding fake user: %w", err)
		}
		created++
	}
	return created, nil
}

func (s *Seeder) ensureSampleChallenge(ctx context.Context, creatorID int64) (bool, error) {
	existing, err := s.challenges.List(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range existing {
		if c.Title == SampleChallengeTitle {
			return false, nil
		}
	}
	_, err = s.challenges.Create(ctx, creatorID, NewChallenge{
		Title:       SampleChallengeTitle,
		Description: "Upload a PDF describing your solution. Each judge scores it independently.",
		Deadline:    time.Now().UTC().Add(14 * 24 * time.Hour),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
