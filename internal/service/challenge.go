package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/repository"
	"github.com/sakif/rankboard/internal/storage"
)

type ChallengeService struct {
	challenges repository.ChallengeRepository
	subs       repository.SubmissionRepository
	cleaner    *storage.Cleaner
	logger     *slog.Logger
}

func NewChallengeService(
	challenges repository.ChallengeRepository,
	subs repository.SubmissionRepository,
	cleaner *storage.Cleaner,
	logger *slog.Logger,
) *ChallengeService {
	return &ChallengeService{
		challenges: challenges,
		subs:       subs,
		cleaner:    cleaner,
		logger:     logger,
	}
}

// NewChallenge is the input to Create. A zero CreatedAt means now.
type NewChallenge struct {
	Title       string
	Description string
	CreatedAt   time.Time
	Deadline    time.Time
}

func (s *ChallengeService) Create(ctx context.Context, adminID int64, in NewChallenge) (*model.Challenge, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if in.Deadline.IsZero() {
		return nil, apperror.ValidationFailed("deadline", "deadline is required")
	}

	c := &model.Challenge{
		Title:            title,
		Description:      in.Description,
		CreatedAt:        in.CreatedAt,
		Deadline:         in.Deadline,
		CreatedByAdminID: adminID,
	}
	if err := s.challenges.CreateChallenge(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("challenge created",
		slog.Int64("challenge_id", c.ID),
		slog.Int64("admin_id", adminID),
		slog.String("title", c.Title),
	)
	return c, nil
}

func (s *ChallengeService) Get(ctx context.Context, id int64) (*model.Challenge, error) {
	return s.challenges.GetChallengeByID(ctx, id)
}

// List returns all challenges, newest first.
func (s *ChallengeService) List(ctx context.Context) ([]model.Challenge, error) {
	return s.challenges.ListChallenges(ctx)
}

// Update applies a partial change. A title, when given, must not be blank.
func (s *ChallengeService) Update(ctx context.Context, id int64, upd model.ChallengeUpdate) (*model.Challenge, error) {
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, apperror.ValidationFailed("title", "title must not be empty")
		}
		upd.Title = &title
	}
	c, err := s.challenges.UpdateChallenge(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.logger.Info("challenge updated", slog.Int64("challenge_id", id))
	return c, nil
}

// Delete removes the challenge. Its submissions and their scores go with it
// in the database; the submission files are removed afterwards.
func (s *ChallengeService) Delete(ctx context.Context, id int64) error {
	if _, err := s.challenges.GetChallengeByID(ctx, id); err != nil {
		return err
	}
	files, err := s.subs.ListSubmissionFilenames(ctx, id)
	if err != nil {
		return err
	}
	if err := s.challenges.DeleteChallenge(ctx, id); err != nil {
		return err
	}

	s.cleaner.Remove(ctx, storage.BucketSubmissions, files...)
	s.logger.Info("challenge deleted",
		slog.Int64("challenge_id", id),
		slog.Int("files", len(files)),
	)
	return nil
}
