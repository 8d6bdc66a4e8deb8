package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rs/xid"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/auth"
	"github.com/sakif/rankboard/internal/metrics"
	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/repository"
	"github.com/sakif/rankboard/internal/storage"
)

// SubmissionService keeps at most one submission per (challenge, user).
// Submitting again replaces the file and refreshes the submission time; the
// row id, and therefore any scores already given, survive.
type SubmissionService struct {
	subs       repository.SubmissionRepository
	challenges repository.ChallengeRepository
	blobs      storage.BlobStore
	cleaner    *storage.Cleaner
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewSubmissionService(
	subs repository.SubmissionRepository,
	challenges repository.ChallengeRepository,
	blobs storage.BlobStore,
	cleaner *storage.Cleaner,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		subs:       subs,
		challenges: challenges,
		blobs:      blobs,
		cleaner:    cleaner,
		metrics:    m,
		logger:     logger,
	}
}

// SubmissionFilename is the blob name for a new upload.
func SubmissionFilename(userID, challengeID int64) string {
	return fmt.Sprintf("submission_%d_%d_%s.pdf", userID, challengeID, xid.New().String())
}

// Submit stores pdf and records it as userID's submission to challengeID.
// It reports whether a new row was created (false means a replacement).
//
// The blob is written first. If recording it fails, the fresh blob is
// removed again; if it replaces an older file, the older blob is removed
// after the row points at the new one.
func (s *SubmissionService) Submit(ctx context.Context, challengeID, userID int64, pdf io.Reader) (*model.Submission, bool, error) {
	if _, err := s.challenges.GetChallengeByID(ctx, challengeID); err != nil {
		s.metrics.Submission(metrics.OutcomeRejected)
		return nil, false, err
	}

	name := SubmissionFilename(userID, challengeID)
	if err := s.blobs.Put(ctx, storage.BucketSubmissions, name, "application/pdf", pdf); err != nil {
		s.metrics.Submission(metrics.OutcomeFailed)
		return nil, false, fmt.Errorf("storing submission file: %w", err)
	}

	sub, created, oldName, err := s.record(ctx, challengeID, userID, name)
	if err != nil {
		s.cleaner.Remove(ctx, storage.BucketSubmissions, name)
		s.metrics.Submission(metrics.OutcomeFailed)
		return nil, false, err
	}
	if oldName != "" && oldName != name {
		s.cleaner.Remove(ctx, storage.BucketSubmissions, oldName)
	}

	outcome := metrics.OutcomeReplaced
	if created {
		outcome = metrics.OutcomeCreated
	}
	s.metrics.Submission(outcome)
	s.logger.Info("submission stored",
		slog.Int64("submission_id", sub.ID),
		slog.Int64("challenge_id", challengeID),
		slog.Int64("user_id", userID),
		slog.String("outcome", outcome),
	)
	return sub, created, nil
}

// record inserts or updates the row. A Conflict from the insert means a
// concurrent request created the row first; that is handled as a
// resubmission.
func (s *SubmissionService) record(ctx context.Context, challengeID, userID int64, name string) (sub *model.Submission, created bool, oldName string, err error) {
	prior, err := s.subs.GetSubmissionForChallengeAndUser(ctx, challengeID, userID)
	if err != nil {
		return nil, false, "", err
	}

	if prior == nil {
		sub = &model.Submission{ChallengeID: challengeID, UserID: userID, Filename: name}
		err = s.subs.InsertSubmission(ctx, sub)
		if err == nil {
			return sub, true, "", nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, false, "", err
		}
		s.logger.Debug("submission insert lost race, updating instead",
			slog.Int64("challenge_id", challengeID),
			slog.Int64("user_id", userID),
		)
		prior, err = s.subs.GetSubmissionForChallengeAndUser(ctx, challengeID, userID)
		if err != nil {
			return nil, false, "", err
		}
		if prior == nil {
			return nil, false, "", fmt.Errorf("submission for challenge %d user %d vanished after conflict", challengeID, userID)
		}
	}

	sub, err = s.subs.UpdateSubmissionFile(ctx, prior.ID, name)
	if err != nil {
		return nil, false, "", err
	}
	return sub, false, prior.Filename, nil
}

// GetForChallengeAndUser returns NotFound when the user has not submitted.
func (s *SubmissionService) GetForChallengeAndUser(ctx context.Context, challengeID, userID int64) (*model.Submission, error) {
	sub, err := s.subs.GetSubmissionForChallengeAndUser(ctx, challengeID, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperror.NotFoundMessage("no submission for this challenge")
	}
	return sub, nil
}

// ListForChallenge returns every submission, newest first.
func (s *SubmissionService) ListForChallenge(ctx context.Context, challengeID int64) ([]model.SubmissionWithUser, error) {
	if _, err := s.challenges.GetChallengeByID(ctx, challengeID); err != nil {
		return nil, err
	}
	return s.subs.ListSubmissionsForChallenge(ctx, challengeID)
}

// ListVisible scopes the list to the caller: admins see everything, users
// see at most their own submission.
func (s *SubmissionService) ListVisible(ctx context.Context, challengeID int64, who auth.Identity) ([]model.SubmissionWithUser, error) {
	all, err := s.ListForChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if who.IsAdmin() {
		return all, nil
	}
	own := make([]model.SubmissionWithUser, 0, 1)
	for _, sub := range all {
		if sub.UserID == who.UserID {
			own = append(own, sub)
		}
	}
	return own, nil
}

// Delete removes the row (its scores cascade), then the file.
func (s *SubmissionService) Delete(ctx context.Context, submissionID int64) error {
	sub, err := s.subs.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return err
	}
	if err := s.subs.DeleteSubmission(ctx, submissionID); err != nil {
		return err
	}
	s.cleaner.Remove(ctx, storage.BucketSubmissions, sub.Filename)
	s.logger.Info("submission deleted", slog.Int64("submission_id", submissionID))
	return nil
}

// Open returns the submission and its file for download. Only admins and
// the submitter may read it. The caller closes the reader.
func (s *SubmissionService) Open(ctx context.Context, submissionID int64, who auth.Identity) (*model.Submission, io.ReadCloser, error) {
	sub, err := s.subs.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if !who.IsAdmin() && sub.UserID != who.UserID {
		return nil, nil, apperror.Forbidden("you can only download your own submission")
	}

	rc, err := s.blobs.Open(ctx, storage.BucketSubmissions, sub.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			s.logger.Warn("submission file missing",
				slog.Int64("submission_id", sub.ID),
				slog.String("filename", sub.Filename),
			)
			return nil, nil, apperror.NotFoundMessage("submission file not found")
		}
		return nil, nil, fmt.Errorf("opening submission file: %w", err)
	}
	return sub, rc, nil
}
