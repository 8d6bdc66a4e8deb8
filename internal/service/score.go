package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/leaderboard"
	"github.com/sakif/rankboard/internal/metrics"
	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/repository"
)

// ScoreService is the scoring engine plus the leaderboard aggregator.
type ScoreService struct {
	scores      repository.ScoreRepository
	subs        repository.SubmissionRepository
	leaderboard repository.LeaderboardRepository
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewScoreService(
	scores repository.ScoreRepository,
	subs repository.SubmissionRepository,
	lb repository.LeaderboardRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ScoreService {
	return &ScoreService{
		scores:      scores,
		subs:        subs,
		leaderboard: lb,
		metrics:     m,
		logger:      logger,
	}
}

// ScoreOrUpdate records adminID's mark for the submission, replacing any
// earlier mark by the same admin. Blank feedback is stored as NULL.
func (s *ScoreService) ScoreOrUpdate(ctx context.Context, submissionID, adminID int64, score int, feedback *string) (*model.Score, error) {
	if score < 0 {
		return nil, apperror.ValidationFailed("score", "score must be a non-negative integer")
	}
	if feedback != nil {
		trimmed := strings.TrimSpace(*feedback)
		if trimmed == "" {
			feedback = nil
		} else {
			feedback = &trimmed
		}
	}

	sc := &model.Score{
		SubmissionID: submissionID,
		AdminID:      adminID,
		Score:        score,
		Feedback:     feedback,
	}
	if err := s.scores.UpsertScore(ctx, sc); err != nil {
		return nil, err
	}

	outcome := metrics.OutcomeUpdated
	if sc.CreatedAt.Equal(sc.UpdatedAt) {
		outcome = metrics.OutcomeCreated
	}
	s.metrics.Score(outcome)
	s.logger.Info("score recorded",
		slog.Int64("submission_id", submissionID),
		slog.Int64("admin_id", adminID),
		slog.Int("score", score),
		slog.String("outcome", outcome),
	)
	return sc, nil
}

// ScoresForSubmission lists every admin's score, first scored first.
func (s *ScoreService) ScoresForSubmission(ctx context.Context, submissionID int64) ([]model.ScoreWithAdmin, error) {
	if _, err := s.subs.GetSubmissionByID(ctx, submissionID); err != nil {
		return nil, err
	}
	return s.scores.ListScoresForSubmission(ctx, submissionID)
}

// MyScores returns the caller's own marks. A submission that exists but
// belongs to someone else is reported as not found, same as a missing one.
func (s *ScoreService) MyScores(ctx context.Context, submissionID, userID int64) (*model.MyScores, error) {
	sub, err := s.subs.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, apperror.NotFound("submission", submissionID)
	}

	rows, err := s.scores.ListScoresForSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	out := &model.MyScores{SubmissionID: submissionID, Scores: make([]model.AdminScore, 0, len(rows))}
	for _, r := range rows {
		out.Scores = append(out.Scores, model.AdminScore{
			AdminID:       r.AdminID,
			AdminUsername: r.AdminUsername,
			Score:         r.Score.Score,
			Feedback:      r.Feedback,
		})
		out.TotalScore += r.Score.Score
	}
	return out, nil
}

// ComputeLeaderboard ranks every participant for the challenge. It is
// recomputed on each call. An unknown challenge gives an empty board.
func (s *ScoreService) ComputeLeaderboard(ctx context.Context, challengeID int64) ([]model.LeaderboardEntry, error) {
	defer s.metrics.ObserveLeaderboard(time.Now())

	rows, err := s.leaderboard.LeaderboardRows(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	return leaderboard.Build(rows), nil
}
