package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/rankboard/internal/leaderboard"
	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/service"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ScoreHandler serves scoring and the leaderboard views.
type ScoreHandler struct {
	scores     *service.ScoreService
	challenges *service.ChallengeService
	logger     *slog.Logger
}

func NewScoreHandler(scores *service.ScoreService, challenges *service.ChallengeService, logger *slog.Logger) *ScoreHandler {
	return &ScoreHandler{scores: scores, challenges: challenges, logger: logger}
}

// Score is a pointer so that a missing value fails "required" while 0 is
// still a valid mark.
type scoreRequest struct {
	Score    *int    `json:"score" validate:"required,min=0"`
	Feedback *string `json:"feedback" validate:"omitempty,max=5000"`
}

type leaderboardResponse struct {
	Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
}

// HandleScore records the calling admin's mark, replacing any earlier one.
//
// HTTP: POST /api/submissions/{id}/scores
// REQUEST BODY: {"score": 85, "feedback": "clear write-up"}
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	submissionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sc, err := h.scores.ScoreOrUpdate(r.Context(), submissionID, who.UserID, *req.Score, req.Feedback)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// HTTP: GET /api/submissions/{id}/scores
func (h *ScoreHandler) HandleListForSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	scores, err := h.scores.ScoresForSubmission(r.Context(), submissionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// HandleMyScores returns the caller's own marks. Someone else's submission
// answers 404, not 403.
//
// HTTP: GET /api/submissions/{id}/scores/me
func (h *ScoreHandler) HandleMyScores(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	submissionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	mine, err := h.scores.MyScores(r.Context(), submissionID, who.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mine)
}

// HTTP: GET /api/challenges/{id}/scores
func (h *ScoreHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	_, entries, err := h.leaderboard(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Leaderboard: entries})
}

// HTTP: GET /api/challenges/{id}/leaderboard.xlsx
func (h *ScoreHandler) HandleExportXLSX(w http.ResponseWriter, r *http.Request) {
	c, entries, err := h.leaderboard(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := leaderboard.WriteXLSX(&buf, c.Title, entries); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeFile(w, xlsxMIME, fmt.Sprintf("leaderboard-%d.xlsx", c.ID), buf.Bytes(), true)
}

// HTTP: GET /api/challenges/{id}/leaderboard.png
func (h *ScoreHandler) HandleChartPNG(w http.ResponseWriter, r *http.Request) {
	c, entries, err := h.leaderboard(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := leaderboard.RenderPNG(&buf, c.Title, entries); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeFile(w, "image/png", fmt.Sprintf("leaderboard-%d.png", c.ID), buf.Bytes(), false)
}

// leaderboard checks the challenge exists (the aggregator alone would
// answer an empty board) and computes the ranking.
func (h *ScoreHandler) leaderboard(r *http.Request) (*model.Challenge, []model.LeaderboardEntry, error) {
	challengeID, err := pathID(r, "id")
	if err != nil {
		return nil, nil, err
	}
	c, err := h.challenges.Get(r.Context(), challengeID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := h.scores.ComputeLeaderboard(r.Context(), challengeID)
	if err != nil {
		return nil, nil, err
	}
	return c, entries, nil
}

func (h *ScoreHandler) writeFile(w http.ResponseWriter, contentType, filename string, body []byte, attachment bool) {
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("export write failed", slog.String("file", filename), slog.String("error", err.Error()))
	}
}
