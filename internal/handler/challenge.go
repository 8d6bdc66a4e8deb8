package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/service"
)

type ChallengeHandler struct {
	challenges *service.ChallengeService
	logger     *slog.Logger
}

func NewChallengeHandler(challenges *service.ChallengeService, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges, logger: logger}
}

// Timestamps are RFC 3339, e.g. "2026-05-01T18:00:00Z".
type createChallengeRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=10000"`
	CreatedAt   *time.Time `json:"created_at"`
	Deadline    *time.Time `json:"deadline" validate:"required"`
}

type updateChallengeRequest struct {
	Title       *string    `json:"title" validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	CreatedAt   *time.Time `json:"created_at"`
	Deadline    *time.Time `json:"deadline"`
}

// challengeResponse adds the derived active flag.
type challengeResponse struct {
	model.Challenge
	IsActive bool `json:"is_active"`
}

func toChallengeResponse(c *model.Challenge, now time.Time) challengeResponse {
	return challengeResponse{Challenge: *c, IsActive: c.IsActive(now)}
}

// HTTP: GET /api/challenges
func (h *ChallengeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.challenges.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := time.Now()
	out := make([]challengeResponse, 0, len(list))
	for i := range list {
		out = append(out, toChallengeResponse(&list[i], now))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate creates a challenge owned by the calling admin.
//
// HTTP: POST /api/challenges
// REQUEST BODY: {"title": "...", "description": "...", "deadline": "2026-05-01T18:00:00Z"}
func (h *ChallengeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in := service.NewChallenge{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    *req.Deadline,
	}
	if req.CreatedAt != nil {
		in.CreatedAt = *req.CreatedAt
	}
	c, err := h.challenges.Create(r.Context(), who.UserID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChallengeResponse(c, time.Now()))
}

// HTTP: GET /api/challenges/{id}
func (h *ChallengeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.challenges.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChallengeResponse(c, time.Now()))
}

// HTTP: PUT /api/challenges/{id}
func (h *ChallengeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.challenges.Update(r.Context(), id, model.ChallengeUpdate{
		Title:       req.Title,
		Description: req.Description,
		CreatedAt:   req.CreatedAt,
		Deadline:    req.Deadline,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChallengeResponse(c, time.Now()))
}

// HandleDelete removes the challenge with its submissions and scores.
//
// HTTP: DELETE /api/challenges/{id}
func (h *ChallengeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.challenges.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
