package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/rankboard/internal/service"
)

// SubmissionHandler serves PDF uploads and downloads.
type SubmissionHandler struct {
	submissions *service.SubmissionService
	logger      *slog.Logger
}

func NewSubmissionHandler(submissions *service.SubmissionService, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, logger: logger}
}

// HandleList returns the submissions the caller may see: all of them for
// admins, only their own for users.
//
// HTTP: GET /api/challenges/{id}/submissions
func (h *SubmissionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	challengeID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.submissions.ListVisible(r.Context(), challengeID, who)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleSubmit creates or replaces the caller's submission. 201 on the
// first upload, 200 on a replacement.
//
// HTTP: POST or PUT /api/challenges/{id}/submissions (multipart field "submission")
//
// UPLOAD RULES:
//   - at most 50 MiB
//   - the client file name must not contain spaces
//   - the content must be a PDF by its magic bytes, whatever the extension
func (h *SubmissionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	challengeID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	up, err := openUpload(w, r, submissionField, MaxSubmissionBytes)
	if err != nil {
		writeUploadError(w, r, err, MaxSubmissionBytes)
		return
	}
	defer up.Close()

	if err := checkSubmissionFile(up); err != nil {
		h.logger.Info("submission rejected",
			slog.Int64("user_id", who.UserID),
			slog.String("filename", up.header.Filename),
			slog.String("detected", up.mimeType.String()),
		)
		writeError(w, r, err)
		return
	}

	sub, created, err := h.submissions.Submit(r.Context(), challengeID, who.UserID, up.file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, sub)
}

// HandleDownload streams the PDF to an admin or its owner.
//
// HTTP: GET /api/submissions/{id}/download
func (h *SubmissionHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	sub, rc, err := h.submissions.Open(r.Context(), id, who)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", pdfMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sub.Filename))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("submission stream interrupted",
			slog.Int64("submission_id", sub.ID),
			slog.String("error", err.Error()),
		)
	}
}
