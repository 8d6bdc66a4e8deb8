package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/auth"
	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/service"
)

const oauthStateCookie = "rankboard_oauth_state"

// AuthHandler manages login, logout and the session probe.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin          -> email + password, sets the session cookie
//   - HandleLogout         -> clears the session cookie
//   - HandleSession        -> tells the SPA whether it is logged in
//   - HandleGitHubLogin    -> redirect to GitHub (when configured)
//   - HandleGitHubCallback -> exchange the code, sign in the matching account
type AuthHandler struct {
	auth        *service.AuthService
	tokens      *auth.TokenService
	github      *auth.GitHubProvider // nil when GitHub login is disabled
	frontendURL string
	secure      bool
	logger      *slog.Logger
}

func NewAuthHandler(
	authService *service.AuthService,
	tokens *auth.TokenService,
	github *auth.GitHubProvider,
	frontendURL string,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:        authService,
		tokens:      tokens,
		github:      github,
		frontendURL: frontendURL,
		secure:      secureCookies,
		logger:      logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user"`
}

// HandleLogin checks credentials and sets the session cookie.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email": "alice@example.com", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.tokens.TTL(), h.secure)
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: res.User})
}

// HandleLogout clears the session cookie. The token itself stays valid
// until it expires; without the cookie the browser no longer sends it.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secure)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleSession reports the current login state. It never answers 401.
//
// HTTP: GET /api/auth/session (behind OptionalAuth)
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	who, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	u, err := h.auth.Session(r.Context(), who)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			writeJSON(w, http.StatusOK, sessionResponse{})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: u})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived cookie and must come back
// unchanged on the callback.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, r, apperror.NotFoundMessage("GitHub login is not configured"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow and redirects back to the
// SPA with ?auth=ok, ?auth=denied or ?auth=failed.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, r, apperror.NotFoundMessage("GitHub login is not configured"))
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		writeError(w, r, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	// single use
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: user denied authorization", slog.String("error", errParam))
		h.redirectToApp(w, r, "denied")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, r, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		h.redirectToApp(w, r, "failed")
		return
	}

	res, err := h.auth.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		if !errors.Is(err, apperror.ErrUnauthorized) {
			h.logger.Error("github callback: login failed", slog.String("error", err.Error()))
		}
		h.redirectToApp(w, r, "failed")
		return
	}

	auth.SetSessionCookie(w, res.Token, h.tokens.TTL(), h.secure)
	h.redirectToApp(w, r, "ok")
}

func (h *AuthHandler) redirectToApp(w http.ResponseWriter, r *http.Request, outcome string) {
	http.Redirect(w, r, h.frontendURL+"/?auth="+outcome, http.StatusSeeOther)
}
