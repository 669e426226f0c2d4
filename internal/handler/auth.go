package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/service"
)

// GitHubProvider is the OAuth half of GitHub sign-in. *auth.GitHubProvider
// implements it; tests substitute a stub.
type GitHubProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

const stateCookie = "oauth_state"

// AuthHandler issues and revokes tokens.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin          → email + password → {"auth_token": ...}
//   - HandleLogout         → revoke the token the request carried
//   - HandleGitHubLogin    → redirect the browser to GitHub
//   - HandleGitHubCallback → exchange the code, sign in or register, set the token cookie
type AuthHandler struct {
	auth     *service.AuthService
	github   GitHubProvider // nil when GitHub sign-in is not configured
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, github GitHubProvider, tokenTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, github: github, tokenTTL: tokenTTL, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AuthToken string `json:"auth_token"`
}

// HandleLogin exchanges credentials for a token.
//
// HTTP: POST /api/auth/token/login/
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AuthToken: result.Token})
}

// HandleLogout revokes the current token until it would have expired, and
// clears the sign-in cookie for browser clients.
//
// HTTP: POST /api/auth/token/logout/
// Auth: Required
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	if err := h.auth.Logout(r.Context(), claims); err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleGitHubLogin redirects to GitHub's authorization page.
//
// HTTP: GET /api/auth/github/login
//
// A random state goes into a short-lived HttpOnly cookie and into the
// authorization URL; the callback only proceeds when the two match.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /api/auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Check the state against the cookie (CSRF)
//  2. Exchange the code for the GitHub profile
//  3. Sign in the account with that email, or register one
//  4. Store the token in an HttpOnly cookie and redirect to the app
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("github callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/signin?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("github callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
