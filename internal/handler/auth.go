package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/careercoach/internal/auth"
)

const stateCookie = "oauth_state"

// IdentityProvider runs the OAuth code flow. *auth.GitHubProvider
// implements it.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.ProviderUser, error)
}

// ProfileStore keeps the provider profile for the life of a session.
// *auth.CacheDirectory implements it.
type ProfileStore interface {
	Remember(ctx context.Context, u *auth.ProviderUser) error
	Forget(ctx context.Context, subjectID string) error
}

// PageInvalidator drops cached renders of a path. *middleware.PageCache
// implements it.
type PageInvalidator interface {
	Invalidate(ctx context.Context, path string) error
}

// AuthHandler manages the GitHub OAuth login flow and session cookies.
//
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → exchange the code, remember the profile, issue a JWT
//   - HandleLogout         → forget the profile and clear the JWT cookie
//
// Both session changes drop the cached dashboard so "/" is rendered again
// for the new session state.
//
// The local user row is not touched here. It is provisioned lazily by the
// onboarding resolver on the next request that carries the session.
type AuthHandler struct {
	provider     IdentityProvider
	tokens       *auth.TokenService
	profiles     ProfileStore
	pages        PageInvalidator
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(
	provider IdentityProvider,
	tokens *auth.TokenService,
	profiles ProfileStore,
	pages PageInvalidator,
	secureCookie bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:     provider,
		tokens:       tokens,
		profiles:     profiles,
		pages:        pages,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state is stored in a short-lived HttpOnly cookie and checked on
// callback, proving the callback was started by this server.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the provider profile
//  3. Remember the profile under its subject id for the session lifetime
//  4. Issue a JWT (sub = subject id) in an HttpOnly cookie
//  5. Redirect to the dashboard
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for the provider profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	identity, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 3: Remember the profile ---
	if err := h.profiles.Remember(r.Context(), identity); err != nil {
		h.logger.Error("auth callback: storing profile failed",
			slog.String("subject", identity.SubjectID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}
	h.invalidateDashboard(r.Context(), identity.SubjectID)

	// --- Step 4: Issue JWT cookie ---
	tokenStr, err := h.tokens.Generate(identity.SubjectID)
	if err != nil {
		h.logger.Error("auth callback: token generation failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    tokenStr,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL() / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("user authenticated", slog.String("subject", identity.SubjectID))

	// --- Step 5: Redirect to the dashboard ---
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout forgets the cached profile and clears the JWT cookie.
//
// HTTP: POST /auth/logout
//
// POST rather than GET: logout changes state, and a GET could be triggered
// cross-site or by a browser prefetch.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if subjectID, ok := auth.SubjectFromContext(r.Context()); ok {
		if err := h.profiles.Forget(r.Context(), subjectID); err != nil {
			h.logger.Warn("logout: forgetting profile failed",
				slog.String("subject", subjectID),
				slog.String("error", err.Error()),
			)
		}
		h.invalidateDashboard(r.Context(), subjectID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// invalidateDashboard is best effort. A failure leaves a stale page for at
// most one cache TTL.
func (h *AuthHandler) invalidateDashboard(ctx context.Context, subjectID string) {
	if h.pages == nil {
		return
	}
	if err := h.pages.Invalidate(ctx, "/"); err != nil {
		h.logger.Warn("dashboard invalidation failed",
			slog.String("subject", subjectID),
			slog.String("error", err.Error()),
		)
	}
}
