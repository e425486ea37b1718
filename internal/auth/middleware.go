package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "subject", id), ANY package that knows the string can
// read or shadow your value. Using a package-private type prevents collisions.
type contextKey string

const subjectKey contextKey = "subject"

// SessionCookie is the name of the cookie holding the session JWT.
const SessionCookie = "token"

// RequireAuth rejects requests without a valid session cookie with 401 and
// stores the subject id in the context of those that have one.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subjectID, err := extractSubject(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subjectID)))
		})
	}
}

// OptionalAuth extracts the subject if a valid token is present, but does
// NOT block the request if it's missing or invalid.
//
// The onboarding and dashboard routes use it: an anonymous visitor simply
// resolves to "not onboarded".
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subjectID, err := extractSubject(r, tokens); err == nil && subjectID != "" {
				r = r.WithContext(WithSubject(r.Context(), subjectID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithSubject returns a copy of ctx carrying subjectID.
func WithSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectKey, subjectID)
}

// SubjectFromContext returns the external subject id of the signed-in
// principal, or ("", false) for anonymous requests.
func SubjectFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(subjectKey).(string)
	return id, ok && id != ""
}

func extractSubject(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
