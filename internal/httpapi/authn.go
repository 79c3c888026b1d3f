package httpapi

import (
	"net/http"
	"strings"
	"time"

	"postboard.dev/internal/audit"
	"postboard.dev/internal/auth"
	"postboard.dev/internal/obs"
)

const (
	authHeader        = "Authorization"
	tokenCookieName   = "authorization"
	sessionCookieName = "postboard_sid"
)

// requireAuth resolves the request credential and only then runs next.
// Every failure ends the request here.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.resolver == nil {
			writeError(w, r, http.StatusServiceUnavailable, "authentication unavailable")
			return
		}
		credential := a.credentialFrom(r)
		principal, err := a.resolver.Resolve(r.Context(), credential)
		if err != nil {
			a.rejectCredential(w, r, err)
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithCredential(ctx, credential)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// credentialFrom reads the credential for the configured mode. Token mode
// prefers the authorization cookie and falls back to the header.
func (a *API) credentialFrom(r *http.Request) string {
	if a.accounts != nil && a.accounts.Mode() == auth.ModeSession {
		if c, err := r.Cookie(sessionCookieName); err == nil {
			return strings.TrimSpace(c.Value)
		}
		return ""
	}
	if c, err := r.Cookie(tokenCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	return strings.TrimSpace(r.Header.Get(authHeader))
}

func (a *API) rejectCredential(w http.ResponseWriter, r *http.Request, err error) {
	if !auth.IsCredentialFailure(err) {
		writeInternal(w, r, "authentication error", err)
		return
	}
	kind := auth.FailureKind(err)
	obs.ObserveAuthFailure(kind)
	obs.Logger().WarnContext(r.Context(), "credential rejected",
		"request_id", audit.RequestIDFromContext(r.Context()),
		"kind", kind,
		"path", r.URL.Path,
	)

	w.Header().Set("WWW-Authenticate", auth.Scheme)
	switch kind {
	case "malformed_credential":
		writeError(w, r, http.StatusBadRequest, "malformed credential")
	case "missing_credential":
		writeError(w, r, http.StatusUnauthorized, "missing credential")
	case "credential_expired":
		writeError(w, r, http.StatusUnauthorized, "credential expired")
	case "credential_forged":
		writeError(w, r, http.StatusUnauthorized, "invalid credential")
	default:
		writeError(w, r, http.StatusUnauthorized, "user not found")
	}
}

func (a *API) setCredentialCookie(w http.ResponseWriter, mode auth.Mode, credential string, expires time.Time) {
	name, value := tokenCookieName, auth.Scheme+" "+credential
	if mode == auth.ModeSession {
		name, value = sessionCookieName, credential
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearCredentialCookie(w http.ResponseWriter, mode auth.Mode) {
	name := tokenCookieName
	if mode == auth.ModeSession {
		name = sessionCookieName
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
