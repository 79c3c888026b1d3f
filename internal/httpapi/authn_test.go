package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postboard.dev/internal/auth"
)

type spyHandler struct {
	calls     int
	principal auth.Principal
}

func (s *spyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls++
	s.principal, _ = auth.PrincipalFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func serveGated(t *testing.T, env *testEnv, spy *spyHandler, setup func(r *http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if setup != nil {
		setup(req)
	}
	rr := httptest.NewRecorder()
	env.api.requireAuth(spy).ServeHTTP(rr, req)
	return rr
}

func TestRequireAuthFailsClosed(t *testing.T) {
	env := newTestEnv(t, auth.ModeToken)
	env.signUp("alice@example.com", "Alice")

	forger, err := auth.NewTokenSigner(auth.TokenConfig{Secret: []byte("another-secret-another-secret-xx"), TTL: time.Hour})
	require.NoError(t, err)
	forged, _, err := forger.Sign(1)
	require.NoError(t, err)
	ghost, _, err := env.signer.Sign(999)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Token abc", http.StatusBadRequest},
		{"scheme only", "Bearer", http.StatusBadRequest},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"forged signature", "Bearer " + forged, http.StatusUnauthorized},
		{"unknown principal", "Bearer " + ghost, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spy := &spyHandler{}
			rr := serveGated(t, env, spy, func(r *http.Request) {
				if tc.header != "" {
					r.Header.Set(authHeader, tc.header)
				}
			})
			assert.Equal(t, tc.status, rr.Code)
			assert.Zero(t, spy.calls, "protected handler must not run")
			assert.Equal(t, auth.Scheme, rr.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	env := newTestEnv(t, auth.ModeToken)
	env.signUp("alice@example.com", "Alice")

	past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := auth.NewTokenSigner(auth.TokenConfig{Secret: testSecret, TTL: time.Hour}, auth.WithClock(past))
	require.NoError(t, err)
	token, _, err := old.Sign(1)
	require.NoError(t, err)

	spy := &spyHandler{}
	rr := serveGated(t, env, spy, func(r *http.Request) {
		r.Header.Set(authHeader, "Bearer "+token)
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "credential expired")
	assert.Zero(t, spy.calls)
}

func TestRequireAuthAcceptsHeaderAndCookie(t *testing.T) {
	env := newTestEnv(t, auth.ModeToken)
	env.signUp("alice@example.com", "Alice")
	token, _, err := env.signer.Sign(1)
	require.NoError(t, err)

	spy := &spyHandler{}
	rr := serveGated(t, env, spy, func(r *http.Request) {
		r.Header.Set(authHeader, "Bearer "+token)
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(1), spy.principal.ID)

	rr = serveGated(t, env, spy, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: tokenCookieName, Value: "Bearer " + token})
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, spy.calls)
}

func TestRequireAuthSessionMode(t *testing.T) {
	env := newTestEnv(t, auth.ModeSession)
	env.signUp("alice@example.com", "Alice")
	cookies := env.signIn("alice@example.com")

	spy := &spyHandler{}
	rr := serveGated(t, env, spy, func(r *http.Request) {
		r.Header.Set("Cookie", cookies.Get("Cookie"))
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice@example.com", spy.principal.Email)

	// a token in the header means nothing in session mode
	token, _, err := env.signer.Sign(1)
	require.NoError(t, err)
	rr = serveGated(t, env, spy, func(r *http.Request) {
		r.Header.Set(authHeader, "Bearer "+token)
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serveGated(t, env, spy, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "short"})
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 1, spy.calls)
}
