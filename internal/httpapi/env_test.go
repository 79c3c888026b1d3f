package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"postboard.dev/internal/account"
	"postboard.dev/internal/auth"
	"postboard.dev/internal/board"
	"postboard.dev/internal/profile"
	"postboard.dev/internal/session"
	"postboard.dev/internal/store/memory"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	t        *testing.T
	store    *memory.Store
	sessions *session.Memory
	signer   *auth.TokenSigner
	api      *API
	h        http.Handler
}

func newTestEnv(t *testing.T, mode auth.Mode, opts ...func(*memory.Store) profile.Store) *testEnv {
	t.Helper()

	store := memory.New()
	sessions := session.NewMemory()
	signer, err := auth.NewTokenSigner(auth.TokenConfig{Secret: testSecret, TTL: time.Hour})
	require.NoError(t, err)

	resolver, err := auth.NewResolver(mode, signer, sessions, store)
	require.NoError(t, err)

	accounts, err := account.NewService(store, mode,
		account.WithTokens(signer),
		account.WithSessions(sessions, time.Hour),
		account.WithPasswordCost(bcrypt.MinCost),
	)
	require.NoError(t, err)

	var profiles profile.Store = store
	for _, o := range opts {
		profiles = o(store)
	}

	api := New(Deps{
		Resolver: resolver,
		Accounts: accounts,
		Profiles: profile.NewEngine(profiles),
		Board:    board.NewService(store),
		Version:  "test",
	})
	return &testEnv{t: t, store: store, sessions: sessions, signer: signer, api: api, h: api.Handler()}
}

func (e *testEnv) do(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(e.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) signUp(email, name string) {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/sign-up", map[string]any{
		"email":    email,
		"password": "secret-pw",
		"name":     name,
		"age":      30,
		"gender":   "f",
	}, nil)
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())
}

// signIn returns headers that carry the issued credential.
func (e *testEnv) signIn(email string) http.Header {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/sign-in", map[string]any{
		"email":    email,
		"password": "secret-pw",
	}, nil)
	require.Equal(e.t, http.StatusOK, rr.Code, rr.Body.String())

	h := http.Header{}
	for _, c := range rr.Result().Cookies() {
		h.Add("Cookie", (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}
	require.NotEmpty(e.t, h.Get("Cookie"), "sign-in set no cookie")
	return h
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

// missingProfiles hides every profile, as if the row had never been written.
type missingProfiles struct {
	*memory.Store
}

func (missingProfiles) FindProfile(context.Context, int64) (profile.Snapshot, error) {
	return profile.Snapshot{}, profile.ErrProfileNotFound
}
