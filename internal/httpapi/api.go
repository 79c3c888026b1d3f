package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"postboard.dev/internal/account"
	"postboard.dev/internal/auth"
	"postboard.dev/internal/board"
	"postboard.dev/internal/obs"
	"postboard.dev/internal/profile"
)

const serviceName = "postboard-api"

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Resolver auth.Resolver
	Accounts *account.Service
	Profiles *profile.Engine
	Board    *board.Service

	Ready        readinessChecker
	Version      string
	CookieSecure bool
	MaxBodyBytes int64
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	resolver auth.Resolver
	accounts *account.Service
	profiles *profile.Engine
	board    *board.Service

	ready        readinessChecker
	version      string
	cookieSecure bool
	maxBodyBytes int64

	createPostHandler    http.Handler
	createCommentHandler http.Handler
}

func New(d Deps) *API {
	a := &API{
		mux:          http.NewServeMux(),
		resolver:     d.Resolver,
		accounts:     d.Accounts,
		profiles:     d.Profiles,
		board:        d.Board,
		ready:        d.Ready,
		version:      d.Version,
		cookieSecure: d.CookieSecure,
		maxBodyBytes: d.MaxBodyBytes,
	}
	if a.ready == nil {
		a.ready = ReadyProbe{}
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}

	// health/ready
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// accounts
	a.mux.HandleFunc("/api/sign-up", a.signUp)
	a.mux.HandleFunc("/api/sign-in", a.signIn)
	a.mux.Handle("/api/sign-out", a.requireAuth(http.HandlerFunc(a.signOut)))

	// profile
	a.mux.Handle("/api/users", a.requireAuth(http.HandlerFunc(a.users)))
	a.mux.Handle("/api/users/history", a.requireAuth(http.HandlerFunc(a.userHistory)))

	// posts: reads are public, writes go through the gate
	a.createPostHandler = a.requireAuth(http.HandlerFunc(a.createPost))
	a.createCommentHandler = a.requireAuth(http.HandlerFunc(a.createComment))
	a.mux.HandleFunc("/api/posts", a.posts)
	a.mux.HandleFunc("/api/posts/{postId}", a.post)
	a.mux.HandleFunc("/api/posts/{postId}/comments", a.comments)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})

	return a
}

// Handler returns the mux wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = SecurityHeaders(h)
	h = Recover(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
