package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/api/posts/12":               "/api/posts/:id",
		"/api/posts/12/comments":      "/api/posts/:id/comments",
		"/api/posts/abc":              "/api/posts/abc",
		"/api/users/history?limit=10": "/api/users/history",
		"/api/sign-up":                "/api/sign-up",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentRecordsStatus(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/posts/:id", "418"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/posts/9", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/posts/:id", "418"))
	if after != before+1 {
		t.Fatalf("expected counter to grow by one, got %v -> %v", before, after)
	}
}

func TestObserveProfileMutation(t *testing.T) {
	before := testutil.ToFloat64(profileHistoryEntries)
	ObserveProfileMutation("applied", 2)
	ObserveProfileMutation("noop", 0)
	if got := testutil.ToFloat64(profileHistoryEntries); got != before+2 {
		t.Fatalf("expected +2 history entries, got %v -> %v", before, got)
	}
	if got := testutil.ToFloat64(profileMutations.WithLabelValues("noop")); got < 1 {
		t.Fatalf("expected noop outcome counted, got %v", got)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
}
