package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dvcrn/adboard/internal/credentials"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method    string
	Path      string
	Query     string
	Auth      string
	Body      string
	RequestID string
}

// apiRecorder records every request the fake marketplace API receives.
type apiRecorder struct {
	mu   sync.Mutex
	reqs []recorded
}

func (a *apiRecorder) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		a.mu.Lock()
		a.reqs = append(a.reqs, recorded{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Auth:      r.Header.Get("Authorization"),
			Body:      string(body),
			RequestID: r.Header.Get("X-Request-Id"),
		})
		a.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (a *apiRecorder) requests(path string) []recorded {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []recorded
	for _, r := range a.reqs {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (a *apiRecorder) count(path string) int {
	return len(a.requests(path))
}

func newTestClient(t *testing.T, mux *http.ServeMux, store credentials.Store, opts ...Option) (*Client, *apiRecorder, *httptest.Server) {
	t.Helper()
	rec := &apiRecorder{}
	server := httptest.NewServer(rec.wrap(mux))
	t.Cleanup(server.Close)

	c, err := New(server.URL, store, opts...)
	require.NoError(t, err)
	return c, rec, server
}

func newServerFor(t *testing.T, rec *apiRecorder, mux *http.ServeMux) string {
	t.Helper()
	server := httptest.NewServer(rec.wrap(mux))
	t.Cleanup(server.Close)
	return server.URL
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

// protected answers 401 unless the request carries Bearer <valid>.
func protected(valid, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+valid {
			writeJSON(w, http.StatusUnauthorized, `{"detail":"Token has expired."}`)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, body)
	}
}

func seed(t *testing.T, values map[string]string) *credentials.MemoryStore {
	t.Helper()
	s := credentials.NewMemoryStore()
	for k, v := range values {
		require.NoError(t, s.Set(context.Background(), k, v))
	}
	return s
}

// doFunc adapts a function to HTTPClient.
type doFunc func(req *http.Request) (*http.Response, error)

func (f doFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// brokenStore fails every operation.
type brokenStore struct{}

var errBrokenStore = errors.New("storage unavailable")

func (brokenStore) Get(context.Context, string) (string, error) { return "", errBrokenStore }
func (brokenStore) Set(context.Context, string, string) error   { return errBrokenStore }
func (brokenStore) Remove(context.Context, string) error        { return errBrokenStore }

type observedRequest struct {
	Method string
	Path   string
	Status int
}

type fakeObserver struct {
	mu         sync.Mutex
	requests   []observedRequest
	recoveries []string
}

func (o *fakeObserver) ObserveRequest(method, path string, status int, _ time.Duration) {
	o.mu.Lock()
	o.requests = append(o.requests, observedRequest{method, path, status})
	o.mu.Unlock()
}

func (o *fakeObserver) ObserveRecovery(outcome string) {
	o.mu.Lock()
	o.recoveries = append(o.recoveries, outcome)
	o.mu.Unlock()
}
