package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dvcrn/adboard/internal/auth"
	"github.com/dvcrn/adboard/internal/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adsPath     = "/api/ads/"
	profilePath = "/api/profile/me/"
)

func refreshReturns(t *testing.T, wantRefresh string, status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode refresh body: %v", err)
		}
		if req.Refresh != wantRefresh {
			t.Errorf("refresh token = %q, want %q", req.Refresh, wantRefresh)
		}
		writeJSON(w, status, body)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New("http://api.example.com", nil)
	assert.Error(t, err)

	_, err = New("/relative", credentials.NewMemoryStore())
	assert.Error(t, err)

	c, err := New("https://api.example.com", credentials.NewMemoryStore())
	require.NoError(t, err)
	assert.NotNil(t, c.Store())
}

func TestIssue_AttachesStoredAccessToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(adsPath, respond(http.StatusOK, `{"results":[]}`))

	store := seed(t, map[string]string{credentials.KeyAccessToken: "a1"})
	c, rec, _ := newTestClient(t, mux, store)

	resp, err := c.Issue(context.Background(), Get(adsPath, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"results":[]}`, string(resp.Body))

	reqs := rec.requests(adsPath)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer a1", reqs[0].Auth)
}

func TestIssue_NoAccessTokenSendsNoAuthorization(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(adsPath, respond(http.StatusOK, `[]`))

	c, rec, _ := newTestClient(t, mux, credentials.NewMemoryStore())

	_, err := c.Issue(context.Background(), Get(adsPath, nil))
	require.NoError(t, err)
	assert.Empty(t, rec.requests(adsPath)[0].Auth)
}

func TestIssue_StoreReadFailureSendsWithoutToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(adsPath, respond(http.StatusOK, `[]`))

	c, rec, _ := newTestClient(t, mux, brokenStore{})

	_, err := c.Issue(context.Background(), Get(adsPath, nil))
	require.NoError(t, err)
	assert.Empty(t, rec.requests(adsPath)[0].Auth)
}

func TestIssue_QueryAndBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ads/7/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "adboard/1.0", r.Header.Get("User-Agent"))
		writeJSON(w, http.StatusOK, `{"id":7}`)
	})
	mux.HandleFunc(adsPath, respond(http.StatusOK, `[]`))

	c, rec, _ := newTestClient(t, mux, credentials.NewMemoryStore())

	var out struct {
		ID int `json:"id"`
	}
	err := c.Do(context.Background(), Put("/api/ads/7/", map[string]string{"title": "Bike"}), &out)
	require.NoError(t, err)
	assert.Equal(t, 7, out.ID)
	assert.JSONEq(t, `{"title":"Bike"}`, rec.requests("/api/ads/7/")[0].Body)

	_, err = c.Issue(context.Background(), Get(adsPath, url.Values{"search": {"red bike"}, "page": {"2"}}))
	require.NoError(t, err)
	q, err := url.ParseQuery(rec.requests(adsPath)[0].Query)
	require.NoError(t, err)
	assert.Equal(t, "red bike", q.Get("search"))
	assert.Equal(t, "2", q.Get("page"))
}

func TestIssue_BaseURLWithPathPrefix(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/api/auth/login/", respond(http.StatusUnauthorized, `{"detail":"No active account found with the given credentials"}`))

	rec := &apiRecorder{}
	server := newServerFor(t, rec, mux)
	store := seed(t, map[string]string{credentials.KeyRefreshToken: "r1"})
	c, err := New(server+"/v1", store)
	require.NoError(t, err)

	_, err = c.Issue(context.Background(), Post(auth.LoginPath, map[string]string{}))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, auth.LoginPath, apiErr.Path)
	assert.Equal(t, 0, rec.count("/v1"+auth.RefreshPath), "login must not trigger recovery")

	// Absolute URLs on the same host are matched without the base prefix.
	_, err = c.Issue(context.Background(), Post(server+"/v1"+auth.LoginPath, map[string]string{}))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, auth.LoginPath, apiErr.Path)
	assert.Equal(t, 0, rec.count("/v1"+auth.RefreshPath))
}

func TestIssue_NonUnauthorizedErrorPassesThrough(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(adsPath, respond(http.StatusBadRequest, `{"price":["Ensure this value is greater than or equal to 0."]}`))
	mux.HandleFunc(auth.RefreshPath, respond(http.StatusOK, `{"access":"a2"}`))

	store := seed(t, map[string]string{
		credentials.KeyAccessToken:  "a1",
		credentials.KeyRefreshToken: "r1",
	})
	c, rec, _ := newTestClient(t, mux, store)

	_, err := c.Issue(context.Background(), Post(adsPath, map[string]interface{}{"price": -1}))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "price: Ensure this value is greater than or equal to 0.", apiErr.Message())
	assert.Equal(t, 0, rec.count(auth.RefreshPath))
	assert.Equal(t, 1, rec.count(adsPath))

	access, _ := store.Get(context.Background(), credentials.KeyAccessToken)
	assert.Equal(t, "a1", access)
}

func TestIssue_ForbiddenDoesNotRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(adsPath, respond(http.StatusForbidden, `{"detail":"You do not have permission to perform this action."}`))
	mux.HandleFunc(auth.RefreshPath, respond(http.StatusOK, `{"access":"a2"}`))

	store := seed(t, map[string]string{credentials.KeyAccessToken: "a1", credentials.KeyRefreshToken: "r1"})
	c, rec, _ := newTestClient(t, mux, store)

	_, err := c.Issue(context.Background(), Delete(adsPath))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, 0, rec.count(auth.RefreshPath))
}

func TestIssue_TransportError(t *testing.T) {
	mux := http.NewServeMux()
	c, _, server := newTestClient(t, mux, credentials.NewMemoryStore())
	server.Close()

	_, err := c.Issue(context.Background(), Get(adsPath, nil))
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.MethodGet, transportErr.Method)
	assert.Contains(t, transportErr.URL, adsPath)
}

// Refresh token present, access token expired: one refresh, one replay.
func TestIssue_RecoversWithRefreshedToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(adsPath, protected("a2", `{"results":[{"id":1}]}`))
	mux.HandleFunc(auth.RefreshPath, refreshReturns(t, "r1", http.StatusOK, `{"access":"a2"}`))

	store := seed(t, map[string]string{credentials.KeyRefreshToken: "r1"})
	obs := &fakeObserver{}
	c, rec, _ := newTestClient(t, mux, store, WithObserver(obs))

	resp, err := c.Issue(context.Background(), Get(adsPath, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[{"id":1}]}`, string(resp.Body))

	assert.Equal(t, map[string]string{
		credentials.KeyAccessToken:  "a2",
		credentials.KeyLegacyToken:  "a2",
		credentials.KeyRefreshToken: "r1",
	}, store.Snapshot())

	reqs := rec.requests(adsPath)
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].Auth)
	assert.Equal(t, "Bearer a2", reqs[1].Auth)
	assert.Equal(t, 1, rec.count(auth.RefreshPath))

	assert.Equal(t, []string{RecoveryReplayed}, obs.recoveries)
}

func TestIssue_ReplayPreservesMethodAndBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ads/3/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a2" {
			writeJSON(w, http.StatusUnauthorized, `{"detail":"Given token not valid for any token type"}`)
			return
		}
		assert.Equal(t, "req-1", r.Header.Get("X-Request-Id"))
		writeJSON(w, http.StatusOK, `{"id":3,"title":"New"}`)
	})
	mux.HandleFunc(auth.RefreshPath, respond(http.StatusOK, `{"access":"a2"}`))

	store := seed(t, map[string]string{credentials.KeyAccessToken: "a1", credentials.KeyRefreshToken: "r1"})
	c, rec, _ := newTestClient(t, mux, store)

	req := Put("/api/ads/3/", map[string]string{"title": "New"})
	req.Header = http.Header{"X-Request-Id": {"req-1"}}
	_, err := c.Issue(context.Background(), req)
	require.NoError(t, err)

	reqs := rec.requests("/api/ads/3/")
	require.Len(t, reqs, 2)
	assert.Equal(t, "Bearer a1", reqs[0].Auth)
	assert.Equal(t, "Bearer a2", reqs[1].Auth)
	for _, r := range reqs {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.JSONEq(t, `{"title":"New"}`, r.Body)
	}
	assert.Equal(t, http.Header{"X-Request-Id": {"req-1"}}, req.Header, "caller header must not be modified")
}

func TestIssue_ReplayIsAttemptedOnlyOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(adsPath, respond(http.StatusUnauthorized, `{"detail":"Token is blacklisted"}`))
	mux.HandleFunc(auth.RefreshPath, respond(http.StatusOK, `{"access":"a2"}`))

	store := seed(t, map[string]string{credentials.KeyAccessToken: "a1", credentials.KeyRefreshToken: "r1"})
	c, rec, _ := newTestClient(t, mux, store)

	_, err := c.Issue(context.Background(), Get(adsPath, nil))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Token is blacklisted", apiErr.Message())

	assert.Equal(t, 2, rec.count(adsPath))
	assert.Equal(t, 1, rec.count(auth.RefreshPath))

	// The refreshed token stays; only a failed refresh clears the session.
	access, _ := store.Get(context.Background(), credentials.KeyAccessToken)
	assert.Equal(t, "a2", access)
}

func TestIssue_AuthEndpointsNeverRecover(t *testing.T) {
	for _, path := range []string{auth.LoginPath, auth.RegisterPath, auth.RefreshPath, auth.LoginPath + "extra/"} {
		t.Run(path, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/auth/", respond(http.StatusUnauthorized, `{"detail":"No active account found with the given credentials"}`))

			store := seed(t, map[string]string{credentials.KeyAccessToken: "a1", credentials.KeyRefreshToken: "r1"})
			c, rec, _ := newTestClient(t, mux, store)

			_, err := c.Issue(context.Background(), Post(path, map[string]string{}))
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
			assert.Equal(t, 1, rec.count(path))
			if path != auth.RefreshPath {
				assert.Equal(t, 0, rec.count(auth.RefreshPath))
			}
			assert.Len(t, store.Snapshot(), 2, "store must be untouched")
		})
	}
}

// No session at all: the 401 cannot be recovered.
func TestIssue_NoRefreshTokenClearsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(profilePath, respond(http.StatusUnauthorized, `{"detail":"Authentication credentials were not provided."}`))
	mux.HandleFunc(auth.RefreshPath, respond(http.StatusOK, `{"access":"a2"}`))

	store := credentials.NewMemoryStore()
	obs := &fakeObserver{}
	c, rec, _ := newTestClient(t, mux, store, WithObserver(obs))

	_, err := c.Issue(context.Background(), Get(profilePath, nil))
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Empty(t, store.Snapshot())
	assert.Equal(t, 0, rec.count(auth.RefreshPath))
	assert.Equal(t, 1, rec.count(profilePath))
	assert.Equal(t, []string{RecoveryNoRefreshToken}, obs.recoveries)
}

func TestIssue_AccessWithoutRefreshClearsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(profilePath, respond(http.StatusUnauthorized, `{"detail":"Token expired"}`))

	store := seed(t, map[string]string{credentials.KeyAccessToken: "a1", credentials.KeyLegacyToken: "a1"})
	c, _, _ := newTestClient(t, mux, store)

	_, err := c.Issue(context.Background(), Get(profilePath, nil))
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Empty(t, store.Snapshot())
}

func TestIssue_RefreshFailureClearsSession(t *testing.T) {
	cases := []struct {
		name    string
		refresh http.HandlerFunc
	}{
		{"rejected", respond(http.StatusUnauthorized, `{"detail":"Token is invalid or expired","code":"token_not_valid"}`)},
		{"server error", respond(http.StatusInternalServerError, `<html>oops</html>`)},
		{"missing access", respond(http.StatusOK, `{"refresh":"r2"}`)},
		{"malformed body", respond(http.StatusOK, `not json`)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc(adsPath, protected("a2", `[]`))
			mux.HandleFunc(auth.RefreshPath, tc.refresh)

			store := seed(t, map[string]string{
				credentials.KeyAccessToken:  "a1",
				credentials.KeyLegacyToken:  "a1",
				credentials.KeyRefreshToken: "r1",
			})
			obs := &fakeObserver{}
			c, rec, _ := newTestClient(t, mux, store, WithObserver(obs))

			_, err := c.Issue(context.Background(), Get(adsPath, nil))
			assert.ErrorIs(t, err, ErrRefreshFailed)
			assert.Empty(t, store.Snapshot())
			assert.Equal(t, 1, rec.count(adsPath), "no replay after a failed refresh")
			assert.Equal(t, 1, rec.count(auth.RefreshPath))
			assert.Equal(t, []string{RecoveryRefreshFailed}, obs.recoveries)
		})
	}
}

func TestIssue_RefreshNetworkFailureClearsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(adsPath, protected("a2", `[]`))

	store := seed(t, map[string]string{credentials.KeyAccessToken: "a1", credentials.KeyRefreshToken: "r1"})
	rec := &apiRecorder{}
	server := newServerFor(t, rec, mux)

	netErr := errors.New("connection reset by peer")
	hc := doFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == auth.RefreshPath {
			return nil, netErr
		}
		return http.DefaultClient.Do(req)
	})
	c, err := New(server, store, WithHTTPClient(hc))
	require.NoError(t, err)

	_, err = c.Issue(context.Background(), Get(adsPath, nil))
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.ErrorIs(t, err, netErr)
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.Empty(t, store.Snapshot())
}

func TestIssue_RefreshStoreWriteFailureStillReplays(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(adsPath, protected("a2", `{"ok":true}`))
	mux.HandleFunc(auth.RefreshPath, respond(http.StatusOK, `{"access":"a2"}`))

	store := &readOnlyStore{MemoryStore: seed(t, map[string]string{credentials.KeyRefreshToken: "r1"})}
	c, rec, _ := newTestClient(t, mux, store)

	resp, err := c.Issue(context.Background(), Get(adsPath, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, "Bearer a2", rec.requests(adsPath)[1].Auth)
}

// Two requests failing with 401 at the same time share one refresh.
func TestIssue_ConcurrentUnauthorizedShareRefresh(t *testing.T) {
	var (
		mu         sync.Mutex
		rejected   int
		bothFailed = make(chan struct{})
	)

	mux := http.NewServeMux()
	mux.HandleFunc(adsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer a2" {
			writeJSON(w, http.StatusOK, `[]`)
			return
		}
		mu.Lock()
		rejected++
		if rejected == 2 {
			close(bothFailed)
		}
		mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, `{"detail":"Token expired"}`)
	})
	mux.HandleFunc(auth.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-bothFailed:
		case <-time.After(2 * time.Second):
			t.Error("second request never failed")
		}
		// Give the second caller time to join the in-flight refresh.
		time.Sleep(200 * time.Millisecond)
		writeJSON(w, http.StatusOK, `{"access":"a2"}`)
	})

	store := seed(t, map[string]string{credentials.KeyAccessToken: "a1", credentials.KeyRefreshToken: "r1"})
	c, rec, _ := newTestClient(t, mux, store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Issue(context.Background(), Get(adsPath, nil))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, rec.count(auth.RefreshPath))
	assert.Equal(t, 4, rec.count(adsPath))
	assert.Equal(t, "a2", store.Snapshot()[credentials.KeyAccessToken])
}

func TestIssue_CanceledContextStillCompletesRefresh(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc(adsPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"detail":"Token expired"}`)
	})
	mux.HandleFunc(auth.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		cancel()
		writeJSON(w, http.StatusOK, `{"access":"a2"}`)
	})

	store := seed(t, map[string]string{credentials.KeyAccessToken: "a1", credentials.KeyRefreshToken: "r1"})
	c, _, _ := newTestClient(t, mux, store)

	_, err := c.Issue(ctx, Get(adsPath, nil))
	// The replay is bound to the caller's context and fails, but the refreshed
	// token is kept for the next request.
	require.Error(t, err)
	assert.Equal(t, "a2", store.Snapshot()[credentials.KeyAccessToken])
}

func TestIssue_ObservesRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(adsPath, protected("a2", `[]`))
	mux.HandleFunc(auth.RefreshPath, respond(http.StatusOK, `{"access":"a2"}`))

	store := seed(t, map[string]string{credentials.KeyRefreshToken: "r1"})
	obs := &fakeObserver{}
	c, _, _ := newTestClient(t, mux, store, WithObserver(obs))

	_, err := c.Issue(context.Background(), Get(adsPath, nil))
	require.NoError(t, err)

	assert.Equal(t, []observedRequest{
		{http.MethodGet, adsPath, http.StatusUnauthorized},
		{http.MethodPost, auth.RefreshPath, http.StatusOK},
		{http.MethodGet, adsPath, http.StatusOK},
	}, obs.requests)
}

func TestResponseDecode(t *testing.T) {
	var out map[string]int
	resp := &Response{Body: []byte(`{"count":3}`)}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, 3, out["count"])

	empty := &Response{}
	assert.NoError(t, empty.Decode(&out))

	bad := &Response{Body: []byte(`{`)}
	assert.Error(t, bad.Decode(&out))
}

// readOnlyStore accepts reads but fails writes.
type readOnlyStore struct {
	*credentials.MemoryStore
}

func (s *readOnlyStore) Set(context.Context, string, string) error { return errBrokenStore }
