package client

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// TransportOptions configures the HTTP client built by NewHTTPClient.
type TransportOptions struct {
	Timeout time.Duration // Request timeout (default: 30s)
	// BreakerThreshold is the number of consecutive failures (transport errors
	// or 5xx) that opens the circuit. Zero disables the breaker.
	BreakerThreshold uint32
	BreakerTimeout   time.Duration // Open-state duration (default: 30s)
	Base             http.RoundTripper
}

// NewHTTPClient creates the HTTP client used for API calls: every request gets
// an X-Request-Id, and an optional circuit breaker fails fast while the API is down.
func NewHTTPClient(opts TransportOptions) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}

	var rt http.RoundTripper = &requestIDTransport{base: base}
	if opts.BreakerThreshold > 0 {
		threshold := opts.BreakerThreshold
		rt = &breakerTransport{
			base: rt,
			cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:        "marketplace-api",
				MaxRequests: 1,
				Timeout:     opts.BreakerTimeout,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= threshold
				},
			}),
		}
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: rt,
	}
}

// requestIDTransport tags outgoing requests with X-Request-Id.
type requestIDTransport struct {
	base http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("X-Request-Id") != "" {
		return t.base.RoundTrip(req)
	}
	cloned := req.Clone(req.Context())
	cloned.Header.Set("X-Request-Id", uuid.NewString())
	return t.base.RoundTrip(cloned)
}

var errUpstreamFailure = errors.New("upstream server error")

// breakerTransport counts transport errors and 5xx responses against a circuit breaker.
// 5xx responses are still returned to the caller.
type breakerTransport struct {
	base http.RoundTripper
	cb   *gobreaker.CircuitBreaker
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	_, err := t.cb.Execute(func() (interface{}, error) {
		r, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		resp = r
		if r.StatusCode >= http.StatusInternalServerError {
			return r, errUpstreamFailure
		}
		return r, nil
	})
	if errors.Is(err, errUpstreamFailure) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
