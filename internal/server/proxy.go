package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/dvcrn/adboard/internal/client"
)

// forwardedRequestHeaders are copied from the caller to the API. Authorization
// is never forwarded; the proxy's own session is used instead.
var forwardedRequestHeaders = []string{"Content-Type", "Accept", "Accept-Language", "X-Request-Id"}

// hopHeaders are not copied back from the API response.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
}

func (s *Server) proxyHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error reading request body")
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	req := client.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: http.Header{},
	}
	if len(body) > 0 {
		req.Body = body
	}
	for _, h := range forwardedRequestHeaders {
		if v := r.Header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	resp, err := s.client.Issue(r.Context(), req)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	s.writeUpstream(w, resp.StatusCode, resp.Header, resp.Body)
}

// writeUpstreamError maps client errors to proxy responses. A lost session is
// checked first since a failed refresh wraps the refresh endpoint's answer.
func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *client.APIError
	var transportErr *client.TransportError

	switch {
	case errors.Is(err, client.ErrNoRefreshToken), errors.Is(err, client.ErrRefreshFailed):
		s.logger.Warn().Err(err).Str("uri", r.RequestURI).Msg("Session expired, login required")
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "session_expired", Message: err.Error()})
	case errors.As(err, &apiErr):
		s.logger.Warn().
			Int("status_code", apiErr.StatusCode).
			Str("path", apiErr.Path).
			Str("message", apiErr.Message()).
			Msg("Received error response from upstream API")
		s.writeUpstream(w, apiErr.StatusCode, apiErr.Header, apiErr.Body)
	case errors.As(err, &transportErr):
		s.logger.Error().Err(err).Msg("Error making request to marketplace API")
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream_unavailable", Message: err.Error()})
	default:
		s.logger.Error().Err(err).Msg("Failed to proxy request")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: err.Error()})
	}
}

func (s *Server) writeUpstream(w http.ResponseWriter, status int, header http.Header, body []byte) {
	for key, values := range header {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Error().Err(err).Msg("Error writing response body to client")
	}
}
