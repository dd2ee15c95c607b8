package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNoRefreshToken is returned by recovery when the store holds no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshFailed is returned when the refresh endpoint rejects the token
	// or answers without a usable access token.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrInvalidInput wraps validation failures detected before a request is sent.
	ErrInvalidInput = errors.New("invalid request")
)

// TransportError is a network-level failure: no response was received.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to send %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-2xx response from the marketplace API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Header     http.Header
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message())
}

// IsUnauthorized reports whether the response was exactly 401.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Message extracts a human-readable message from the response body.
func (e *APIError) Message() string {
	return MessageFromBody(e.Body, fmt.Sprintf("request failed with status %d", e.StatusCode))
}

// MessageFromBody extracts a human-readable message from an error body:
// a JSON string is used as is, then a "detail" field, then the first field
// rendered as "field: v1, v2". Plain-text bodies are returned trimmed.
// Anything else yields fallback.
func MessageFromBody(body []byte, fallback string) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fallback
	}

	if !json.Valid(body) {
		if body[0] == '<' {
			return fallback
		}
		return string(body)
	}

	switch body[0] {
	case '"':
		var s string
		if err := json.Unmarshal(body, &s); err == nil && s != "" {
			return s
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil || len(obj) == 0 {
			return fallback
		}
		if raw, ok := obj["detail"]; ok {
			var detail string
			if err := json.Unmarshal(raw, &detail); err == nil && detail != "" {
				return detail
			}
		}
		if key, raw, ok := firstField(body); ok {
			return key + ": " + renderValue(raw)
		}
	}
	return fallback
}

// firstField returns the first key of a JSON object in document order.
func firstField(body []byte) (string, json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return "", nil, false
	}
	tok, err := dec.Token()
	if err != nil {
		return "", nil, false
	}
	key, ok := tok.(string)
	if !ok {
		return "", nil, false
	}
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", nil, false
	}
	return key, raw, true
}

func renderValue(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	switch t := v.(type) {
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	case string:
		return t
	default:
		return string(raw)
	}
}
