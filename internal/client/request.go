package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request describes a call to the marketplace API.
// Path is either absolute or relative to the client's base URL.
// A non-nil Body is sent as JSON unless it is already a []byte.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
	Header http.Header
}

func Get(path string, query url.Values) Request {
	return Request{Method: http.MethodGet, Path: path, Query: query}
}

func Post(path string, body interface{}) Request {
	return Request{Method: http.MethodPost, Path: path, Body: body}
}

func Put(path string, body interface{}) Request {
	return Request{Method: http.MethodPut, Path: path, Body: body}
}

func Delete(path string) Request {
	return Request{Method: http.MethodDelete, Path: path}
}

// Response is a 2xx answer with its body read in full.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into out. An empty body leaves out untouched.
func (r *Response) Decode(out interface{}) error {
	if out == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// pending is an encoded request ready to send. A replay is a fresh copy with
// retried set and its own header; the original is never modified.
type pending struct {
	method  string
	url     string
	path    string
	body    []byte
	header  http.Header
	retried bool
}

func (p *pending) replay(accessToken string) *pending {
	header := p.header.Clone()
	header.Set("Authorization", "Bearer "+accessToken)
	return &pending{
		method:  p.method,
		url:     p.url,
		path:    p.path,
		body:    p.body,
		header:  header,
		retried: true,
	}
}

func (c *Client) prepare(req Request) (*pending, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, path, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}

	var body []byte
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		body = b
	case json.RawMessage:
		body = b
	default:
		body, err = json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	if body != nil && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}
	if header.Get("Accept") == "" {
		header.Set("Accept", "application/json")
	}

	return &pending{
		method: strings.ToUpper(method),
		url:    target,
		path:   path,
		body:   body,
		header: header,
	}, nil
}

// resolve returns the full URL to call and the API path used for endpoint matching.
func (c *Client) resolve(rawPath string, query url.Values) (string, string, error) {
	u, err := url.Parse(rawPath)
	if err != nil {
		return "", "", fmt.Errorf("invalid request path %q: %w", rawPath, err)
	}

	var path string
	if u.IsAbs() {
		path = u.Path
		if prefix := strings.TrimRight(c.baseURL.Path, "/"); prefix != "" && c.baseURL.Host == u.Host {
			path = strings.TrimPrefix(path, prefix)
		}
	} else {
		path = u.Path
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		joined := *c.baseURL
		joined.Path = strings.TrimRight(c.baseURL.Path, "/") + path
		joined.RawPath = ""
		joined.RawQuery = u.RawQuery
		u = &joined
	}

	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), path, nil
}
