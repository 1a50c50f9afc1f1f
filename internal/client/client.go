// Package client wraps the EkaAI REST backend. Every call is JSON in, JSON out,
// with the backend's {success, data, error} envelope unwrapped here.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ekaai-backend/internal/metrics"
	"ekaai-backend/internal/models"
)

// Error is a failure reported by the backend, or a transport failure (Status 0).
type Error struct {
	Status  int
	Code    string
	Message string
	Details []models.ErrorDetail
	// Cause is the underlying transport or read error, if any.
	Cause error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return "ekaai api: " + e.Message
	}
	return fmt.Sprintf("ekaai api: %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Fields flattens Details into field -> message.
func (e *Error) Fields() map[string]string {
	if len(e.Details) == 0 {
		return nil
	}
	out := make(map[string]string, len(e.Details))
	for _, d := range e.Details {
		out[d.Field] = d.Message
	}
	return out
}

// IsStatus reports whether err is an *Error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == status
}

type Client struct {
	baseURL string
	http    *http.Client
	rec     metrics.Recorder
	bearer  string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithRecorder(r metrics.Recorder) Option { return func(c *Client) { c.rec = r } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 20 * time.Second},
		rec:     metrics.Noop{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithBearer returns a copy that sends the given access token.
func (c *Client) WithBearer(token string) *Client {
	cp := *c
	cp.bearer = token
	return &cp
}

// call sends body (if any) and decodes the envelope. out receives envelope.data.
func (c *Client) call(ctx context.Context, method, path string, body, out any) (*models.Envelope, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, path, out)
}

func (c *Client) send(req *http.Request, endpoint string, out any) (*models.Envelope, error) {
	req.Header.Set("Accept", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	endpoint = metricEndpoint(endpoint)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.rec.RecordUpstream("rest", endpoint, 0, time.Since(start))
		return nil, &Error{Message: err.Error(), Cause: err}
	}
	defer resp.Body.Close()
	c.rec.RecordUpstream("rest", endpoint, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: "read response: " + err.Error(), Cause: err}
	}

	var env models.Envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= 300 {
				return nil, &Error{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: http.StatusText(resp.StatusCode)}
			}
			return nil, &Error{Status: resp.StatusCode, Code: "BAD_RESPONSE", Message: "response is not valid JSON"}
		}
	}

	if resp.StatusCode >= 300 || !env.Success {
		e := &Error{Status: resp.StatusCode, Code: "REQUEST_FAILED", Message: "request was not successful"}
		if resp.StatusCode >= 300 {
			e.Code = "HTTP_ERROR"
			e.Message = http.StatusText(resp.StatusCode)
		}
		if env.Error != nil {
			e.Code = env.Error.Code
			e.Message = env.Error.Message
			e.Details = env.Error.Details
		} else if env.Message != "" {
			e.Message = env.Message
		}
		return nil, e
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, &Error{Status: resp.StatusCode, Code: "BAD_RESPONSE", Message: "unexpected data shape: " + err.Error()}
		}
	}
	return &env, nil
}

// metricEndpoint drops ids and query strings so labels stay bounded.
func metricEndpoint(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func looksLikeID(s string) bool {
	if len(s) < 8 {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits > 0 && strings.ContainsAny(s, "-0123456789")
}
