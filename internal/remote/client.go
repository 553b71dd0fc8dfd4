// Package remote talks to the backend's HTTP surface: serverless functions
// and the REST API used by connectivity probes.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultAttemptTimeout bounds a single HTTP attempt.
const DefaultAttemptTimeout = 60 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 8 << 20

// Auth carries the two credentials every call sends. Key goes into the
// apikey header, Bearer into Authorization; they may hold the same secret.
type Auth struct {
	Key    string
	Bearer string
}

// KeyAuth uses one credential for both headers.
func KeyAuth(key string) Auth { return Auth{Key: key, Bearer: key} }

// Client performs HTTP calls with a per-attempt timeout.
type Client struct {
	HTTP           *http.Client
	AttemptTimeout time.Duration
}

// NewClient returns a Client using http.DefaultClient's transport.
func NewClient(attemptTimeout time.Duration) *Client {
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	return &Client{HTTP: &http.Client{}, AttemptTimeout: attemptTimeout}
}

// Attempt records the outcome of one HTTP call.
type Attempt struct {
	Endpoint string
	Status   int             // 0 when the request never got a response
	Body     json.RawMessage // nil when the body was empty or not JSON
	Err      error           // transport-level failure
}

// OK reports whether the call returned HTTP 2xx.
func (a Attempt) OK() bool { return a.Err == nil && a.Status >= 200 && a.Status < 300 }

// Failure returns the failure text for a non-OK attempt.
func (a Attempt) Failure() string {
	if a.Err != nil {
		return a.Err.Error()
	}
	if msg := bodyMessage(a.Body); msg != "" {
		return fmt.Sprintf("HTTP %d: %s", a.Status, msg)
	}
	return fmt.Sprintf("HTTP %d %s", a.Status, http.StatusText(a.Status))
}

// Do sends one request. payload is JSON-encoded when non-nil.
// The response body is parsed as JSON regardless of status; parse failures
// leave Body nil without failing the attempt.
func (c *Client) Do(ctx context.Context, method, url string, auth Auth, payload any) Attempt {
	a := Attempt{Endpoint: url}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			a.Err = fmt.Errorf("encode payload: %w", err)
			return a
		}
		body = bytes.NewReader(data)
	}

	timeout := c.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, method, url, body)
	if err != nil {
		a.Err = err
		return a
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if auth.Key != "" {
		req.Header.Set("apikey", auth.Key)
	}
	if auth.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+auth.Bearer)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		a.Err = err
		slog.Debug("remote call failed", "method", method, "url", url, "err", err)
		return a
	}
	defer func() { _ = resp.Body.Close() }()

	a.Status = resp.StatusCode
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		slog.Debug("remote read body", "url", url, "err", err)
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && json.Valid(trimmed) {
		a.Body = json.RawMessage(trimmed)
	}
	slog.Debug("remote call done", "method", method, "url", url, "status", a.Status, "dur", time.Since(start))
	return a
}

// bodyMessage extracts a human-readable error from common JSON error shapes.
func bodyMessage(body json.RawMessage) string {
	if len(body) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return strings.TrimSpace(string(body))
	}
	for _, k := range []string{"error", "message", "msg", "error_description"} {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
