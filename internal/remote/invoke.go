package remote

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// ErrNoEndpoint is returned when Invoke receives no candidates.
var ErrNoEndpoint = errors.New("no valid endpoint to call")

// Response is the successful outcome of Invoke.
type Response struct {
	Endpoint string
	Status   int
	Body     json.RawMessage // nil when the body was not JSON
	Attempts []Attempt       // includes the successful one, last
}

// Decode unmarshals the body into v. A nil body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// InvokeError aggregates every failed attempt. Cause is set when the
// caller's context ended the loop; candidates after that are not attempted.
type InvokeError struct {
	Attempts []Attempt
	LastBody json.RawMessage // last parsed error body, if any
	Cause    error
}

func (e *InvokeError) Error() string {
	if len(e.Attempts) == 0 && e.Cause == nil {
		return ErrNoEndpoint.Error()
	}
	parts := make([]string, 0, len(e.Attempts)+1)
	for _, a := range e.Attempts {
		parts = append(parts, a.Endpoint+": "+a.Failure())
	}
	if e.Cause != nil {
		parts = append(parts, "aborted: "+e.Cause.Error())
	}
	msg := strings.Join(parts, "; ")
	if len(e.LastBody) > 0 {
		msg += " (last response: " + string(e.LastBody) + ")"
	}
	return msg
}

func (e *InvokeError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	if len(e.Attempts) == 0 {
		return ErrNoEndpoint
	}
	return nil
}

// DecodeLast unmarshals the last parsed error body into v and reports
// whether there was one.
func (e *InvokeError) DecodeLast(v any) bool {
	if len(e.LastBody) == 0 {
		return false
	}
	return json.Unmarshal(e.LastBody, v) == nil
}

// Invoke POSTs payload to each candidate in order and returns the first
// HTTP 2xx response. Application-level failures inside a 2xx body do not
// trigger fallback. When every candidate fails, or ctx ends the loop, the
// error is *InvokeError; in the latter case it wraps ctx.Err().
func (c *Client) Invoke(ctx context.Context, candidates []string, auth Auth, payload any) (*Response, error) {
	if len(candidates) == 0 {
		return nil, &InvokeError{}
	}
	ierr := &InvokeError{}
	for _, url := range candidates {
		if err := ctx.Err(); err != nil {
			ierr.Cause = err
			break
		}
		a := c.Do(ctx, http.MethodPost, url, auth, payload)
		if a.OK() {
			return &Response{
				Endpoint: url,
				Status:   a.Status,
				Body:     a.Body,
				Attempts: append(ierr.Attempts, a),
			}, nil
		}
		slog.Warn("endpoint attempt failed", "endpoint", url, "status", a.Status, "err", a.Failure())
		ierr.Attempts = append(ierr.Attempts, a)
		if len(a.Body) > 0 {
			ierr.LastBody = a.Body
		}
		if err := ctx.Err(); err != nil {
			ierr.Cause = err
			break
		}
	}
	return nil, ierr
}
