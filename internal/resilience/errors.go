// Package resilience defines the failure taxonomy for outbound model calls.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed response body is kept on a ModelError.
const maxErrorBody = 100

// ModelError is returned when an external model call completes with a non-2xx status.
type ModelError struct {
	Model      string
	StatusCode int
	Body       string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: api error %d: %s", e.Model, e.StatusCode, e.Body)
}

// NewModelError builds a ModelError, truncating body to maxErrorBody bytes.
func NewModelError(model string, statusCode int, body []byte) *ModelError {
	b := string(body)
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return &ModelError{Model: model, StatusCode: statusCode, Body: strings.TrimSpace(b)}
}

// TimeoutError is returned when a model call exceeds its per-call budget.
type TimeoutError struct {
	Model string
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("model %s: timed out after %s", e.Model, e.After)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// MalformedResponseError marks a model reply with no decodable JSON object.
// It never leaves the normalizer.
type MalformedResponseError struct {
	Model string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("model %s: no json object in reply", e.Model)
	}
	return fmt.Sprintf("model %s: malformed reply: %v", e.Model, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// InvalidInputError is returned for request fields that cannot be interpreted,
// such as an unparseable expiry date.
type InvalidInputError struct {
	Field string
	Value string
	Err   error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a TimeoutError, a context deadline, or a
// network-level timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// Kind returns a short label for err suitable for structured logs.
func Kind(err error) string {
	var me *ModelError
	var ie *InvalidInputError
	var mr *MalformedResponseError
	switch {
	case err == nil:
		return ""
	case IsTimeout(err):
		return "timeout"
	case errors.As(err, &me):
		if IsTransientHTTPStatus(me.StatusCode) {
			return "model_transient"
		}
		return "model"
	case errors.As(err, &ie):
		return "invalid_input"
	case errors.As(err, &mr):
		return "malformed"
	default:
		return "unknown"
	}
}
