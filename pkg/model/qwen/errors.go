package qwen

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// MalformedMessageError reports a message that cannot be converted to the
// wire shape. It is never retried.
type MalformedMessageError struct {
	Reason string
}

func (e *MalformedMessageError) Error() string {
	return "qwen: malformed message: " + e.Reason
}

// UnsupportedTokenModelError reports a token-count request for a model family
// without a defined per-message formula.
type UnsupportedTokenModelError struct {
	Model string
}

func (e *UnsupportedTokenModelError) Error() string {
	return fmt.Sprintf("qwen: message token counting is not implemented for model %q", e.Model)
}

// RemoteError is a well-formed failure envelope returned by the service,
// preserving the remote code and message text for diagnostics.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString("qwen: generation failed")
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Code)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// TransportError wraps a network-level failure or a non-2xx response whose
// body did not carry a failure envelope.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("qwen: transport error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("qwen: transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TransientOnly classifies only timeouts, temporary network failures and
// overload-style remote statuses as retryable. Authentication and validation
// failures short-circuit.
func TransientOnly(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var te *TransportError
	if errors.As(err, &te) {
		if te.StatusCode >= http.StatusInternalServerError || te.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return te.StatusCode == 0
	}
	var re *RemoteError
	if errors.As(err, &re) {
		switch re.Code {
		case "Throttling", "Throttling.RateQuota", "Throttling.AllocationQuota", "InternalError", "ServiceUnavailable":
			return true
		}
		return false
	}
	var mm *MalformedMessageError
	return !errors.As(err, &mm)
}
