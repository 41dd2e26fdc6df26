package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// MalformedExtractionError means the completion service returned JSON that
// could not be recovered after all parse attempts. It is never retried
// automatically: fixing it requires a prompt revision or manual reprocessing.
type MalformedExtractionError struct {
	ReportID string
	Reason   string
}

func (e *MalformedExtractionError) Error() string {
	return fmt.Sprintf("malformed extraction for report %s: %s", e.ReportID, e.Reason)
}

// IsMalformedExtraction reports whether err chains to a MalformedExtractionError.
func IsMalformedExtraction(err error) bool {
	var me *MalformedExtractionError
	return errors.As(err, &me)
}

// SchemaViolationError records an extracted value outside an allowed
// enumeration. It is informational: callers coerce the value and flag the
// record for review instead of failing the report.
type SchemaViolationError struct {
	Field string
	Value string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation: %s=%q", e.Field, e.Value)
}

// TransientError wraps an error that is safe to retry (store unavailability,
// 429/5xx responses, network timeouts).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures). Malformed extractions are never
// transient regardless of the chain.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsMalformedExtraction(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP and DB clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"database is locked",
		"too many connections",
		"server closed idle connection",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
