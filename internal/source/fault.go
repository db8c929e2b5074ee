// Package source holds the shared resilience machinery of the two
// upstream clients: the fault taxonomy, the retry policy, and the
// time-bounded cache. The clients themselves live in the tracker and
// codehost subpackages.
package source

import (
	"errors"
	"fmt"
	"net/http"
)

// FaultKind classifies an upstream failure for retry and degradation
// decisions.
type FaultKind string

const (
	// FaultRateLimit is a throttling signal; retried with exponential
	// backoff.
	FaultRateLimit FaultKind = "rate_limit"
	// FaultServer is an upstream 5xx; retried with linear backoff.
	FaultServer FaultKind = "server"
	// FaultNotFound is a 404-class miss; never retried, usually a valid
	// empty answer.
	FaultNotFound FaultKind = "not_found"
	// FaultAuth is a credential rejection; never retried.
	FaultAuth FaultKind = "auth"
	// FaultClient is any other 4xx; never retried.
	FaultClient FaultKind = "client"
)

// Fault is a classified upstream failure. It carries the operation name
// and HTTP status for logging, never the upstream response body.
type Fault struct {
	Kind   FaultKind
	Op     string
	Status int
	Err    error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s fault (status %d): %v", f.Op, f.Kind, f.Status, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Classify wraps an upstream error as a Fault based on the HTTP status.
// A nil error passes through untouched.
func Classify(op string, status int, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Kind: kindForStatus(status), Op: op, Status: status, Err: err}
}

func kindForStatus(status int) FaultKind {
	switch {
	case status == 0:
		// No response at all: a transport failure, retried like a 5xx.
		return FaultServer
	case status == http.StatusTooManyRequests || status == http.StatusForbidden:
		// GitHub signals secondary rate limits with 403.
		return FaultRateLimit
	case status >= 500:
		return FaultServer
	case status == http.StatusNotFound:
		return FaultNotFound
	case status == http.StatusUnauthorized:
		return FaultAuth
	default:
		return FaultClient
	}
}

// KindOf extracts the fault kind from an error chain. Unclassified
// errors (network timeouts, connection resets) are treated as server
// faults so they stay retryable.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return FaultServer
}

// Retryable reports whether the retry loop should attempt again.
func Retryable(err error) bool {
	switch KindOf(err) {
	case FaultRateLimit, FaultServer:
		return true
	default:
		return false
	}
}
