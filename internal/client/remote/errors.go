package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failed remote call for the orchestrator's retry policy.
type Kind string

const (
	// KindNetwork: connection could not be made or broke mid-flight.
	KindNetwork Kind = "network"
	// KindTimeout: the call exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindClient: the server rejected the request (4xx); retrying the same
	// payload will fail again.
	KindClient Kind = "client"
	// KindServer: the server failed (5xx); safe to retry later.
	KindServer Kind = "server"
)

// Error is a classified remote call failure.
type Error struct {
	Kind   Kind
	Op     string // e.g. "create expense"
	Status int    // HTTP status, 0 for transport failures
	Err    error  // underlying cause, may be nil for pure HTTP errors
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s: %s (status %d)", e.Op, e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("remote %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying on a later cycle
// (network, timeout or 5xx). Anything else, including non-remote errors,
// is treated as permanent.
func IsTransient(err error) bool {
	var re *Error
	if !errors.As(err, &re) {
		return false
	}
	switch re.Kind {
	case KindNetwork, KindTimeout, KindServer:
		return true
	}
	return false
}

// classifyTransport maps a transport-level error (no HTTP response) to a Kind.
func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// classifyStatus maps a non-2xx HTTP status to a Kind.
func classifyStatus(status int) Kind {
	if status >= 500 {
		return KindServer
	}
	return KindClient
}
