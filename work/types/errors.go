package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the capture loops.
var (
	// ErrStreamEnded signals a clean "done" from a body reader: the server
	// closed a legacy stream, or an HLS segment read returned no data. It is
	// an expected terminal condition for a session, not a crash.
	ErrStreamEnded = errors.New("stream ended")

	// ErrNoContentType rejects responses without a Content-Type header.
	// Endpoints that omit it are, in this domain, almost always broken
	// redirectors rather than live streams.
	ErrNoContentType = errors.New("response has no content-type header")

	// ErrCaptureActive is returned when a start request loses the
	// check-and-set race for a station that already has a session.
	ErrCaptureActive = errors.New("capture already active for station")
)

// NetworkError wraps a transport-level failure (connect, TLS, read) for a
// specific URL. At the top of a polling or consuming loop it ends the session
// rather than triggering retries.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError marks a response that arrived but cannot be used: a non-2xx
// status, a missing content type, or a playlist with no parseable segment or
// directive lines. Treated like a fetch failure for session lifetime purposes.
type ProtocolError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error on %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error on %s: %s", e.URL, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed chunk write. One lost track must not abort
// an otherwise healthy capture, so callers log it and continue.
type PersistenceError struct {
	Title string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist chunk %q: %v", e.Title, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
