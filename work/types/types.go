package types

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// StreamKind classifies how a station delivers its audio/video bytes, which in
// turn selects the capture path. HLS stations publish an M3U8 playlist that is
// polled for discrete segment files; legacy stations expose a single endless
// Icecast/Shoutcast-style byte stream that is consumed with one long-lived
// connection.
type StreamKind int

// Stream kind constants for the two supported capture paths.
const (
	KindLegacy StreamKind = iota // single long-lived byte stream (Icecast/Shoutcast style)
	KindHLS                      // M3U8 playlist with discrete media segments
)

// String returns the configuration/display spelling of the stream kind.
func (k StreamKind) String() string {
	if k == KindHLS {
		return "hls"
	}
	return "legacy"
}

// ParseStreamKind maps a configuration string to a StreamKind. Anything that
// is not explicitly "hls" is treated as a legacy byte stream, which matches
// how unknown stations behave in practice.
func ParseStreamKind(s string) StreamKind {
	if s == "hls" {
		return KindHLS
	}
	return KindLegacy
}

// Station is the identifying record for one capturable stream source. The
// record itself is owned by the directory layer (configuration + database);
// the capture core only reads the identity fields and flips the transient
// capture flags. The flags are atomic because a start request, the capture
// loop, and an HTTP stop request may touch them from different goroutines,
// and the single-capture invariant is enforced by a compare-and-swap on
// Active (see work/registry).
type Station struct {
	UUID        string // unique station identifier, primary key everywhere
	Name        string // human-readable display name
	URL         string // source playlist or stream URL
	Kind        StreamKind
	ContentType string // last observed content type, informational
	BitRate     string // broadcast bitrate as reported by the directory, may be empty
	ChunkSize   int    // preferred read size in bytes for the legacy path, 0 = default

	Active    atomic.Bool // a capture session exists for this station
	Recording atomic.Bool // the session should keep persisting chunks
	Listening atomic.Bool // a client is monitoring this station (informational)

	Mu sync.Mutex // protects ContentType updates from the capture loop
}

// SetContentType records the content type observed on the live connection.
func (s *Station) SetContentType(ct string) {
	s.Mu.Lock()
	s.ContentType = ct
	s.Mu.Unlock()
}

// GetContentType returns the last observed content type.
func (s *Station) GetContentType() string {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.ContentType
}

// Chunk accumulates raw stream bytes between two recognized boundaries: two
// track-title transitions on the legacy path, or session start and session end
// on the HLS path. Parts is append-only; a chunk is closed (persisted or
// discarded) exactly once and then reset for the next boundary.
type Chunk struct {
	mu          sync.Mutex
	parts       [][]byte
	bytes       int64
	contentType string
}

// Append adds one read's worth of bytes to the chunk. The slice is copied so
// the caller may reuse its read buffer.
func (c *Chunk) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	buf := make([]byte, len(p))
	copy(buf, p)

	c.mu.Lock()
	c.parts = append(c.parts, buf)
	c.bytes += int64(len(p))
	c.mu.Unlock()
}

// SetContentType records the content type the chunk's bytes arrived with.
func (c *Chunk) SetContentType(ct string) {
	c.mu.Lock()
	c.contentType = ct
	c.mu.Unlock()
}

// ContentType returns the recorded content type, empty until the first
// response has been observed.
func (c *Chunk) ContentType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentType
}

// Bytes returns the total number of accumulated bytes.
func (c *Chunk) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Take removes and returns the accumulated parts, leaving the chunk empty and
// ready for the next boundary. The content type survives the reset because it
// belongs to the connection, not to one track.
func (c *Chunk) Take() [][]byte {
	c.mu.Lock()
	parts := c.parts
	c.parts = nil
	c.bytes = 0
	c.mu.Unlock()
	return parts
}

// NoTitle is the sentinel for "no track title observed yet". A chunk
// accumulated under this title is always a partial leading fragment and is
// never persisted or blacklist-checked.
const NoTitle = "no_title"

// CaptureSession is the ephemeral state of one active capture: the chunk
// being accumulated, the title that chunk belongs to, and the cancellation
// handle. Exactly one session exists per station at a time; it is created by
// the capture manager on start and destroyed when the loop exits.
type CaptureSession struct {
	Station *Station
	Chunk   *Chunk
	Cancel  context.CancelFunc

	Title           string    // title the current chunk is accumulating under
	Transitions     int       // count of observed title transitions this session
	StoreIncomplete bool      // flush buffered bytes as "_incomplete_" on stop
	StartedAt       time.Time // session creation time, informational
}

// NewCaptureSession creates the per-capture state for a station. The caller
// owns the context and passes its cancel func so an external stop request can
// unwind the loop cooperatively.
func NewCaptureSession(st *Station, cancel context.CancelFunc, storeIncomplete bool) *CaptureSession {
	return &CaptureSession{
		Station:         st,
		Chunk:           &Chunk{},
		Cancel:          cancel,
		Title:           NoTitle,
		StoreIncomplete: storeIncomplete,
		StartedAt:       time.Now(),
	}
}
