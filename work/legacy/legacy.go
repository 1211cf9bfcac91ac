package legacy

import (
	"context"
	"errors"
	"io"

	"station-recorder/work/blacklist"
	"station-recorder/work/buffer"
	"station-recorder/work/fetch"
	"station-recorder/work/logger"
	"station-recorder/work/metrics"
	"station-recorder/work/sink"
	"station-recorder/work/titles"
	"station-recorder/work/types"
)

// Consumer captures a legacy Icecast/Shoutcast-style station: one long-lived
// connection, bytes read in a loop, and the stream cut into per-track chunks
// at title transitions reported by the title source.
//
// A transition closes the chunk accumulated under the previous title. The
// closed chunk is persisted only when the previous title is real (not the
// no-title sentinel), the session has seen at least two transitions (the first
// chunk with a title still began mid-track), and the title is not
// blacklisted. Everything else is discarded.
type Consumer struct {
	Fetcher  *fetch.Fetcher
	Session  *types.CaptureSession
	Titles   titles.TitleSource
	Gate     *blacklist.Gate
	Sink     sink.Sink
	Buffers  *buffer.Pool
	ReadSize int
}

// New builds a consumer for one capture session.
func New(f *fetch.Fetcher, sess *types.CaptureSession, ts titles.TitleSource, gate *blacklist.Gate, snk sink.Sink, bufs *buffer.Pool, readSize int) *Consumer {
	if sess.Station.ChunkSize > 0 {
		readSize = sess.Station.ChunkSize
	}
	if readSize <= 0 {
		readSize = 16000
	}
	return &Consumer{
		Fetcher:  f,
		Session:  sess,
		Titles:   ts,
		Gate:     gate,
		Sink:     snk,
		Buffers:  bufs,
		ReadSize: readSize,
	}
}

// Run connects to the station and consumes it until the context is cancelled,
// the connection drops, or the broadcast ends (types.ErrStreamEnded). Returns
// nil only for cooperative cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	st := c.Session.Station

	res, err := c.Fetcher.Do(ctx, st.URL)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		logger.Error("{legacy - Run} station %s: connect failed: %v", st.Name, err)
		return err
	}
	defer res.Body.Close()

	st.SetContentType(res.ContentType)
	c.Session.Chunk.SetContentType(res.ContentType)

	logger.Info("{legacy - Run} station %s: connected (%s)", st.Name, res.ContentType)

	buf := c.Buffers.Get(c.ReadSize)
	defer c.Buffers.Put(buf)

	for {
		if ctx.Err() != nil {
			logger.Debug("{legacy - Run} station %s: stop requested", st.Name)
			return nil
		}
		if !st.Recording.Load() {
			logger.Debug("{legacy - Run} station %s: recording flag cleared", st.Name)
			return nil
		}

		if err := c.observeTitle(); err != nil {
			return err
		}

		n, err := res.Body.Read(buf.B)
		if n > 0 {
			c.Session.Chunk.Append(buf.B[:n])
			metrics.BytesCaptured.WithLabelValues("legacy").Add(float64(n))
		}
		if err == io.EOF {
			logger.Info("{legacy - Run} station %s: stream ended", st.Name)
			return types.ErrStreamEnded
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("{legacy - Run} station %s: read failed: %v", st.Name, err)
			return &types.NetworkError{URL: st.URL, Err: err}
		}
	}
}

// observeTitle samples the title source and handles a transition if the title
// changed since the last sample. An empty sample — no feed yet, or the
// between-tracks gap some stations broadcast — is not a transition: the
// current chunk stays open and keeps accumulating until a real title arrives.
func (c *Consumer) observeTitle() error {
	title, ok := c.Titles.CurrentTitle(c.Session.Station.UUID)
	if !ok || title == "" {
		return nil
	}
	if title == c.Session.Title {
		return nil
	}
	return c.transition(title)
}

// transition closes the chunk accumulated under the previous title and starts
// accumulating under the new one. The counter includes the transition being
// handled, so the second transition of a session is the first whose chunk can
// be complete.
func (c *Consumer) transition(newTitle string) error {
	sess := c.Session
	st := sess.Station
	prev := sess.Title

	sess.Transitions++
	parts := sess.Chunk.Take()
	sess.Title = newTitle

	logger.Debug("{legacy - transition} station %s: %q -> %q (transition %d, %d parts buffered)",
		st.Name, prev, newTitle, sess.Transitions, len(parts))

	if prev == types.NoTitle || sess.Transitions < 2 {
		// leading fragment, started mid-track
		logger.Debug("{legacy - transition} station %s: discarding partial chunk for %q", st.Name, prev)
		return nil
	}

	if c.Gate != nil && c.Gate.Blocked(st.UUID, prev) {
		logger.Info("{legacy - transition} station %s: %q is blacklisted, discarding", st.Name, prev)
		metrics.ChunksBlacklisted.Inc()
		return nil
	}

	rec := &sink.Record{
		Station:     st,
		Title:       prev,
		ContentType: sess.Chunk.ContentType(),
		Parts:       parts,
	}
	if err := c.Sink.Persist(rec); err != nil {
		// one lost track, the capture itself is still healthy
		logger.Error("{legacy - transition} station %s: persist failed for %q, continuing: %v", st.Name, prev, err)
		metrics.ChunksPersistFailed.Inc()
		return nil
	}
	metrics.ChunksPersisted.Inc()
	return nil
}
