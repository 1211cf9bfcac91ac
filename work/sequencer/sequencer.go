package sequencer

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/ratelimit"

	"station-recorder/work/buffer"
	"station-recorder/work/fetch"
	"station-recorder/work/logger"
	"station-recorder/work/metrics"
	"station-recorder/work/poller"
	"station-recorder/work/types"
)

// Sequencer walks the segment working set by increasing index and downloads
// each segment exactly once, appending its bytes to the session chunk in
// discovery order. It runs concurrently with the poller that grows the set:
// when the walk catches up to the end it idles briefly and re-checks rather
// than treating the gap as an error.
type Sequencer struct {
	Fetcher  *fetch.Fetcher
	Set      *poller.SegmentSet
	Session  *types.CaptureSession
	Buffers  *buffer.Pool
	IdleWait time.Duration
	ReadSize int
	Limiter  ratelimit.Limiter
}

// New builds a sequencer draining the given working set into the session
// chunk.
func New(f *fetch.Fetcher, set *poller.SegmentSet, sess *types.CaptureSession, bufs *buffer.Pool, idleWait time.Duration, readSize int, limiter ratelimit.Limiter) *Sequencer {
	if readSize <= 0 {
		readSize = 16000
	}
	return &Sequencer{
		Fetcher:  f,
		Set:      set,
		Session:  sess,
		Buffers:  bufs,
		IdleWait: idleWait,
		ReadSize: readSize,
		Limiter:  limiter,
	}
}

// Run downloads segments until the context is cancelled, a segment fetch
// fails, or the broadcast signals its end with a zero-byte segment (returned
// as types.ErrStreamEnded). Returns nil only for cooperative cancellation.
func (s *Sequencer) Run(ctx context.Context) error {
	st := s.Session.Station
	idx := 0

	for {
		if err := ctx.Err(); err != nil {
			logger.Debug("{sequencer - Run} station %s: stop requested after %d segments", st.Name, idx)
			return nil
		}

		url, ready := s.Set.At(idx)
		if !ready {
			// caught up with the poller, idle and re-check
			timer := time.NewTimer(s.IdleWait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
			continue
		}

		n, err := s.download(ctx, url)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("{sequencer - Run} station %s: segment %d failed: %v", st.Name, idx, err)
			return err
		}
		if n == 0 {
			// a published segment with no bytes is the broadcast's end marker
			logger.Info("{sequencer - Run} station %s: empty segment at index %d, stream ended", st.Name, idx)
			return types.ErrStreamEnded
		}

		logger.Debug("{sequencer - Run} station %s: segment %d captured (%d bytes, %d total buffered)",
			st.Name, idx, n, s.Session.Chunk.Bytes())
		idx++
	}
}

// download fetches one segment and appends its bytes to the session chunk,
// returning the number of bytes read.
func (s *Sequencer) download(ctx context.Context, url string) (int64, error) {
	if s.Limiter != nil {
		s.Limiter.Take()
	}

	res, err := s.Fetcher.Do(ctx, url)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	// first segment pins the content type for the whole session
	if s.Session.Chunk.ContentType() == "" {
		s.Session.Chunk.SetContentType(res.ContentType)
		s.Session.Station.SetContentType(res.ContentType)
	}

	buf := s.Buffers.Get(s.ReadSize)
	defer s.Buffers.Put(buf)

	var total int64
	for {
		n, err := res.Body.Read(buf.B)
		if n > 0 {
			s.Session.Chunk.Append(buf.B[:n])
			metrics.BytesCaptured.WithLabelValues("hls").Add(float64(n))
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, &types.NetworkError{URL: url, Err: err}
		}
	}
}
