package poller

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/ratelimit"

	"station-recorder/work/fetch"
	"station-recorder/work/logger"
	"station-recorder/work/metrics"
	"station-recorder/work/playlist"
	"station-recorder/work/types"
)

// State is the poller's position in its cycle. The machine is deliberately
// explicit so every termination path is enumerable:
//
//	POLLING -> (fetch ok) -> MERGING -> (interval computed) -> SLEEPING -> POLLING
//
// STOPPED is terminal and reachable from any state via context cancellation
// or a fatal fetch failure.
type State int32

// Poller states.
const (
	StatePolling State = iota
	StateMerging
	StateSleeping
	StateStopped
)

// String returns the state name for logs and status endpoints.
func (s State) String() string {
	switch s {
	case StatePolling:
		return "POLLING"
	case StateMerging:
		return "MERGING"
	case StateSleeping:
		return "SLEEPING"
	default:
		return "STOPPED"
	}
}

// maxPlaylistBytes bounds how much of a playlist response is read. Live
// playlists are a few KB; anything beyond this is not a playlist.
const maxPlaylistBytes = 4 << 20

// Poller re-fetches a terminal media playlist on an interval derived from its
// own metadata and merges newly published segment URLs into the session's
// working set. It never retries a failed fetch: a playlist endpoint that is
// unreachable once ends the session, and a human restarts the capture.
type Poller struct {
	Fetcher   *fetch.Fetcher
	Set       *SegmentSet
	Station   *types.Station
	BaseDelay time.Duration
	Limiter   ratelimit.Limiter

	state    atomic.Int32
	metaMu   sync.Mutex
	metadata map[string]string
}

// New builds a poller feeding the given working set.
func New(f *fetch.Fetcher, set *SegmentSet, st *types.Station, baseDelay time.Duration, limiter ratelimit.Limiter) *Poller {
	return &Poller{
		Fetcher:   f,
		Set:       set,
		Station:   st,
		BaseDelay: baseDelay,
		Limiter:   limiter,
		metadata:  make(map[string]string),
	}
}

// State returns the poller's current state.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// Metadata returns the directive map from the most recent poll. The map is
// replaced wholesale each cycle, never merged.
func (p *Poller) Metadata() map[string]string {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()
	return p.metadata
}

func (p *Poller) setMetadata(m map[string]string) {
	p.metaMu.Lock()
	p.metadata = m
	p.metaMu.Unlock()
}

// Run drives the poll cycle against the terminal playlist URL until the
// context is cancelled or a fetch/parse failure ends the session. The
// returned error is nil only for cooperative cancellation.
func (p *Poller) Run(ctx context.Context, terminalURL string) error {
	defer p.state.Store(int32(StateStopped))

	logger.Debug("{poller - Run} station %s: polling terminal playlist %s",
		p.Station.Name, p.Fetcher.Config.LogURL(terminalURL))

	for {
		p.state.Store(int32(StatePolling))

		if p.Limiter != nil {
			p.Limiter.Take()
		}

		metrics.PlaylistPolls.Inc()
		res, err := p.Fetcher.Do(ctx, terminalURL)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			// one unreachable poll ends the session, no retry storm
			logger.Error("{poller - Run} station %s: playlist fetch failed, ending session: %v", p.Station.Name, err)
			return err
		}

		body, err := io.ReadAll(io.LimitReader(res.Body, maxPlaylistBytes))
		res.Body.Close()
		if err != nil {
			logger.Error("{poller - Run} station %s: playlist read failed: %v", p.Station.Name, err)
			return &types.NetworkError{URL: terminalURL, Err: err}
		}

		p.state.Store(int32(StateMerging))

		pl := playlist.Decode(string(body), res.FinalURL)
		if len(pl.Segments) == 0 && len(pl.Metadata) == 0 {
			logger.Error("{poller - Run} station %s: playlist had no parseable lines, ending session", p.Station.Name)
			return &types.ProtocolError{URL: terminalURL, Reason: "no parseable segment or directive lines"}
		}

		added := p.Set.Merge(pl.Segments)
		p.setMetadata(pl.Metadata)

		logger.Debug("{poller - Run} station %s: poll returned %d segments (%d new, %d total)",
			p.Station.Name, len(pl.Segments), added, p.Set.Len())

		// Interval: TARGETDURATION seconds worth of base delay, scaled by how
		// many segments this poll returned - a big batch buys proportionally
		// more playback time before the list changes.
		interval := p.BaseDelay
		if d, numeric := playlist.TargetDuration(pl.Metadata); numeric {
			interval = time.Duration(d * float64(p.BaseDelay))
		}
		batch := len(pl.Segments)
		if batch < 1 {
			batch = 1
		}
		sleep := interval * time.Duration(batch)

		p.state.Store(int32(StateSleeping))
		logger.Debug("{poller - Run} station %s: sleeping %s before next poll", p.Station.Name, sleep)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Debug("{poller - Run} station %s: stop requested, poller exiting", p.Station.Name)
			return nil
		case <-timer.C:
		}
	}
}
