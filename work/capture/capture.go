package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/ratelimit"

	"station-recorder/work/blacklist"
	"station-recorder/work/buffer"
	"station-recorder/work/cache"
	"station-recorder/work/config"
	"station-recorder/work/fetch"
	"station-recorder/work/legacy"
	"station-recorder/work/logger"
	"station-recorder/work/metrics"
	"station-recorder/work/playlist"
	"station-recorder/work/poller"
	"station-recorder/work/registry"
	"station-recorder/work/sequencer"
	"station-recorder/work/sink"
	"station-recorder/work/titles"
	"station-recorder/work/types"
)

// SettingKeyStoreIncomplete is the settings-table key overriding the
// configured default for flushing buffered bytes on stop.
const SettingKeyStoreIncomplete = "storeIncomplete"

// SettingsStore reads runtime-tunable settings, normally backed by the sqlite
// settings table. A nil store leaves the configuration file values in charge.
type SettingsStore interface {
	GetSetting(key, fallback string) (string, error)
}

/// Manager owns the lifecycle of capture sessions: it claims the station,
// resolves the playlist chain for HLS stations, runs the capture loop on the
// worker pool, and unwinds everything when the loop exits for any reason.
type Manager struct {
	Config   *config.Config
	Fetcher  *fetch.Fetcher
	Registry *registry.Registry
	Gate     *blacklist.Gate
	Sink     sink.Sink
	Titles   *titles.Board
	Targets  *cache.TargetCache
	Buffers  *buffer.Pool
	Settings SettingsStore

	pool     *ants.Pool
	sessions *xsync.MapOf[string, *types.CaptureSession]
	limiters *xsync.MapOf[string, ratelimit.Limiter]
}

// NewManager wires a manager from its collaborators and spins up the worker
// pool that capture loops run on.
func NewManager(cfg *config.Config, f *fetch.Fetcher, reg *registry.Registry, gate *blacklist.Gate, snk sink.Sink, board *titles.Board, targets *cache.TargetCache, settings SettingsStore) (*Manager, error) {
	pool, err := ants.NewPool(cfg.WorkerThreads, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Manager{
		Config:   cfg,
		Fetcher:  f,
		Registry: reg,
		Gate:     gate,
		Sink:     snk,
		Titles:   board,
		Targets:  targets,
		Settings: settings,
		Buffers:  buffer.NewPool(),
		pool:     pool,
		sessions: xsync.NewMapOf[string, *types.CaptureSession](),
		limiters: xsync.NewMapOf[string, ratelimit.Limiter](),
	}, nil
}

// StartCapture begins a capture session for the station. At most one session
// per station can exist; a second start while one is running returns
// types.ErrCaptureActive. The capture loop itself runs on the worker pool, so
// this returns as soon as the session is claimed and submitted.
func (m *Manager) StartCapture(uuid string) error {
	st, err := m.Registry.Acquire(uuid)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := types.NewCaptureSession(st, cancel, m.storeIncompleteDefault())
	m.sessions.Store(uuid, sess)

	if err := m.pool.Submit(func() { m.run(ctx, sess) }); err != nil {
		// pool saturated, undo the claim
		m.sessions.Delete(uuid)
		m.Registry.Release(uuid)
		cancel()
		return fmt.Errorf("worker pool rejected capture for %s: %w", st.Name, err)
	}

	metrics.ActiveCaptures.Inc()
	metrics.CapturesStarted.WithLabelValues(st.Kind.String()).Inc()
	logger.Info("{capture - StartCapture} station %s: capture started (%s)", st.Name, st.Kind)
	return nil
}

// StopCapture requests a cooperative stop of the station's capture session.
// storeIncomplete overrides the configured default for whether the buffered
// partial chunk is flushed as an incomplete artifact.
func (m *Manager) StopCapture(uuid string, storeIncomplete *bool) error {
	sess, found := m.sessions.Load(uuid)
	if !found {
		return fmt.Errorf("no active capture for station %s", uuid)
	}

	if storeIncomplete != nil {
		sess.StoreIncomplete = *storeIncomplete
	}
	sess.Station.Recording.Store(false)
	sess.Cancel()

	logger.Info("{capture - StopCapture} station %s: stop requested", sess.Station.Name)
	return nil
}

// Session returns the live session for a station, if one exists.
func (m *Manager) Session(uuid string) (*types.CaptureSession, bool) {
	return m.sessions.Load(uuid)
}

// Sessions returns all live sessions keyed by station UUID.
func (m *Manager) Sessions() map[string]*types.CaptureSession {
	out := make(map[string]*types.CaptureSession)
	m.sessions.Range(func(uuid string, sess *types.CaptureSession) bool {
		out[uuid] = sess
		return true
	})
	return out
}

// Shutdown stops every session and releases the worker pool. Loops unwind
// asynchronously; callers that need the flushes done should drain via the
// registry's active count.
func (m *Manager) Shutdown() {
	m.sessions.Range(func(uuid string, sess *types.CaptureSession) bool {
		sess.Station.Recording.Store(false)
		sess.Cancel()
		return true
	})
	m.pool.Release()
}

// run executes one capture loop to completion and then tears the session
// down. It is the only function that runs on the worker pool.
func (m *Manager) run(ctx context.Context, sess *types.CaptureSession) {
	st := sess.Station

	var err error
	if st.Kind == types.KindHLS {
		err = m.runHLS(ctx, sess)
	} else {
		err = m.runLegacy(ctx, sess)
	}

	m.teardown(sess, err)
}

// runLegacy consumes a single long-lived byte stream.
func (m *Manager) runLegacy(ctx context.Context, sess *types.CaptureSession) error {
	consumer := legacy.New(m.Fetcher, sess, m.Titles, m.Gate, m.Sink, m.Buffers, m.Config.ChunkReadSize)
	return consumer.Run(ctx)
}

// runHLS resolves the playlist chain to its terminal media playlist, then
// runs the poller and sequencer concurrently until either fails or the
// session is stopped. The first loop to exit cancels the other.
func (m *Manager) runHLS(ctx context.Context, sess *types.CaptureSession) error {
	st := sess.Station

	terminal, err := m.locateTarget(ctx, st.URL)
	if err != nil {
		logger.Error("{capture - runHLS} station %s: playlist resolution failed: %v", st.Name, err)
		return err
	}

	limiter := m.limiterFor(st.UUID)
	set := poller.NewSegmentSet()
	p := poller.New(m.Fetcher, set, st, m.Config.BaseDelay, limiter)
	seq := sequencer.New(m.Fetcher, set, sess, m.Buffers, m.Config.IdleWait, m.Config.ChunkReadSize, limiter)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- p.Run(loopCtx, terminal) }()
	go func() { errCh <- seq.Run(loopCtx) }()

	first := <-errCh
	cancel()
	second := <-errCh

	if first != nil {
		return first
	}
	return second
}

// locateTarget resolves a station's source URL to its terminal media
// playlist, following playlist-level pointers (playlists whose entries are
// themselves .m3u8 references) up to the configured hop limit. Resolved
// targets are cached with a TTL so restarts skip the walk.
func (m *Manager) locateTarget(ctx context.Context, sourceURL string) (string, error) {
	if m.Targets != nil {
		if terminal, hit := m.Targets.Get(sourceURL); hit {
			logger.Debug("{capture - locateTarget} cache hit for %s", m.Config.LogURL(sourceURL))
			return terminal, nil
		}
	}

	metrics.RedirectWalks.Inc()
	current := sourceURL

	for hop := 0; hop <= m.Config.RedirectHops; hop++ {
		res, err := m.Fetcher.Do(ctx, current)
		if err != nil {
			return "", err
		}
		body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
		res.Body.Close()
		if err != nil {
			return "", &types.NetworkError{URL: current, Err: err}
		}

		pl := playlist.Decode(string(body), res.FinalURL)
		if len(pl.Segments) == 0 && len(pl.Metadata) == 0 {
			return "", &types.ProtocolError{URL: current, Reason: "no parseable segment or directive lines"}
		}

		target, redirected := playlist.RedirectTarget(pl.Segments)
		if !redirected {
			// terminal media playlist, but resolve against the final URL in
			// case the transport redirected us
			terminal := res.FinalURL
			if m.Targets != nil {
				m.Targets.Set(sourceURL, terminal)
			}
			logger.Debug("{capture - locateTarget} resolved after %d hops: %s", hop, m.Config.LogURL(terminal))
			return terminal, nil
		}

		logger.Debug("{capture - locateTarget} hop %d: playlist points to %s", hop, m.Config.LogURL(target))
		current = target
	}

	return "", &types.ProtocolError{URL: sourceURL, Reason: fmt.Sprintf("playlist redirect chain exceeded %d hops", m.Config.RedirectHops)}
}

// teardown unwinds a finished session: flushes the buffered partial chunk if
// requested, releases the station, and records the outcome.
func (m *Manager) teardown(sess *types.CaptureSession, runErr error) {
	st := sess.Station

	if sess.StoreIncomplete && sess.Chunk.Bytes() > 0 {
		rec := &sink.Record{
			Station:     st,
			Title:       sess.Title,
			ContentType: sess.Chunk.ContentType(),
			Parts:       sess.Chunk.Take(),
			Incomplete:  true,
		}
		if err := m.Sink.Persist(rec); err != nil {
			logger.Error("{capture - teardown} station %s: incomplete flush failed: %v", st.Name, err)
		}
	}

	m.sessions.Delete(st.UUID)
	m.Titles.Forget(st.UUID)
	m.Registry.Release(st.UUID)

	outcome := "stopped"
	switch {
	case runErr == nil:
	case errors.Is(runErr, types.ErrStreamEnded):
		outcome = "stream_ended"
	default:
		outcome = "error"
	}

	metrics.ActiveCaptures.Dec()
	metrics.CapturesEnded.WithLabelValues(outcome).Inc()
	logger.Info("{capture - teardown} station %s: session ended (%s)", st.Name, outcome)
}

// storeIncompleteDefault resolves the session default for flushing buffered
/// bytes on stop: the settings table overrides the configuration file, and a
// per-stop request body overrides both (see StopCapture).
func (m *Manager) storeIncompleteDefault() bool {
	def := m.Config.StoreIncomplete
	if m.Settings == nil {
		return def
	}

	raw, err := m.Settings.GetSetting(SettingKeyStoreIncomplete, strconv.FormatBool(def))
	if err != nil {
		logger.Warn("{capture - storeIncompleteDefault} settings read failed, using config default: %v", err)
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Warn("{capture - storeIncompleteDefault} unparseable setting %q, using config default", raw)
		return def
	}
	return v
}

// limiterFor returns the per-station outbound rate limiter, creating it on
// first use.
func (m *Manager) limiterFor(uuid string) ratelimit.Limiter {
	limiter, _ := m.limiters.LoadOrCompute(uuid, func() ratelimit.Limiter {
		return ratelimit.New(m.Config.RateLimitPerSec)
	})
	return limiter
}
