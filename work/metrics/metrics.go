package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capture engine metrics, exposed on /metrics.
var (
	ActiveCaptures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recorder_active_captures",
		Help: "Number of capture sessions currently running.",
	})

	CapturesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_captures_started_total",
		Help: "Capture sessions started, by stream kind.",
	}, []string{"kind"})

	CapturesEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_captures_ended_total",
		Help: "Capture sessions ended, by outcome (stopped, stream_ended, error).",
	}, []string{"outcome"})

	ChunksPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_chunks_persisted_total",
		Help: "Completed chunks written to the sink.",
	})

	ChunksBlacklisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_chunks_blacklisted_total",
		Help: "Completed chunks discarded by the blacklist gate.",
	})

	ChunksPersistFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_chunks_persist_failed_total",
		Help: "Completed chunks lost to sink write failures.",
	})

	BytesCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_bytes_captured_total",
		Help: "Raw stream bytes read, by stream kind.",
	}, []string{"kind"})

	PlaylistPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_playlist_polls_total",
		Help: "Playlist poll fetches performed.",
	})

	RedirectWalks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_redirect_walks_total",
		Help: "Playlist redirect resolution walks performed.",
	})
)
