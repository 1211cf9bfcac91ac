package sequencer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"station-recorder/work/buffer"
	"station-recorder/work/client"
	"station-recorder/work/config"
	"station-recorder/work/fetch"
	"station-recorder/work/poller"
	"station-recorder/work/types"
)

func newTestSequencer(t *testing.T, set *poller.SegmentSet) (*Sequencer, *types.CaptureSession) {
	t.Helper()
	cfg := &config.Config{UserAgent: "station-recorder/test"}
	f := fetch.NewFetcher(client.NewStreamClient(cfg), cfg)

	st := &types.Station{UUID: "st-1", Name: "Test FM"}
	_, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sess := types.NewCaptureSession(st, cancel, false)

	return New(f, set, sess, buffer.NewPool(), time.Millisecond, 4096, nil), sess
}

func segmentServer(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, found := bodies[r.URL.Path]
		if !found {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "video/mp2t")
		w.Write([]byte(body))
	}))
}

func chunkContents(sess *types.CaptureSession) string {
	var out []byte
	for _, p := range sess.Chunk.Take() {
		out = append(out, p...)
	}
	return string(out)
}

func TestSequencerDownloadsInDiscoveryOrder(t *testing.T) {
	srv := segmentServer(t, map[string]string{
		"/seg-1.ts": "AAAA",
		"/seg-2.ts": "BBBB",
		"/seg-3.ts": "CCCC",
	})
	defer srv.Close()

	set := poller.NewSegmentSet()
	set.Merge([]string{srv.URL + "/seg-1.ts", srv.URL + "/seg-2.ts", srv.URL + "/seg-3.ts"})

	seq, sess := newTestSequencer(t, set)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- seq.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for sess.Chunk.Bytes() < 12 {
		select {
		case <-deadline:
			t.Fatalf("sequencer buffered %d bytes, want 12", sess.Chunk.Bytes())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run returned %v after cancellation, want nil", err)
	}
	if got := chunkContents(sess); got != "AAAABBBBCCCC" {
		t.Errorf("chunk = %q, want AAAABBBBCCCC", got)
	}
	if sess.Chunk.ContentType() != "video/mp2t" {
		t.Errorf("content type = %q, want video/mp2t", sess.Chunk.ContentType())
	}
}

func TestSequencerPicksUpLateSegments(t *testing.T) {
	srv := segmentServer(t, map[string]string{
		"/seg-1.ts": "AAAA",
		"/seg-2.ts": "BBBB",
	})
	defer srv.Close()

	set := poller.NewSegmentSet()
	set.Merge([]string{srv.URL + "/seg-1.ts"})

	seq, sess := newTestSequencer(t, set)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- seq.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for sess.Chunk.Bytes() < 4 {
		select {
		case <-deadline:
			t.Fatal("first segment never arrived")
		case <-time.After(time.Millisecond):
		}
	}

	// the poller publishes another segment while the sequencer is idling
	set.Merge([]string{srv.URL + "/seg-2.ts"})

	for sess.Chunk.Bytes() < 8 {
		select {
		case <-deadline:
			t.Fatal("late segment never arrived")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run returned %v after cancellation, want nil", err)
	}
	if got := chunkContents(sess); got != "AAAABBBB" {
		t.Errorf("chunk = %q, want AAAABBBB", got)
	}
}

func TestSequencerEmptySegmentEndsStream(t *testing.T) {
	srv := segmentServer(t, map[string]string{
		"/seg-1.ts": "AAAA",
		"/seg-2.ts": "",
	})
	defer srv.Close()

	set := poller.NewSegmentSet()
	set.Merge([]string{srv.URL + "/seg-1.ts", srv.URL + "/seg-2.ts"})

	seq, sess := newTestSequencer(t, set)

	err := seq.Run(context.Background())
	if !errors.Is(err, types.ErrStreamEnded) {
		t.Fatalf("Run error = %v, want ErrStreamEnded", err)
	}
	if got := chunkContents(sess); got != "AAAA" {
		t.Errorf("chunk = %q, want AAAA", got)
	}
}

func TestSequencerFailedSegmentEndsSession(t *testing.T) {
	srv := segmentServer(t, map[string]string{
		"/seg-1.ts": "AAAA",
	})
	defer srv.Close()

	set := poller.NewSegmentSet()
	set.Merge([]string{srv.URL + "/seg-1.ts", srv.URL + "/missing.ts"})

	seq, _ := newTestSequencer(t, set)

	err := seq.Run(context.Background())

	var perr *types.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Run error = %v, want *types.ProtocolError", err)
	}
}
