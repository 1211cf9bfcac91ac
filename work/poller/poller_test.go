package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"station-recorder/work/client"
	"station-recorder/work/config"
	"station-recorder/work/fetch"
	"station-recorder/work/types"
)

func newTestPoller(t *testing.T, set *SegmentSet) (*Poller, *config.Config) {
	t.Helper()
	cfg := &config.Config{UserAgent: "station-recorder/test", BaseDelay: time.Millisecond}
	f := fetch.NewFetcher(client.NewStreamClient(cfg), cfg)
	st := &types.Station{UUID: "st-1", Name: "Test FM"}
	return New(f, set, st, cfg.BaseDelay, nil), cfg
}

func TestPollerMergesAcrossPolls(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		if polls.Add(1) == 1 {
			w.Write([]byte("#EXT-X-TARGETDURATION:1\nseg-1.ts\nseg-2.ts\n"))
			return
		}
		// the window slides: seg-1 ages out, seg-3 appears
		w.Write([]byte("#EXT-X-TARGETDURATION:1\nseg-2.ts\nseg-3.ts\n"))
	}))
	defer srv.Close()

	set := NewSegmentSet()
	p, _ := newTestPoller(t, set)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, srv.URL+"/chunklist.m3u8") }()

	deadline := time.After(5 * time.Second)
	for polls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("poller never reached the third poll")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run returned %v after cancellation, want nil", err)
	}

	base := srv.URL
	want := []string{base + "/seg-1.ts", base + "/seg-2.ts", base + "/seg-3.ts"}
	if got := set.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("merged urls = %v, want %v", got, want)
	}
	if p.State() != StateStopped {
		t.Errorf("state = %v, want STOPPED", p.State())
	}
}

func TestPollerEndsSessionOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	p, _ := newTestPoller(t, NewSegmentSet())

	err := p.Run(context.Background(), srv.URL+"/chunklist.m3u8")

	var perr *types.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Run error = %v, want *types.ProtocolError", err)
	}
}

func TestPollerRejectsUnparseablePlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Write([]byte("#EXTM3U\n\n"))
	}))
	defer srv.Close()

	p, _ := newTestPoller(t, NewSegmentSet())

	err := p.Run(context.Background(), srv.URL+"/chunklist.m3u8")

	var perr *types.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Run error = %v, want *types.ProtocolError", err)
	}
}

func TestPollerReplacesMetadataWholesale(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		if polls.Add(1) == 1 {
			w.Write([]byte("#EXT-X-TARGETDURATION:1\n#EXT-X-MEDIA-SEQUENCE:7\nseg-1.ts\n"))
			return
		}
		// second response drops the media-sequence directive
		w.Write([]byte("#EXT-X-TARGETDURATION:1\nseg-1.ts\n"))
	}))
	defer srv.Close()

	p, _ := newTestPoller(t, NewSegmentSet())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, srv.URL+"/chunklist.m3u8") }()

	deadline := time.After(5 * time.Second)
	for polls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("poller never reached the second poll")
		case <-time.After(time.Millisecond):
		}
	}
	// let the second poll's merge land before checking
	for i := 0; i < 5000; i++ {
		if _, stale := p.Metadata()["#EXT-X-MEDIA-SEQUENCE"]; !stale {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	meta := p.Metadata()
	if _, stale := meta["#EXT-X-MEDIA-SEQUENCE"]; stale {
		t.Error("directive from a previous poll survived the wholesale replacement")
	}
	if meta["#EXT-X-TARGETDURATION"] != "1" {
		t.Errorf("target duration = %q, want 1", meta["#EXT-X-TARGETDURATION"])
	}
}
