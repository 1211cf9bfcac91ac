package poller

import "sync"

// SegmentSet is the working set of discovered segment URLs for one capture
// session. Insertion order is the order of first discovery and a URL already
// present is never re-added, so the sequencer can walk it by increasing index
// while the poller keeps appending behind it. Entries are never removed; the
// set only grows for the lifetime of the session.
type SegmentSet struct {
	mu   sync.Mutex
	urls []string
	seen map[string]struct{}
}

// NewSegmentSet returns an empty working set.
func NewSegmentSet() *SegmentSet {
	return &SegmentSet{seen: make(map[string]struct{})}
}

// Merge unions the URLs from one poll into the set, preserving first-seen
// order and dropping duplicates. Returns the number of URLs actually added.
func (s *SegmentSet) Merge(urls []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, u := range urls {
		if _, dup := s.seen[u]; dup {
			continue
		}
		s.seen[u] = struct{}{}
		s.urls = append(s.urls, u)
		added++
	}
	return added
}

// At returns the URL at index i, or ok=false when the index has run past the
// current end of the set. The latter is the sequencer's idle condition, not
// an error - the poller may still be appending.
func (s *SegmentSet) At(i int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.urls) {
		return "", false
	}
	return s.urls[i], true
}

// Len returns the current number of discovered URLs.
func (s *SegmentSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

// Snapshot returns a copy of the current URL list, for status reporting.
func (s *SegmentSet) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out
}
