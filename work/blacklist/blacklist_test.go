package blacklist

import (
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "plain title unchanged", title: "Song A", want: "Song A"},
		{name: "punctuation stripped", title: `"Song A!!"`, want: "Song A"},
		{name: "surrounding whitespace trimmed", title: "  Song A  ", want: "Song A"},
		{name: "mixed decoration", title: `  ~Song A~ (feat. B)  `, want: "Song A (feat B)"},
		{name: "underscores stripped", title: "Song_A", want: "SongA"},
		{name: "only punctuation collapses to empty", title: `!!??..`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.title); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestGateBlocked(t *testing.T) {
	g, err := NewGate(nil)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	if err := g.Add("st-1", "Song A"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tests := []struct {
		station string
		title   string
		want    bool
	}{
		{"st-1", "Song A", true},
		{"st-1", `"Song A!!"`, true}, // decorated variant of a blocked title
		{"st-1", "  Song A  ", true},
		{"st-1", "Song B", false},
		{"st-1", "", false},
		{"st-2", "Song A", false}, // rejected on st-1 only, st-2 is unaffected
		{"", "Song A", false},
	}

	for _, tt := range tests {
		if got := g.Blocked(tt.station, tt.title); got != tt.want {
			t.Errorf("Blocked(%q, %q) = %v, want %v", tt.station, tt.title, got, tt.want)
		}
	}
}

func TestGateIsScopedPerStation(t *testing.T) {
	g, err := NewGate(nil)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	if err := g.Add("st-1", "Song A"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := g.Add("st-2", "Song B"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if !g.Blocked("st-1", "Song A") || g.Blocked("st-1", "Song B") {
		t.Error("st-1 should block only its own entry")
	}
	if !g.Blocked("st-2", "Song B") || g.Blocked("st-2", "Song A") {
		t.Error("st-2 should block only its own entry")
	}

	// removing from one station leaves the other's entry alone
	if err := g.Remove("st-1", "Song A"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if g.Blocked("st-1", "Song A") {
		t.Error("st-1 entry survived removal")
	}
	if !g.Blocked("st-2", "Song B") {
		t.Error("st-2 entry was lost by an unrelated removal")
	}
}

type countingStore struct {
	added   []Entry
	removed []Entry
}

func (s *countingStore) LoadBlacklist() ([]Entry, error) { return nil, nil }

func (s *countingStore) AddBlacklistEntry(station, title string) error {
	s.added = append(s.added, Entry{StationUUID: station, Title: title})
	return nil
}

func (s *countingStore) RemoveBlacklistEntry(station, title string) error {
	s.removed = append(s.removed, Entry{StationUUID: station, Title: title})
	return nil
}

func TestGateAddIsIdempotent(t *testing.T) {
	store := &countingStore{}
	g, err := NewGate(store)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	// the same title in three spellings, only the first add reaches the store
	for _, title := range []string{"Song A", `"Song A"`, "Song A!!"} {
		if err := g.Add("st-1", title); err != nil {
			t.Fatalf("Add(%q): %v", title, err)
		}
	}

	if g.Len() != 1 {
		t.Errorf("Len = %d, want 1", g.Len())
	}
	if len(store.added) != 1 {
		t.Errorf("store saw %d adds, want 1", len(store.added))
	}

	// the same title on a second station is a distinct entry
	if err := g.Add("st-2", "Song A"); err != nil {
		t.Fatalf("Add on st-2: %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("Len = %d, want 2", g.Len())
	}

	// removing twice only reaches the store once
	if err := g.Remove("st-1", "Song A"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := g.Remove("st-1", "Song A"); err != nil {
		t.Fatalf("Remove again: %v", err)
	}
	if len(store.removed) != 1 {
		t.Errorf("store saw %d removes, want 1", len(store.removed))
	}
	if g.Blocked("st-1", "Song A") {
		t.Error("title still blocked after removal")
	}
}

func TestGateLoadsScopedEntries(t *testing.T) {
	loaded := &staticStore{entries: []Entry{
		{StationUUID: "st-1", Title: "Song A"},
		{StationUUID: "st-2", Title: "Song B"},
	}}

	g, err := NewGate(loaded)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	if !g.Blocked("st-1", "Song A") || g.Blocked("st-2", "Song A") {
		t.Error("loaded entries lost their station scope")
	}
	if entries := g.Entries("st-2"); len(entries) != 1 || entries[0] != "Song B" {
		t.Errorf("Entries(st-2) = %v, want [Song B]", entries)
	}
}

type staticStore struct {
	entries []Entry
}

func (s *staticStore) LoadBlacklist() ([]Entry, error)        { return s.entries, nil }
func (s *staticStore) AddBlacklistEntry(_, _ string) error    { return nil }
func (s *staticStore) RemoveBlacklistEntry(_, _ string) error { return nil }

func TestGateEmptyTitleIgnored(t *testing.T) {
	g, _ := NewGate(nil)

	if err := g.Add("st-1", "!!"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := g.Add("", "Song A"); err != nil {
		t.Fatalf("Add without station: %v", err)
	}
	if g.Len() != 0 {
		t.Errorf("Len = %d, want 0", g.Len())
	}
}
