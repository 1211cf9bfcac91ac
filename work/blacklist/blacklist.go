package blacklist

import (
	"strings"
	"sync"

	"github.com/grafana/regexp"

	"station-recorder/work/logger"
)

// punctuation stripped from titles before comparison. Broadcasters decorate
// the same track with inconsistent quoting and trailing junk from one play to
// the next; matching on the stripped form keeps one blacklist entry covering
// all of them.
var punctuation = regexp.MustCompile("[`~!@#$%^&*_|+=?;:'\",.<>{}\\[\\]\\\\/]")

// Sanitize normalizes a track title for blacklist comparison: punctuation is
// stripped and surrounding whitespace trimmed. `"Song A!!"` and `Song A`
// sanitize to the same key.
func Sanitize(title string) string {
	return strings.TrimSpace(punctuation.ReplaceAllString(title, ""))
}

// Entry is one blacklisted title, scoped to the station it was rejected on.
// The same track may be welcome on one station and unwanted on another, so
// entries never apply across stations.
type Entry struct {
	StationUUID string
	Title       string
}

// Store is the persistence behind the gate, normally the sqlite mirror. The
// gate keeps its own in-memory sets and only calls the store to load and to
// record changes.
type Store interface {
	LoadBlacklist() ([]Entry, error)
	AddBlacklistEntry(stationUUID, title string) error
	RemoveBlacklistEntry(stationUUID, title string) error
}

// Gate decides whether a completed chunk may be persisted. Entries are held
// sanitized in memory, one set per station, so the hot-path Blocked check is
// two map lookups; the store is only touched on mutation.
type Gate struct {
	mu       sync.RWMutex
	stations map[string]map[string]struct{}
	store    Store
}

// NewGate builds a gate backed by the given store. A nil store yields a
// purely in-memory gate, which is what the tests use.
func NewGate(store Store) (*Gate, error) {
	g := &Gate{
		stations: make(map[string]map[string]struct{}),
		store:    store,
	}

	if store != nil {
		entries, err := store.LoadBlacklist()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			key := Sanitize(e.Title)
			if key == "" || e.StationUUID == "" {
				continue
			}
			g.stationSet(e.StationUUID)[key] = struct{}{}
		}
		logger.Info("{blacklist - NewGate} loaded %d blacklist entries across %d stations", len(entries), len(g.stations))
	}

	return g, nil
}

// stationSet returns the title set for a station, creating it if needed.
// Callers must hold the write lock.
func (g *Gate) stationSet(stationUUID string) map[string]struct{} {
	set, found := g.stations[stationUUID]
	if !found {
		set = make(map[string]struct{})
		g.stations[stationUUID] = set
	}
	return set
}

// Blocked reports whether a title is blacklisted on the given station.
// Comparison happens on the sanitized forms of both sides.
func (g *Gate) Blocked(stationUUID, title string) bool {
	key := Sanitize(title)
	if key == "" {
		return false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	set, found := g.stations[stationUUID]
	if !found {
		return false
	}
	_, blocked := set[key]
	return blocked
}

// Add blacklists a title on one station. Adding an already-present title is a
// no-op, so the operation is idempotent and safe to wire to a repeat-click UI
// button.
func (g *Gate) Add(stationUUID, title string) error {
	key := Sanitize(title)
	if key == "" || stationUUID == "" {
		return nil
	}

	g.mu.Lock()
	set := g.stationSet(stationUUID)
	if _, dup := set[key]; dup {
		g.mu.Unlock()
		return nil
	}
	set[key] = struct{}{}
	g.mu.Unlock()

	logger.Info("{blacklist - Add} station %s: blacklisted title %q", stationUUID, key)

	if g.store != nil {
		return g.store.AddBlacklistEntry(stationUUID, key)
	}
	return nil
}

// Remove deletes a title from one station's blacklist. Removing an absent
// title is a no-op.
func (g *Gate) Remove(stationUUID, title string) error {
	key := Sanitize(title)
	if key == "" || stationUUID == "" {
		return nil
	}

	g.mu.Lock()
	set, found := g.stations[stationUUID]
	if !found {
		g.mu.Unlock()
		return nil
	}
	if _, found := set[key]; !found {
		g.mu.Unlock()
		return nil
	}
	delete(set, key)
	g.mu.Unlock()

	logger.Info("{blacklist - Remove} station %s: unblacklisted title %q", stationUUID, key)

	if g.store != nil {
		return g.store.RemoveBlacklistEntry(stationUUID, key)
	}
	return nil
}

// Entries returns the sanitized blacklist contents for one station, for the
// HTTP API.
func (g *Gate) Entries(stationUUID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set := g.stations[stationUUID]
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// Len returns the total number of blacklisted titles across all stations.
func (g *Gate) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, set := range g.stations {
		n += len(set)
	}
	return n
}
