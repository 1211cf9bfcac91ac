package registry

import (
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"station-recorder/work/config"
	"station-recorder/work/logger"
	"station-recorder/work/types"
)

// Store mirrors the station directory into durable storage, normally the
// sqlite database. The registry is the authority at runtime; the store only
// survives restarts.
type Store interface {
	LoadStations() ([]*types.Station, error)
	SaveStation(st *types.Station) error
	DeleteStation(uuid string) error
}

// Registry is the live station directory plus the single-capture guard. All
// capture starts go through Acquire, which flips the station's Active flag
// with a compare-and-swap: whatever else races, at most one capture session
// per station can ever exist.
type Registry struct {
	stations *xsync.MapOf[string, *types.Station]
	store    Store
}

// NewRegistry builds a registry, loading any stations the store already
// holds. A nil store yields a purely in-memory registry.
func NewRegistry(store Store) (*Registry, error) {
	r := &Registry{
		stations: xsync.NewMapOf[string, *types.Station](),
		store:    store,
	}

	if store != nil {
		stored, err := store.LoadStations()
		if err != nil {
			return nil, err
		}
		for _, st := range stored {
			r.stations.Store(st.UUID, st)
		}
		logger.Info("{registry - NewRegistry} loaded %d stations from store", len(stored))
	}

	return r, nil
}

// SeedFromConfig registers the stations from the configuration file. Entries
// already present (from the store) keep their stored record; the config only
// fills gaps.
func (r *Registry) SeedFromConfig(cfg *config.Config) {
	added := 0
	for i := range cfg.Stations {
		sc := &cfg.Stations[i]
		st := &types.Station{
			UUID:        sc.UUID,
			Name:        sc.Name,
			URL:         sc.URL,
			Kind:        types.ParseStreamKind(sc.Kind),
			ContentType: sc.ContentType,
			BitRate:     sc.BitRate,
			ChunkSize:   sc.ChunkSize,
		}
		if _, loaded := r.stations.LoadOrStore(st.UUID, st); !loaded {
			added++
			if r.store != nil {
				if err := r.store.SaveStation(st); err != nil {
					logger.Warn("{registry - SeedFromConfig} failed to mirror station %s: %v", st.Name, err)
				}
			}
		}
	}
	if added > 0 {
		logger.Info("{registry - SeedFromConfig} registered %d stations from config", added)
	}
}

// Register adds a new station to the directory. Fails when the UUID is
// already taken.
func (r *Registry) Register(st *types.Station) error {
	if st.UUID == "" {
		return fmt.Errorf("station %q has no uuid", st.Name)
	}
	if _, loaded := r.stations.LoadOrStore(st.UUID, st); loaded {
		return fmt.Errorf("station uuid %s already registered", st.UUID)
	}

	logger.Info("{registry - Register} registered station %s (%s)", st.Name, st.UUID)

	if r.store != nil {
		return r.store.SaveStation(st)
	}
	return nil
}

// Get returns the station for a UUID.
func (r *Registry) Get(uuid string) (*types.Station, bool) {
	return r.stations.Load(uuid)
}

// Remove deletes a station from the directory. A station with an active
// capture cannot be removed.
func (r *Registry) Remove(uuid string) error {
	st, found := r.stations.Load(uuid)
	if !found {
		return nil
	}
	if st.Active.Load() {
		return types.ErrCaptureActive
	}
	r.stations.Delete(uuid)

	if r.store != nil {
		return r.store.DeleteStation(uuid)
	}
	return nil
}

// Acquire claims the station for a new capture session. The compare-and-swap
// on Active is the whole single-capture invariant: a second concurrent start
// loses the swap and gets types.ErrCaptureActive.
func (r *Registry) Acquire(uuid string) (*types.Station, error) {
	st, found := r.stations.Load(uuid)
	if !found {
		return nil, fmt.Errorf("unknown station %s", uuid)
	}
	if !st.Active.CompareAndSwap(false, true) {
		return nil, types.ErrCaptureActive
	}
	st.Recording.Store(true)
	return st, nil
}

// Release returns the station to the idle state after its capture session has
// fully unwound.
func (r *Registry) Release(uuid string) {
	st, found := r.stations.Load(uuid)
	if !found {
		return
	}
	st.Recording.Store(false)
	st.Active.Store(false)
}

// All returns every registered station, sorted by name for stable API output.
func (r *Registry) All() []*types.Station {
	var out []*types.Station
	r.stations.Range(func(_ string, st *types.Station) bool {
		out = append(out, st)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ActiveCount returns the number of stations with a live capture session.
func (r *Registry) ActiveCount() int {
	n := 0
	r.stations.Range(func(_ string, st *types.Station) bool {
		if st.Active.Load() {
			n++
		}
		return true
	})
	return n
}
