package titles

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// TitleSource reports the track title currently playing on a station. The
// legacy capture loop samples it once per read cycle; a transition between two
// samples is a chunk boundary.
//
// How titles arrive is deliberately outside the capture core: a now-playing
// scraper, an ICY metadata reader, or a test fixture can all sit behind this
// interface.
type TitleSource interface {
	CurrentTitle(stationUUID string) (string, bool)
}

// Board is the default TitleSource: a concurrent map from station UUID to the
// most recently reported title. External feeds push updates in through the
// HTTP API and capture loops read them out, with no coordination beyond the
// map itself.
type Board struct {
	current *xsync.MapOf[string, string]
}

// NewBoard returns an empty title board.
func NewBoard() *Board {
	return &Board{current: xsync.NewMapOf[string, string]()}
}

// Publish records the currently playing title for a station, replacing any
// previous value.
func (b *Board) Publish(stationUUID, title string) {
	b.current.Store(stationUUID, title)
}

// CurrentTitle returns the last published title for a station. ok is false
// when nothing has been published yet.
func (b *Board) CurrentTitle(stationUUID string) (string, bool) {
	return b.current.Load(stationUUID)
}

// Forget drops the stored title for a station, typically when its capture
// session ends.
func (b *Board) Forget(stationUUID string) {
	b.current.Delete(stationUUID)
}

// Snapshot returns all current titles keyed by station UUID.
func (b *Board) Snapshot() map[string]string {
	out := make(map[string]string)
	b.current.Range(func(uuid, title string) bool {
		out[uuid] = title
		return true
	})
	return out
}
