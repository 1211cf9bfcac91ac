package database

import (
	"path/filepath"
	"testing"

	"station-recorder/work/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStationRoundTrip(t *testing.T) {
	db := openTestDB(t)

	st := &types.Station{
		UUID:        "st-1",
		Name:        "Test FM",
		URL:         "http://example.com/stream",
		Kind:        types.KindHLS,
		ContentType: "application/vnd.apple.mpegurl",
		BitRate:     "128",
		ChunkSize:   16000,
	}
	if err := db.SaveStation(st); err != nil {
		t.Fatalf("SaveStation: %v", err)
	}

	loaded, err := db.LoadStations()
	if err != nil {
		t.Fatalf("LoadStations: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d stations, want 1", len(loaded))
	}
	got := loaded[0]
	if got.UUID != "st-1" || got.Name != "Test FM" || got.Kind != types.KindHLS || got.ChunkSize != 16000 {
		t.Errorf("loaded station = %+v", got)
	}

	// saving again updates in place
	st.Name = "Renamed FM"
	if err := db.SaveStation(st); err != nil {
		t.Fatalf("SaveStation update: %v", err)
	}
	loaded, _ = db.LoadStations()
	if len(loaded) != 1 || loaded[0].Name != "Renamed FM" {
		t.Errorf("after update: %+v", loaded)
	}

	if err := db.DeleteStation("st-1"); err != nil {
		t.Fatalf("DeleteStation: %v", err)
	}
	loaded, _ = db.LoadStations()
	if len(loaded) != 0 {
		t.Errorf("loaded %d stations after delete, want 0", len(loaded))
	}
}

func TestBlacklistRoundTrip(t *testing.T) {
	db := openTestDB(t)

	if err := db.AddBlacklistEntry("st-1", "Song A"); err != nil {
		t.Fatalf("AddBlacklistEntry: %v", err)
	}
	// re-adding is a no-op, not an error
	if err := db.AddBlacklistEntry("st-1", "Song A"); err != nil {
		t.Fatalf("AddBlacklistEntry repeat: %v", err)
	}
	// the same title on another station is a distinct row
	if err := db.AddBlacklistEntry("st-2", "Song A"); err != nil {
		t.Fatalf("AddBlacklistEntry: %v", err)
	}

	entries, err := db.LoadBlacklist()
	if err != nil {
		t.Fatalf("LoadBlacklist: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("blacklist = %v, want 2 entries", entries)
	}
	if entries[0].StationUUID != "st-1" || entries[0].Title != "Song A" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].StationUUID != "st-2" || entries[1].Title != "Song A" {
		t.Errorf("second entry = %+v", entries[1])
	}

	// removal is scoped: st-2's row survives st-1's removal
	if err := db.RemoveBlacklistEntry("st-1", "Song A"); err != nil {
		t.Fatalf("RemoveBlacklistEntry: %v", err)
	}
	entries, _ = db.LoadBlacklist()
	if len(entries) != 1 || entries[0].StationUUID != "st-2" {
		t.Errorf("blacklist after remove = %v", entries)
	}
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetSetting("missing", "fallback")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if got != "fallback" {
		t.Errorf("GetSetting = %q, want fallback", got)
	}

	if err := db.SetSetting("k", "v1"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := db.SetSetting("k", "v2"); err != nil {
		t.Fatalf("SetSetting update: %v", err)
	}
	got, _ = db.GetSetting("k", "")
	if got != "v2" {
		t.Errorf("GetSetting = %q, want v2", got)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db.Close()

	// reopening must not re-apply migrations
	db, err = Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	db.Close()
}
