package database

import (
	"fmt"

	"station-recorder/work/types"
)

// LoadStations returns every station in the directory mirror. Stations are
// returned as pointers because the record carries sync primitives that must
// never be copied once shared.
func (db *DB) LoadStations() ([]*types.Station, error) {
	rows, err := db.Query(`
		SELECT uuid, name, url, kind, content_type, bit_rate, chunk_size
		FROM stations ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var out []*types.Station
	for rows.Next() {
		st := &types.Station{}
		var kind string
		if err := rows.Scan(&st.UUID, &st.Name, &st.URL, &kind, &st.ContentType, &st.BitRate, &st.ChunkSize); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		st.Kind = types.ParseStreamKind(kind)
		out = append(out, st)
	}
	return out, rows.Err()
}

// SaveStation inserts or updates one directory entry.
func (db *DB) SaveStation(st *types.Station) error {
	_, err := db.Exec(`
		INSERT INTO stations (uuid, name, url, kind, content_type, bit_rate, chunk_size)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			kind = excluded.kind,
			content_type = excluded.content_type,
			bit_rate = excluded.bit_rate,
			chunk_size = excluded.chunk_size,
			updated_at = CURRENT_TIMESTAMP
	`, st.UUID, st.Name, st.URL, st.Kind.String(), st.GetContentType(), st.BitRate, st.ChunkSize)
	if err != nil {
		return fmt.Errorf("failed to save station %s: %w", st.UUID, err)
	}
	return nil
}

// DeleteStation removes one directory entry.
func (db *DB) DeleteStation(uuid string) error {
	if _, err := db.Exec(`DELETE FROM stations WHERE uuid = ?`, uuid); err != nil {
		return fmt.Errorf("failed to delete station %s: %w", uuid, err)
	}
	return nil
}
