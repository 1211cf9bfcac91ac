package database

import (
	"fmt"

	"station-recorder/work/blacklist"
)

// LoadBlacklist returns every blacklisted title with the station it belongs
// to.
func (db *DB) LoadBlacklist() ([]blacklist.Entry, error) {
	rows, err := db.Query(`SELECT station_uuid, title FROM blacklist ORDER BY station_uuid, title`)
	if err != nil {
		return nil, fmt.Errorf("failed to query blacklist: %w", err)
	}
	defer rows.Close()

	var out []blacklist.Entry
	for rows.Next() {
		var e blacklist.Entry
		if err := rows.Scan(&e.StationUUID, &e.Title); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddBlacklistEntry records a blacklisted title for one station. Re-adding an
// existing entry is a no-op.
func (db *DB) AddBlacklistEntry(stationUUID, title string) error {
	if _, err := db.Exec(`INSERT OR IGNORE INTO blacklist (station_uuid, title) VALUES (?, ?)`, stationUUID, title); err != nil {
		return fmt.Errorf("failed to add blacklist entry: %w", err)
	}
	return nil
}

// RemoveBlacklistEntry deletes a blacklisted title for one station.
func (db *DB) RemoveBlacklistEntry(stationUUID, title string) error {
	if _, err := db.Exec(`DELETE FROM blacklist WHERE station_uuid = ? AND title = ?`, stationUUID, title); err != nil {
		return fmt.Errorf("failed to remove blacklist entry: %w", err)
	}
	return nil
}
