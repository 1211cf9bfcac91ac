package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"station-recorder/work/logger"
	"station-recorder/work/types"
	"station-recorder/work/utils"
)

// IncompletePrefix marks artifacts flushed from a session that ended before a
// clean boundary. Downstream tooling treats these as partial and skips them
// when building track libraries.
const IncompletePrefix = "_incomplete_"

// Record is one completed chunk handed to a sink: the title it was captured
// under, the station it came from, and the raw parts in arrival order.
type Record struct {
	Station     *types.Station
	Title       string
	ContentType string
	Parts       [][]byte
	Incomplete  bool
}

// Bytes returns the total payload size of the record.
func (r *Record) Bytes() int64 {
	var n int64
	for _, p := range r.Parts {
		n += int64(len(p))
	}
	return n
}

// Sink persists completed chunks. The capture core never touches the
// filesystem directly; everything it finishes goes through this interface, so
// tests can capture records in memory.
type Sink interface {
	Persist(rec *Record) error
}

// FileSink writes records as files under a per-station directory:
//
//	<dataDir>/<station name>/<title>.<ext>
//
// The title and station name are sanitized for filesystem use and the
// extension is derived from the observed content type. Incomplete flushes get
// the "_incomplete_" prefix plus a millisecond timestamp so repeated aborted
// sessions never collide.
type FileSink struct {
	DataDir string
}

// NewFileSink creates the sink and ensures its root directory exists.
func NewFileSink(dataDir string) (*FileSink, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dataDir, err)
	}
	return &FileSink{DataDir: dataDir}, nil
}

// Persist writes the record to disk. Parts are written in order into a single
// file; a failure at any point surfaces as a *types.PersistenceError and the
// partial file is removed.
func (fs *FileSink) Persist(rec *Record) error {
	dir := filepath.Join(fs.DataDir, utils.SanitizeFileName(rec.Station.Name))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &types.PersistenceError{Title: rec.Title, Err: err}
	}

	name := utils.SanitizeFileName(rec.Title)
	if rec.Incomplete {
		name = IncompletePrefix + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + name
	}
	path := filepath.Join(dir, name+utils.ExtensionForContentType(rec.ContentType))

	f, err := os.Create(path)
	if err != nil {
		return &types.PersistenceError{Title: rec.Title, Err: err}
	}

	for _, p := range rec.Parts {
		if _, err := f.Write(p); err != nil {
			f.Close()
			os.Remove(path)
			return &types.PersistenceError{Title: rec.Title, Err: err}
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return &types.PersistenceError{Title: rec.Title, Err: err}
	}

	logger.Info("{sink - Persist} station %s: wrote %q (%s)",
		rec.Station.Name, filepath.Base(path), utils.FormatBytes(rec.Bytes()))
	return nil
}
