package playlist

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"station-recorder/work/logger"
)

// TargetDurationKey is the directive the poll interval is derived from.
const TargetDurationKey = "#EXT-X-TARGETDURATION"

// Playlist is the parsed form of one M3U8 response: directive metadata and
// the ordered media references, already resolved to absolute URLs against the
// response's final URL.
//
// Metadata is rebuilt fresh on every parse; callers replace their previous
// map wholesale rather than merging, so a directive absent from a new
// response is dropped.
type Playlist struct {
	Metadata map[string]string
	Segments []string
}

// Parse splits raw playlist text into directives and segment references
// according to the playlist line rules:
//
//   - lines starting with "#" are directives, split on the first ":" into
//     key and value; a directive with no colon yields no entry
//   - later directives overwrite earlier ones with the same key
//   - every other line of more than 2 characters is a segment reference;
//     shorter ones are noise ("/1" style fragments)
//   - references that don't already contain http:// or https:// are resolved
//     against the base directory of finalURL
//
// finalURL must be the URL the response actually came from, not the one
// originally requested - transparent transport redirects change the base the
// relative references live under.
func Parse(text string, finalURL string) *Playlist {
	pl := &Playlist{Metadata: make(map[string]string)}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")

		if strings.HasPrefix(line, "#") {
			pos := strings.Index(line, ":")
			if pos == -1 {
				continue // directive without a value, nothing to record
			}
			pl.Metadata[line[:pos]] = line[pos+1:]
			continue
		}

		if len(strings.TrimSpace(line)) <= 2 {
			continue
		}
		pl.Segments = append(pl.Segments, ResolveReference(strings.TrimSpace(line), finalURL))
	}

	return pl
}

// Decode parses playlist text, preferring the strict grafov decoder for
// well-formed media playlists and falling back to the line parser for
// everything else. Directive metadata always comes from the line scan so the
// poll interval derivation sees the playlist exactly as broadcast; grafov
// contributes the segment extraction when it cleanly recognizes a media
// playlist.
func Decode(text string, finalURL string) *Playlist {
	pl := Parse(text, finalURL)

	p, listType, err := m3u8.Decode(*bytes.NewBufferString(text), true)
	if err != nil || listType != m3u8.MEDIA {
		if err != nil {
			logger.Debug("{playlist - Decode} grafov decode failed, using line parser: %v", err)
		}
		return pl
	}

	media, ok := p.(*m3u8.MediaPlaylist)
	if !ok {
		return pl
	}

	var segments []string
	for _, seg := range media.Segments {
		if seg == nil {
			break
		}
		if len(seg.URI) <= 2 {
			continue
		}
		segments = append(segments, ResolveReference(seg.URI, finalURL))
	}

	if len(segments) > 0 {
		pl.Segments = segments
	}
	if _, exists := pl.Metadata[TargetDurationKey]; !exists && media.TargetDuration > 0 {
		pl.Metadata[TargetDurationKey] = strconv.FormatFloat(media.TargetDuration, 'f', -1, 64)
	}

	return pl
}

// ResolveReference turns a segment reference into an absolute URL. A
// reference already containing http:// or https:// (case-insensitive) is
// kept as-is; anything else is appended to the base directory of the
// playlist's final URL.
func ResolveReference(ref string, finalURL string) string {
	lower := strings.ToLower(ref)
	if strings.Contains(lower, "http://") || strings.Contains(lower, "https://") {
		return ref
	}
	return BaseDir(finalURL) + "/" + ref
}

// BaseDir returns everything before the last "/" of a URL - the directory
// relative segment paths are resolved under.
func BaseDir(u string) string {
	idx := strings.LastIndex(u, "/")
	if idx == -1 {
		return u
	}
	return u[:idx]
}

// RedirectTarget scans a parsed playlist's segment list for the first entry
// that is itself a playlist reference (case-insensitive ".m3u8" substring).
// If one exists the playlist is a pointer, not terminal media, and the caller
// must re-fetch the returned URL. Only the first candidate is honored; when a
// master playlist offers several variant playlists, list order decides.
func RedirectTarget(segments []string) (string, bool) {
	for _, seg := range segments {
		if strings.Contains(strings.ToLower(seg), ".m3u8") {
			return seg, true
		}
	}
	return "", false
}

// TargetDuration reads the target-duration directive from parsed metadata.
// Returns ok=false when the directive is absent or non-numeric, in which
// case the poller falls back to its base delay.
func TargetDuration(metadata map[string]string) (float64, bool) {
	raw, exists := metadata[TargetDurationKey]
	if !exists {
		return 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return d, true
}
