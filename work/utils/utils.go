package utils

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/grafana/regexp"
)

// unsafeFileChars matches everything we refuse to put in a file name.
var unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*` + "`" + `]`)

// LogURLWithFlag returns the URL as-is or obfuscated depending on the flag.
// Capture URLs often carry provider tokens, so logs default to the safe form.
func LogURLWithFlag(obfuscate bool, u string) string {
	if obfuscate {
		return ObfuscateURL(u)
	}
	return u
}

// ObfuscateURL masks path, query and fragment of a URL for logging, keeping
// only scheme and host.
//
// Example:
//
//	Input:  "http://example.com/secret/stream.m3u8?token=abc"
//	Output: "http://example.com/***?***"
func ObfuscateURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return "***OBFUSCATED***"
	}
	result := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		result += "/***"
	}
	if u.RawQuery != "" {
		result += "?***"
	}
	if u.Fragment != "" {
		result += "#***"
	}
	return result
}

// SanitizeFileName turns a track title or station name into something every
// filesystem accepts: forbidden characters removed, whitespace collapsed to
// single underscores, leading/trailing separators trimmed.
func SanitizeFileName(name string) string {
	sanitized := unsafeFileChars.ReplaceAllString(name, "")
	sanitized = strings.Join(strings.Fields(sanitized), "_")

	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}

	sanitized = strings.Trim(sanitized, "._ ")
	if sanitized == "" {
		return "untitled"
	}
	return sanitized
}

// ExtensionForContentType maps a stream content type to a file extension for
// persisted chunks. Parameters after ";" are ignored. Unknown types fall back
// to ".bin" rather than guessing.
func ExtensionForContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = strings.TrimSpace(ct[:idx])
	}

	switch ct {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/aac", "audio/aacp":
		return ".aac"
	case "audio/ogg", "application/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "video/mp2t":
		return ".ts"
	case "video/mp4", "audio/mp4":
		return ".mp4"
	case "application/vnd.apple.mpegurl", "audio/x-mpegurl", "application/x-mpegurl":
		return ".m3u8"
	default:
		return ".bin"
	}
}

// FormatBytes renders a byte count in a human-friendly unit for log output.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
