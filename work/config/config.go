package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"station-recorder/work/utils"
)

// Config holds all application configuration for the capture engine: the HTTP
// control surface, the capture timing knobs, and the pre-seeded station
// directory.
type Config struct {
	ListenAddr      string          // address for the HTTP control API
	DataDir         string          // directory persisted chunks are written under
	DatabasePath    string          // sqlite file for blacklist/station/settings mirror
	LogLevel        string          // DEBUG, INFO, WARN, ERROR
	Debug           bool            // enable debug logging (forces level DEBUG)
	ObfuscateUrls   bool            // obfuscate stream URLs in logs
	BaseDelay       time.Duration   // per-second base the playlist poll interval is scaled from
	IdleWait        time.Duration   // wait between sequencer checks when no new segment is ready
	ChunkReadSize   int             // target read size in bytes for legacy stream reads
	RedirectHops    int             // maximum playlist redirect hops before giving up
	CacheDuration   time.Duration   // TTL for resolved terminal playlist URLs
	WorkerThreads   int             // capacity of the capture worker pool
	RateLimitPerSec int             // outbound fetches per second per station
	StoreIncomplete bool            // default for flushing buffered bytes on stop
	UserAgent       string          // User-Agent header for all outbound requests
	ReqOrigin       string          // optional Origin header
	ReqReferrer     string          // optional Referer header
	Stations        []StationConfig // pre-seeded station directory
}

// StationConfig is one directory entry in the configuration file. Stations
// can also be registered at runtime through the HTTP API; these are just the
// ones available on startup.
type StationConfig struct {
	UUID        string `json:"uuid"`        // stable station identifier
	Name        string `json:"name"`        // display name
	URL         string `json:"url"`         // playlist or stream URL
	Kind        string `json:"kind"`        // "hls" or "legacy"
	ContentType string `json:"contentType"` // expected content type, may be empty
	BitRate     string `json:"bitRate"`     // reported bitrate, informational
	ChunkSize   int    `json:"chunkSize"`   // legacy read size override in bytes
}

// ConfigFile is the JSON shape of the configuration file. Duration fields are
// strings (e.g. "1s", "100ms") and parsed into time.Duration on load.
type ConfigFile struct {
	ListenAddr      string          `json:"listenAddr"`
	DataDir         string          `json:"dataDir"`
	DatabasePath    string          `json:"databasePath"`
	LogLevel        string          `json:"logLevel"`
	Debug           bool            `json:"debug"`
	ObfuscateUrls   bool            `json:"obfuscateUrls"`
	BaseDelay       string          `json:"baseDelay"`     // e.g. "1s"
	IdleWait        string          `json:"idleWait"`      // e.g. "100ms"
	ChunkReadSize   int             `json:"chunkReadSize"` // bytes
	RedirectHops    int             `json:"redirectHops"`
	CacheDuration   string          `json:"cacheDuration"` // e.g. "5m"
	WorkerThreads   int             `json:"workerThreads"`
	RateLimitPerSec int             `json:"rateLimitPerSec"`
	StoreIncomplete bool            `json:"storeIncomplete"`
	UserAgent       string          `json:"userAgent"`
	ReqOrigin       string          `json:"reqOrigin"`
	ReqReferrer     string          `json:"reqReferrer"`
	Stations        []StationConfig `json:"stations"`
}

var (
	configCache *Config      // cached configuration instance (singleton)
	configMutex sync.RWMutex // guards configCache
)

// LoadConfig loads the configuration from file or returns the cached
// instance. Uses double-checked locking so concurrent callers during startup
// never trigger a duplicate file read. Falls back to defaults when the file
// is missing or invalid, then validates every field into a safe range.
func LoadConfig(path string) *Config {
	configMutex.RLock()
	if configCache != nil {
		defer configMutex.RUnlock()
		return configCache
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	// re-check under the write lock
	if configCache != nil {
		return configCache
	}

	cfg, err := loadFromFile(path)
	if err != nil {
		log.Printf("Failed to load config from %s: %v", path, err)
		log.Printf("Falling back to default configuration...")
		cfg = defaultConfig()
	}

	validateAndSetDefaults(cfg)
	configCache = cfg

	if cfg.Debug {
		log.Printf("Configuration loaded:")
		log.Printf("  Stations: %d configured", len(cfg.Stations))
		for i := range cfg.Stations {
			st := &cfg.Stations[i]
			log.Printf("    Station %d (%s): %s [%s]", i+1, st.Name, utils.ObfuscateURL(st.URL), st.Kind)
		}
		log.Printf("  Data dir: %s", cfg.DataDir)
		log.Printf("  Base delay: %s", cfg.BaseDelay)
		log.Printf("  Store incomplete: %v", cfg.StoreIncomplete)
	}

	return cfg
}

// ClearConfigCache resets the singleton so the next LoadConfig call re-reads
// the file. Used by graceful restarts and tests.
func ClearConfigCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	configCache = nil
}

// LogURL returns the URL in its loggable form, honoring the obfuscation flag.
func (c *Config) LogURL(u string) string {
	return utils.LogURLWithFlag(c.ObfuscateUrls, u)
}

// loadFromFile reads and parses the configuration from a JSON file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cf ConfigFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return convertFromFile(&cf)
}

// convertFromFile converts the JSON shape to a Config, parsing duration
// strings. Empty duration fields stay zero and pick up defaults later.
func convertFromFile(cf *ConfigFile) (*Config, error) {
	cfg := &Config{
		ListenAddr:      cf.ListenAddr,
		DataDir:         cf.DataDir,
		DatabasePath:    cf.DatabasePath,
		LogLevel:        cf.LogLevel,
		Debug:           cf.Debug,
		ObfuscateUrls:   cf.ObfuscateUrls,
		ChunkReadSize:   cf.ChunkReadSize,
		RedirectHops:    cf.RedirectHops,
		WorkerThreads:   cf.WorkerThreads,
		RateLimitPerSec: cf.RateLimitPerSec,
		StoreIncomplete: cf.StoreIncomplete,
		UserAgent:       cf.UserAgent,
		ReqOrigin:       cf.ReqOrigin,
		ReqReferrer:     cf.ReqReferrer,
		Stations:        cf.Stations,
	}

	var err error
	if cf.BaseDelay != "" {
		if cfg.BaseDelay, err = time.ParseDuration(cf.BaseDelay); err != nil {
			return nil, fmt.Errorf("invalid baseDelay: %w", err)
		}
	}
	if cf.IdleWait != "" {
		if cfg.IdleWait, err = time.ParseDuration(cf.IdleWait); err != nil {
			return nil, fmt.Errorf("invalid idleWait: %w", err)
		}
	}
	if cf.CacheDuration != "" {
		if cfg.CacheDuration, err = time.ParseDuration(cf.CacheDuration); err != nil {
			return nil, fmt.Errorf("invalid cacheDuration: %w", err)
		}
	}

	return cfg, nil
}

// defaultConfig returns a baseline configuration with sensible defaults when
// no file is present.
func defaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8090",
		DataDir:         "./recordings",
		DatabasePath:    "./recordings/station-recorder.db",
		LogLevel:        "INFO",
		BaseDelay:       time.Second,            // poll interval base, scaled by TARGETDURATION
		IdleWait:        100 * time.Millisecond, // sequencer re-check wait
		ChunkReadSize:   16000,                  // matches typical icecast metaint spacing
		RedirectHops:    5,
		CacheDuration:   5 * time.Minute,
		WorkerThreads:   8,
		RateLimitPerSec: 5,
		StoreIncomplete: false,
		UserAgent:       "station-recorder/1.0",
		Stations:        []StationConfig{},
	}
}

// validateAndSetDefaults ensures all config values are valid, filling in
// defaults for missing or out-of-range ones.
func validateAndSetDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8090"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./recordings"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = cfg.DataDir + "/station-recorder.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	if cfg.Debug {
		cfg.LogLevel = "DEBUG"
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = 100 * time.Millisecond
	}
	if cfg.ChunkReadSize <= 0 {
		cfg.ChunkReadSize = 16000
	}
	if cfg.RedirectHops <= 0 {
		cfg.RedirectHops = 5
	}
	if cfg.CacheDuration <= 0 {
		cfg.CacheDuration = 5 * time.Minute
	}
	if cfg.WorkerThreads <= 0 {
		cfg.WorkerThreads = 8
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 5
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "station-recorder/1.0"
	}

	for i := range cfg.Stations {
		st := &cfg.Stations[i]
		if st.Name == "" {
			st.Name = fmt.Sprintf("Station_%d", i+1)
		}
		if st.UUID == "" {
			st.UUID = "sr-custom-" + utils.SanitizeFileName(st.Name)
		}
		if st.Kind == "" {
			st.Kind = "legacy"
		}
	}
}

// CreateExampleConfig writes an example configuration file to disk.
func CreateExampleConfig(path string) error {
	example := ConfigFile{
		ListenAddr:      ":8090",
		DataDir:         "./recordings",
		DatabasePath:    "./recordings/station-recorder.db",
		LogLevel:        "INFO",
		Debug:           false,
		ObfuscateUrls:   true,
		BaseDelay:       "1s",
		IdleWait:        "100ms",
		ChunkReadSize:   16000,
		RedirectHops:    5,
		CacheDuration:   "5m",
		WorkerThreads:   8,
		RateLimitPerSec: 5,
		StoreIncomplete: false,
		UserAgent:       "station-recorder/1.0",
		Stations: []StationConfig{
			{
				UUID:        "b0e1a000-0000-4000-8000-000000000001",
				Name:        "Example HLS Radio",
				URL:         "https://example.com/hls/live/master.m3u8",
				Kind:        "hls",
				ContentType: "application/vnd.apple.mpegurl",
			},
			{
				UUID:        "b0e1a000-0000-4000-8000-000000000002",
				Name:        "Example Icecast Station",
				URL:         "http://example.com:8000/stream",
				Kind:        "legacy",
				ContentType: "audio/mpeg",
				BitRate:     "128",
				ChunkSize:   16000,
			},
		},
	}

	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
