package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	AppName    = "Skim"
	AppVersion = "1.0.0"
	AppRepo    = "https://github.com/skim-reader/skim"
)

// UserAgent identifies Skim to feed origins.
var UserAgent = "Mozilla/5.0 (compatible; " + AppName + "/" + AppVersion + "; +" + AppRepo + ")"

type Config struct {
	Addr     string
	DBPath   string
	DataDir  string
	LogLevel string

	// Poller tuning.
	PollTick      time.Duration // how often the due-feed selection runs
	PollWorkers   int           // concurrent fetch workers
	FetchTimeout  time.Duration // per-request HTTP timeout
	DomainSpacing time.Duration // default minimum spacing between requests to one host
	WorkerDelay   time.Duration // politeness delay between fetches on one worker
}

func Load() Config {
	addr := os.Getenv("SKIM_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	dataDir := os.Getenv("SKIM_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	path := os.Getenv("SKIM_DB_PATH")
	if path == "" {
		path = filepath.Join(dataDir, "skim.db")
	}
	logLevel := os.Getenv("SKIM_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return Config{
		Addr:          addr,
		DBPath:        filepath.Clean(path),
		DataDir:       filepath.Clean(dataDir),
		LogLevel:      logLevel,
		PollTick:      envDuration("SKIM_POLL_TICK", time.Minute),
		PollWorkers:   envInt("SKIM_POLL_WORKERS", 8),
		FetchTimeout:  envDuration("SKIM_FETCH_TIMEOUT", 30*time.Second),
		DomainSpacing: envDuration("SKIM_DOMAIN_SPACING", 2*time.Second),
		WorkerDelay:   envDuration("SKIM_WORKER_DELAY", 250*time.Millisecond),
	}
}

func envDuration(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
