package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	APIBaseURL string
	SocketURL  string
	AuthSecret string

	// Reconnect policy for the realtime channel.
	ReconnectInitial  time.Duration
	ReconnectCap      time.Duration
	ReconnectAttempts int

	// Bound on outbound events queued while disconnected.
	OutboundQueueLimit int

	// Depth of the local undo/redo buffer.
	EditHistoryDepth int

	// Server-side storage.
	ReposDir    string
	RedisURL    string
	PresenceTTL time.Duration
}

func Load() Config {
	return Config{
		Addr:               getenv("COLLAB_ADDR", ":8585"),
		APIBaseURL:         getenv("COLLAB_API_URL", "http://localhost:8585/api"),
		SocketURL:          getenv("COLLAB_SOCKET_URL", "ws://localhost:8585/ws"),
		AuthSecret:         getenv("COLLAB_AUTH_SECRET", "folio-dev-secret"),
		ReconnectInitial:   getenvDuration("COLLAB_RECONNECT_INITIAL_MS", 1000),
		ReconnectCap:       getenvDuration("COLLAB_RECONNECT_CAP_MS", 30000),
		ReconnectAttempts:  getenvInt("COLLAB_RECONNECT_ATTEMPTS", 10),
		OutboundQueueLimit: getenvInt("COLLAB_OUTBOUND_QUEUE_LIMIT", 64),
		EditHistoryDepth:   getenvInt("COLLAB_EDIT_HISTORY_DEPTH", 100),
		ReposDir:           getenv("COLLAB_REPOS_DIR", "./data/portfolios"),
		// Redis is optional; presence falls back to process-local storage.
		RedisURL:    getenv("COLLAB_REDIS_URL", ""),
		PresenceTTL: getenvDuration("COLLAB_PRESENCE_TTL_MS", 600000),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallbackMillis int) time.Duration {
	return time.Duration(getenvInt(key, fallbackMillis)) * time.Millisecond
}
