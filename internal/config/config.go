// Package config provides configuration for the lexnova client binaries.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Transport names accepted by LEXNOVA_TRANSPORT.
const (
	TransportLiveKit = "livekit"
	TransportRelay   = "relay"
)

// Config holds the client configuration.
type Config struct {
	// Backend REST API
	APIURL      string
	HTTPTimeout time.Duration

	// Real-time transport
	RTCURL    string
	Transport string // livekit or relay

	// Local state
	DBPath  string
	LogFile string

	// Report viewer
	CertifyDelay time.Duration

	// Development backend
	DevAddr   string
	DevSecret string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		APIURL:       getEnv("LEXNOVA_API_URL", "http://localhost:8000/api"),
		HTTPTimeout:  time.Duration(getEnvInt("LEXNOVA_HTTP_TIMEOUT_MS", 30000)) * time.Millisecond,
		RTCURL:       getEnv("LEXNOVA_RTC_URL", "ws://localhost:7880"),
		Transport:    getEnv("LEXNOVA_TRANSPORT", TransportLiveKit),
		DBPath:       getEnv("LEXNOVA_DB_PATH", DefaultDBPath()),
		LogFile:      getEnv("LEXNOVA_LOG_FILE", DefaultLogPath()),
		CertifyDelay: time.Duration(getEnvInt("LEXNOVA_CERTIFY_DELAY_MS", 2000)) * time.Millisecond,
		DevAddr:      getEnv("LEXNOVA_DEV_ADDR", ":8000"),
		DevSecret:    getEnv("LEXNOVA_DEV_SECRET", "dev-secret-change-in-production"),
	}
}

// DefaultDBPath returns the default path of the local state database.
func DefaultDBPath() string {
	return filepath.Join(stateDir(), "lexnova.sqlite")
}

// DefaultLogPath returns the default path of the TUI debug log.
func DefaultLogPath() string {
	return filepath.Join(stateDir(), "lexnova.log")
}

func stateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "LexNova")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lexnova")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
