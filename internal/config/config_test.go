package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEXNOVA_API_URL", "")
	t.Setenv("LEXNOVA_TRANSPORT", "")
	t.Setenv("LEXNOVA_HTTP_TIMEOUT_MS", "")

	cfg := Load()
	if cfg.APIURL != "http://localhost:8000/api" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Transport != TransportLiveKit {
		t.Errorf("Transport = %q, want %q", cfg.Transport, TransportLiveKit)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", cfg.HTTPTimeout)
	}
	if cfg.DBPath == "" {
		t.Error("DBPath should have a default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LEXNOVA_API_URL", "http://api.test")
	t.Setenv("LEXNOVA_TRANSPORT", TransportRelay)
	t.Setenv("LEXNOVA_CERTIFY_DELAY_MS", "10")

	cfg := Load()
	if cfg.APIURL != "http://api.test" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Transport != TransportRelay {
		t.Errorf("Transport = %q", cfg.Transport)
	}
	if cfg.CertifyDelay != 10*time.Millisecond {
		t.Errorf("CertifyDelay = %v", cfg.CertifyDelay)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("LEXNOVA_TEST_INT", "abc")
	if got := getEnvInt("LEXNOVA_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt = %d, want 7", got)
	}
}
