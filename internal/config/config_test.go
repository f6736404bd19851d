package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, "port: 9000\ndefault_symbol: eth-usdt\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("port got %d", cfg.Port)
	}
	if cfg.DefaultSymbol != "ETH-USDT" {
		t.Fatalf("symbol got %q", cfg.DefaultSymbol)
	}
	// Untouched fields keep defaults.
	if cfg.BookRows != 25 || cfg.FetchCooldown() != 2*time.Second {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []string{
		"port: -1\n",
		"book_rows: 0\n",
		"default_market: margin\n",
		"loading_timeout_seconds: 0\n",
	}
	for _, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("accepted %q", body)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
