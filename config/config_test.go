package config

import (
	"os"
	"path/filepath"
	"testing"
)

// WHAT: Load with no file yields a runnable default configuration.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.DatabasePath == "" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if len(cfg.Collection.Queries) == 0 {
		t.Fatal("no default queries")
	}
	if cfg.Collection.Delay() <= 0 {
		t.Fatal("no default delay")
	}
}

// WHAT: file values override defaults, untouched fields keep them.
func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricewatch.yaml")
	data := []byte("addr: \":9090\"\ncollection:\n  queries: [aspirina]\n  delay_ms: 500\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if len(cfg.Collection.Queries) != 1 || cfg.Collection.Queries[0] != "aspirina" {
		t.Fatalf("queries = %v", cfg.Collection.Queries)
	}
	if cfg.DatabasePath != "data/pricewatch.db" {
		t.Fatalf("database_path lost its default: %q", cfg.DatabasePath)
	}
}

// WHAT: an unreadable path is an error, not a silent default.
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("want error for missing explicit path")
	}
}
