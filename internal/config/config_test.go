package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/teddy/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func code(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.Address != DefaultAddress {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, DefaultAddress)
	}
	if cfg.Storage.Driver != DefaultDriver {
		t.Errorf("Storage.Driver = %q, want %q", cfg.Storage.Driver, DefaultDriver)
	}
	if cfg.History.Limit != DefaultHistoryLimit {
		t.Errorf("History.Limit = %d, want %d", cfg.History.Limit, DefaultHistoryLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := Load(tmpDir); code(err) != "T100" {
		t.Errorf("expected T100 for missing config, got %v", err)
	}
	if Exists(tmpDir) {
		t.Error("Exists should be false before writing a config")
	}

	writeFile(t, tmpDir, "teddy.json", `{
  "space": "shop",
  "name": "cart",
  "storage": {"driver": "file", "dir": "data"},
  "cache": {"enabled": true, "debounce": "250ms"},
  "history": {"enabled": true, "limit": 5}
}
`)
	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Space != "shop" || cfg.Name != "cart" {
		t.Errorf("expected shop.cart, got %s.%s", cfg.Space, cfg.Name)
	}
	if cfg.Server.Address != DefaultAddress {
		t.Errorf("expected default address, got %q", cfg.Server.Address)
	}
	if got := cfg.StorageDir(); got != filepath.Join(tmpDir, "data") {
		t.Errorf("StorageDir = %q", got)
	}
	if d, _ := cfg.CacheDebounce(); d != 250*time.Millisecond {
		t.Errorf("expected 250ms debounce, got %v", d)
	}
	if !cfg.History.Enabled || cfg.History.Limit != 5 {
		t.Errorf("unexpected history config %+v", cfg.History)
	}
	if cfg.Path() != filepath.Join(tmpDir, "teddy.json") {
		t.Errorf("Path = %q", cfg.Path())
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "teddy.yaml", `
space: shop
name: cart
server:
  address: 127.0.0.1:9000
storage:
  driver: s3
  bucket: states
  prefix: dev/
sync:
  enabled: true
`)
	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Address != "127.0.0.1:9000" {
		t.Errorf("Server.Address = %q", cfg.Server.Address)
	}
	if cfg.Storage.Bucket != "states" || cfg.Storage.Prefix != "dev/" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
	if !cfg.Sync.Enabled {
		t.Error("expected sync enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeFile(t, tmpDir, "teddy.json", `{"space": [`)
	if _, err := LoadFile(path); code(err) != "T101" {
		t.Errorf("expected T101, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "teddy.json", `{"server": {"address": ":1"}}`)
	t.Setenv(EnvAddress, ":2")
	t.Setenv(EnvStorageDriver, "badger")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Address != ":2" {
		t.Errorf("expected env address, got %q", cfg.Server.Address)
	}
	if cfg.Storage.Driver != "badger" {
		t.Errorf("expected env driver, got %q", cfg.Storage.Driver)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "redis" }, false},
		{"file without dir", func(c *Config) { c.Storage.Driver = "file" }, false},
		{"badger with dir", func(c *Config) { c.Storage.Driver = "badger"; c.Storage.Dir = "db" }, true},
		{"s3 without bucket", func(c *Config) { c.Storage.Driver = "s3" }, false},
		{"bad debounce", func(c *Config) { c.Cache.Debounce = "soon" }, false},
		{"negative debounce", func(c *Config) { c.Cache.Debounce = "-1s" }, false},
		{"zero debounce", func(c *Config) { c.Cache.Debounce = "0s" }, true},
		{"negative history", func(c *Config) { c.History.Limit = -1 }, false},
		{"no space", func(c *Config) { c.Space = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok {
				if code(err) != "T102" {
					t.Errorf("expected T102, got %v", err)
				}
			}
		})
	}
}

func TestSaveTo(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := New()
	cfg.Space = "shop"
	cfg.Storage.Driver = "badger"
	cfg.Storage.Dir = "db"

	for _, name := range []string{"teddy.json", "teddy.yaml"} {
		path := filepath.Join(tmpDir, name)
		if err := cfg.SaveTo(path); err != nil {
			t.Fatalf("SaveTo(%s): %v", name, err)
		}
		data, _ := os.ReadFile(path)
		if name == "teddy.json" && !strings.HasPrefix(string(data), "{") {
			t.Errorf("expected JSON output, got %s", data)
		}

		loaded, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile(%s): %v", name, err)
		}
		if loaded.Space != "shop" || loaded.Storage.Driver != "badger" || loaded.Storage.Dir != "db" {
			t.Errorf("%s: unexpected round trip %+v", name, loaded)
		}
	}
}

func TestDefaultAppliesEnv(t *testing.T) {
	t.Setenv(EnvAddress, "127.0.0.1:7000")
	if got := Default().Server.Address; got != "127.0.0.1:7000" {
		t.Errorf("expected env address, got %q", got)
	}
	if got := New().Server.Address; got != DefaultAddress {
		t.Errorf("expected New to ignore env, got %q", got)
	}
}
