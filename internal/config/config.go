package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/teddy/internal/errors"
)

const (
	// DefaultAddress is the default inspector listen address.
	DefaultAddress = ":8080"

	// DefaultDriver is the default storage driver.
	DefaultDriver = "memory"

	// DefaultDebounce is the default cache write debounce.
	DefaultDebounce = "100ms"

	// DefaultHistoryLimit is the default number of history entries.
	DefaultHistoryLimit = 100
)

// ConfigFileNames are the file names Load looks for, in order.
var ConfigFileNames = []string{"teddy.json", "teddy.yaml", "teddy.yml"}

// Environment variables that override file values.
const (
	EnvAddress       = "TEDDY_ADDRESS"
	EnvStorageDriver = "TEDDY_STORAGE_DRIVER"
)

// Drivers lists the accepted storage.driver values.
var Drivers = []string{"memory", "file", "s3", "badger"}

// Config represents teddy.json.
type Config struct {
	// Space and Name define the store served by default.
	Space string `json:"space,omitempty" yaml:"space,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`

	Server  ServerConfig  `json:"server" yaml:"server"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	History HistoryConfig `json:"history" yaml:"history"`
	Sync    SyncConfig    `json:"sync" yaml:"sync"`

	configPath string
}

// ServerConfig contains inspector settings.
type ServerConfig struct {
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

// StorageConfig selects and configures a storage driver.
type StorageConfig struct {
	// Driver is one of memory, file, s3 or badger.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`

	// Dir is the directory for the file and badger drivers.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// S3 settings.
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// CacheConfig contains persistence settings.
type CacheConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Debounce is a duration string such as "100ms".
	Debounce string `json:"debounce,omitempty" yaml:"debounce,omitempty"`

	// Reload reloads state when storage changes outside the process.
	Reload bool `json:"reload,omitempty" yaml:"reload,omitempty"`
}

// HistoryConfig contains undo/redo settings.
type HistoryConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Limit   int  `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// SyncConfig contains websocket sync settings.
type SyncConfig struct {
	// Enabled mounts the hub at /sync.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// URL, when set, connects the store to a remote hub as a peer.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Channel defaults to "space.name".
	Channel string `json:"channel,omitempty" yaml:"channel,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Space:   "app",
		Name:    "main",
		Server:  ServerConfig{Address: DefaultAddress},
		Storage: StorageConfig{Driver: DefaultDriver},
		Cache:   CacheConfig{Debounce: DefaultDebounce},
		History: HistoryConfig{Limit: DefaultHistoryLimit},
	}
}

// Default returns New with the environment overrides applied, for running
// without a config file.
func Default() *Config {
	c := New()
	c.applyEnv()
	return c
}

// Load reads configuration from the first config file found in dir.
func Load(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("T100").
		WithDetail("No teddy.json, teddy.yaml or teddy.yml found in " + dir)
}

// LoadFile reads configuration from the specified file path. JSON files
// are parsed by the YAML decoder.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("T100").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("T101").Wrap(err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("T101").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the file is valid JSON or YAML")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.applyEnv()

	return cfg, nil
}

// SaveTo writes the configuration to path as YAML, or as JSON when the
// extension is .json.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return errors.New("T101").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("T101").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultDriver
	}
	if c.Cache.Debounce == "" {
		c.Cache.Debounce = DefaultDebounce
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddress); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv(EnvStorageDriver); v != "" {
		c.Storage.Driver = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Space == "" || c.Name == "" {
		return errors.New("T102").WithDetail("space and name must be set")
	}
	if !knownDriver(c.Storage.Driver) {
		return errors.New("T102").
			WithDetail(fmt.Sprintf("Unknown storage driver %q", c.Storage.Driver)).
			WithSuggestion("Use one of " + strings.Join(Drivers, ", "))
	}
	switch c.Storage.Driver {
	case "file", "badger":
		if c.Storage.Dir == "" {
			return errors.New("T102").WithDetail("storage.dir is required for the " + c.Storage.Driver + " driver")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("T102").WithDetail("storage.bucket is required for the s3 driver")
		}
	}
	if _, err := c.CacheDebounce(); err != nil {
		return errors.New("T102").
			WithDetail("cache.debounce must be a non-negative duration such as \"100ms\"").
			Wrap(err)
	}
	if c.History.Limit < 0 {
		return errors.New("T102").WithDetail("history.limit must not be negative")
	}
	return nil
}

// CacheDebounce parses Cache.Debounce.
func (c *Config) CacheDebounce() (time.Duration, error) {
	if c.Cache.Debounce == "" {
		return time.ParseDuration(DefaultDebounce)
	}
	d, err := time.ParseDuration(c.Cache.Debounce)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}

// StorageDir returns Storage.Dir resolved against the config directory.
func (c *Config) StorageDir() string {
	if c.Storage.Dir == "" || filepath.IsAbs(c.Storage.Dir) {
		return c.Storage.Dir
	}
	return filepath.Join(c.Dir(), c.Storage.Dir)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range ConfigFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

func knownDriver(d string) bool {
	for _, known := range Drivers {
		if d == known {
			return true
		}
	}
	return false
}
