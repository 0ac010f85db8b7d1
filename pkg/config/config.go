// Package config loads the consonant.toml settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "consonant.toml"

// Repository backends.
const (
	BackendNative = "native"
	BackendGit    = "git"
)

// Cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
)

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config is the root configuration structure.
type Config struct {
	Repository RepositoryConfig  `toml:"repository"`
	Cache      CacheConfig       `toml:"cache"`
	Log        LogConfig         `toml:"log"`
	Signing    SigningConfig     `toml:"signing"`
	Metrics    MetricsConfig     `toml:"metrics"`
	Schemas    map[string]string `toml:"schemas"`

	// Dir is the directory of the file the config was read from. Relative
	// paths in the config resolve against it.
	Dir string `toml:"-"`
}

// RepositoryConfig locates the store repository.
type RepositoryConfig struct {
	Path    string `toml:"path"`
	Backend string `toml:"backend"` // "native" or "git"
	Ref     string `toml:"ref"`
}

// CacheConfig selects the object cache.
type CacheConfig struct {
	Driver string `toml:"driver"` // "none", "memory" or "sqlite"
	Path   string `toml:"path"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// SigningConfig configures commit signing. An empty Key disables it.
type SigningConfig struct {
	Key string `toml:"key"`
}

// MetricsConfig configures the metrics textfile export.
type MetricsConfig struct {
	Textfile string `toml:"textfile"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{Dir: "."}
	setDefaults(cfg)
	return cfg
}

// Load reads the config at path. A missing file yields the defaults,
// rooted at the directory path would have been in.
func Load(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = Config{}
	} else if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Dir = filepath.Dir(path)
	setDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Repository.Path == "" {
		cfg.Repository.Path = "."
	}
	if cfg.Repository.Backend == "" {
		cfg.Repository.Backend = BackendNative
	}
	if cfg.Repository.Ref == "" {
		cfg.Repository.Ref = "refs/heads/master"
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = CacheMemory
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = filepath.Join(".consonant", "cache.db")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = FormatConsole
	}
	if cfg.Schemas == nil {
		cfg.Schemas = make(map[string]string)
	}
}

func validate(cfg *Config) error {
	switch cfg.Repository.Backend {
	case BackendNative, BackendGit:
	default:
		return fmt.Errorf("repository.backend: unknown backend %q", cfg.Repository.Backend)
	}
	switch cfg.Cache.Driver {
	case CacheNone, CacheMemory, CacheSQLite:
	default:
		return fmt.Errorf("cache.driver: unknown driver %q", cfg.Cache.Driver)
	}
	switch cfg.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Resolve returns path made absolute against the config's directory.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return filepath.Join(c.Dir, path)
}

// RepositoryPath returns the resolved repository root.
func (c *Config) RepositoryPath() string { return c.Resolve(c.Repository.Path) }

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
