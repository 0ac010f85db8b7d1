package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func writeAndLoad(t *testing.T, content string) (*Config, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return Load(path)
}

func TestLoadFull(t *testing.T) {
	cfg, err := writeAndLoad(t, `
[repository]
path = "data"
backend = "git"
ref = "refs/heads/main"

[cache]
driver = "sqlite"
path = "cache.db"

[log]
level = "debug"
format = "json"

[signing]
key = "/keys/id_ed25519"

[metrics]
textfile = "consonant.prom"

[schemas]
"org.example.1" = "schemas/example.yaml"
`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Repository.Backend != BackendGit {
		t.Errorf("Repository.Backend = %q, want %q", cfg.Repository.Backend, BackendGit)
	}
	if cfg.Repository.Ref != "refs/heads/main" {
		t.Errorf("Repository.Ref = %q, want refs/heads/main", cfg.Repository.Ref)
	}
	if got, want := cfg.RepositoryPath(), filepath.Join(cfg.Dir, "data"); got != want {
		t.Errorf("RepositoryPath = %q, want %q", got, want)
	}
	if cfg.Cache.Driver != CacheSQLite || cfg.Cache.Path != "cache.db" {
		t.Errorf("Cache = %+v, want sqlite cache.db", cfg.Cache)
	}
	if cfg.LogLevel() != zerolog.DebugLevel {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel())
	}
	if cfg.Log.Format != FormatJSON {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if cfg.Signing.Key != "/keys/id_ed25519" {
		t.Errorf("Signing.Key = %q", cfg.Signing.Key)
	}
	if got := cfg.Resolve(cfg.Signing.Key); got != "/keys/id_ed25519" {
		t.Errorf("Resolve(absolute) = %q, want unchanged", got)
	}
	if cfg.Metrics.Textfile != "consonant.prom" {
		t.Errorf("Metrics.Textfile = %q", cfg.Metrics.Textfile)
	}
	if got := cfg.Schemas["org.example.1"]; got != "schemas/example.yaml" {
		t.Errorf("Schemas[org.example.1] = %q", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, DefaultFile))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dir != dir {
		t.Errorf("Dir = %q, want %q", cfg.Dir, dir)
	}
	def := Default()
	if cfg.Repository != def.Repository || cfg.Cache != def.Cache || cfg.Log != def.Log {
		t.Errorf("config = %+v, want defaults %+v", cfg, def)
	}
	if cfg.Repository.Backend != BackendNative || cfg.Cache.Driver != CacheMemory {
		t.Errorf("defaults = %+v %+v", cfg.Repository, cfg.Cache)
	}
	if cfg.LogLevel() != zerolog.InfoLevel {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel())
	}
	if cfg.Schemas == nil {
		t.Error("Schemas is nil, want empty map")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown backend", "[repository]\nbackend = \"svn\"\n", "repository.backend"},
		{"unknown cache driver", "[cache]\ndriver = \"redis\"\n", "cache.driver"},
		{"unknown log format", "[log]\nformat = \"xml\"\n", "log.format"},
		{"bad log level", "[log]\nlevel = \"loud\"\n", "log.level"},
		{"unknown key", "[repository]\nbranch = \"main\"\n", "repository.branch"},
		{"syntax", "[repository\n", "load config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := writeAndLoad(t, tt.content)
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}
