package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/pkg/ancestor"
	"github.com/vango-dev/blueprint/pkg/ownership"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Outdir != DefaultOutdir {
		t.Errorf("Outdir = %q, want %q", cfg.Outdir, DefaultOutdir)
	}
	if cfg.Ancestors.Driver != "fs" {
		t.Errorf("Ancestors.Driver = %q, want fs", cfg.Ancestors.Driver)
	}
	if cfg.Diffs.OriginBranch != DefaultOriginBranch {
		t.Errorf("Diffs.OriginBranch = %q, want %q", cfg.Diffs.OriginBranch, DefaultOriginBranch)
	}
	if cfg.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, DefaultConcurrency)
	}
	if !cfg.Dotfiles() {
		t.Error("Dotfiles should default to true")
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("Level = %v, want info", cfg.Level())
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if !errors.HasCode(err, errors.CodeConfigMissing) {
		t.Errorf("Expected E100 for missing config, got %v", err)
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	configJSON := `{
  "name": "@acme/web-blueprint",
  "version": "1.2.0",
  "repositories": [
    {
      "title": "web app",
      "assets": [{"from": "web/**", "to": "public"}],
      "substitute": {"AppName": "Acme"},
      "strategies": [
        {"identifier": "keep_public", "strategy": "neverUpdate", "globs": ["public/**"]}
      ]
    }
  ],
  "resynthesis": {"strict": true, "dotfiles": false},
  "ancestors": {"driver": "s3", "bucket": "blueprints", "prefix": "ancestors/"},
  "logLevel": "debug"
}
`
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Name != "@acme/web-blueprint" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if got := cfg.Package().String(); got != "@acme/web-blueprint@1.2.0" {
		t.Errorf("Package = %q", got)
	}
	if len(cfg.Repositories) != 1 {
		t.Fatalf("Repositories len = %d, want 1", len(cfg.Repositories))
	}
	repo := cfg.Repositories[0]
	if repo.Title != "web app" || repo.Substitute["AppName"] != "Acme" {
		t.Errorf("Repository = %+v", repo)
	}
	if len(repo.Assets) != 1 || repo.Assets[0].To != "public" {
		t.Errorf("Assets = %+v", repo.Assets)
	}
	want := ownership.Strategy{Identifier: "keep_public", Strategy: "neverUpdate", Globs: []string{"public/**"}}
	if len(repo.Strategies) != 1 || repo.Strategies[0].Identifier != want.Identifier || repo.Strategies[0].Globs[0] != "public/**" {
		t.Errorf("Strategies = %+v", repo.Strategies)
	}
	if !cfg.Resynthesis.Strict {
		t.Error("Resynthesis.Strict should be true")
	}
	if cfg.Dotfiles() {
		t.Error("Dotfiles should be false")
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level = %v, want debug", cfg.Level())
	}

	ac := cfg.AncestorConfig()
	if ac.Driver != ancestor.DriverS3 || ac.Bucket != "blueprints" || ac.Prefix != "ancestors/" {
		t.Errorf("AncestorConfig = %+v", ac)
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	// Write invalid JSON
	if err := os.WriteFile(configPath, []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "E101") {
		t.Errorf("Expected E101 error, got: %v", err)
	}
}

func TestLoadFile_UnknownKey(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(`{"repos": []}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if !errors.HasCode(err, errors.CodeConfigInvalid) {
		t.Errorf("Expected E101 for unknown key, got: %v", err)
	}
}

func TestSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	cfg.Name = "demo"
	cfg.Repositories = []RepositoryConfig{{Title: "api"}}

	// Save should fail without configPath set
	if err := cfg.Save(); err == nil {
		t.Error("Expected error when saving without path")
	}

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	loaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.Name != "demo" {
		t.Errorf("Name = %q, want demo", loaded.Name)
	}
	if len(loaded.Repositories) != 1 || loaded.Repositories[0].Title != "api" {
		t.Errorf("Repositories = %+v", loaded.Repositories)
	}

	loaded.Concurrency = 8
	if err := loaded.Save(); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	reloaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if reloaded.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", reloaded.Concurrency)
	}
}

func TestValidate(t *testing.T) {
	strategy := func(id, name string, globs ...string) ownership.Strategy {
		return ownership.Strategy{Identifier: id, Strategy: name, Globs: globs}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Concurrency = -1 },
			wantErr: "concurrency",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: "logLevel",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Ancestors.Driver = "redis" },
			wantErr: "redis",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Ancestors.Driver = "s3" },
			wantErr: "bucket",
		},
		{
			name:    "empty title",
			mutate:  func(c *Config) { c.Repositories = []RepositoryConfig{{Title: "???"}} },
			wantErr: "title is empty",
		},
		{
			name: "duplicate folder",
			mutate: func(c *Config) {
				c.Repositories = []RepositoryConfig{{Title: "web"}, {Title: "web?"}}
			},
			wantErr: "both use the folder",
		},
		{
			name: "unknown merge strategy",
			mutate: func(c *Config) {
				c.Repositories = []RepositoryConfig{{Title: "web", Strategies: []ownership.Strategy{
					strategy("x", "overwriteAll", "**"),
				}}}
			},
			wantErr: "unknown merge strategy",
		},
		{
			name: "duplicate identifier",
			mutate: func(c *Config) {
				c.Repositories = []RepositoryConfig{{Title: "web", Strategies: []ownership.Strategy{
					strategy("x", "useProposed", "**"),
					strategy("x", "neverUpdate", "a/**"),
				}}}
			},
			wantErr: "duplicate identifier",
		},
		{
			name: "no globs",
			mutate: func(c *Config) {
				c.Repositories = []RepositoryConfig{{Title: "web", Strategies: []ownership.Strategy{
					strategy("x", "useProposed"),
				}}}
			},
			wantErr: "no globs",
		},
		{
			name: "invalid glob",
			mutate: func(c *Config) {
				c.Repositories = []RepositoryConfig{{Title: "web", Strategies: []ownership.Strategy{
					strategy("x", "useProposed", "[a-"),
				}}}
			},
			wantErr: "invalid glob",
		},
		{
			name: "invalid asset glob",
			mutate: func(c *Config) {
				c.Repositories = []RepositoryConfig{{Title: "web", Assets: []AssetMapping{{From: "{a"}}}}
			},
			wantErr: "invalid glob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.HasCode(err, errors.CodeConfigSchema) {
				t.Fatalf("Validate() = %v, want E102", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatal(err)
	}

	// Test relative paths
	if got := cfg.OutputPath(); got != tmpDir {
		t.Errorf("OutputPath = %q, want %q", got, tmpDir)
	}
	if got := cfg.AssetsPath(); got != filepath.Join(tmpDir, DefaultAssets) {
		t.Errorf("AssetsPath = %q", got)
	}
	if got := cfg.DiffPath(); got != filepath.Join(tmpDir, ".blueprint", "bundle") {
		t.Errorf("DiffPath = %q", got)
	}
	if got := cfg.AncestorConfig().Dir; got != filepath.Join(tmpDir, ".blueprint", "ancestors") {
		t.Errorf("AncestorConfig().Dir = %q", got)
	}

	// Test absolute paths
	cfg.Outdir = "/absolute/path"
	if got := cfg.OutputPath(); got != "/absolute/path" {
		t.Errorf("OutputPath absolute = %q, want %q", got, "/absolute/path")
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(tmpDir) {
		t.Error("Exists should be false for empty directory")
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	if !Exists(tmpDir) {
		t.Error("Exists should be true after creating config")
	}
}

func TestFindProjectRoot(t *testing.T) {
	// Create nested directory structure
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Should fail when no config exists
	_, err := FindProjectRoot(nestedDir)
	if err == nil {
		t.Error("FindProjectRoot should fail when no config exists")
	}

	// Create config in root
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find root from nested directory
	root, err := FindProjectRoot(nestedDir)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}

	// Should find root from middle directory
	root, err = FindProjectRoot(filepath.Join(tmpDir, "a"))
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Assets != DefaultAssets {
		t.Errorf("Assets = %q, want %q", cfg.Assets, DefaultAssets)
	}
	if cfg.Serve.Addr != DefaultServeAddr {
		t.Errorf("Serve.Addr = %q, want %q", cfg.Serve.Addr, DefaultServeAddr)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
}
