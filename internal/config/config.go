package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/pkg/ancestor"
	"github.com/vango-dev/blueprint/pkg/merge"
	"github.com/vango-dev/blueprint/pkg/ownership"
	"github.com/vango-dev/blueprint/pkg/repository"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "blueprint.json"

	// DefaultOutdir is the directory repositories are synthesized under.
	DefaultOutdir = "."

	// DefaultAssets is the static asset directory.
	DefaultAssets = "static-assets"

	// DefaultAncestorDir is where the filesystem ancestor store keeps snapshots.
	DefaultAncestorDir = ".blueprint/ancestors"

	// DefaultDiffDir is the bundle that receives patches and pull requests.
	DefaultDiffDir = ".blueprint/bundle"

	// DefaultOriginBranch is the branch patches are computed against.
	DefaultOriginBranch = "main"

	// DefaultConcurrency bounds how many repositories are reconciled at once.
	DefaultConcurrency = 4

	// DefaultLogLevel is the slog level name used when none is configured.
	DefaultLogLevel = "info"

	// DefaultServeAddr is the inspection server listen address.
	DefaultServeAddr = "localhost:9464"
)

// Config represents the complete blueprint.json configuration.
type Config struct {
	// Name is the blueprint package name, used as the owner of its strategies.
	Name string `json:"name,omitempty"`

	// Version is the blueprint package version.
	Version string `json:"version,omitempty"`

	// Outdir is the directory holding src/<title> for every repository.
	Outdir string `json:"outdir,omitempty"`

	// Assets is the directory static assets are copied from.
	Assets string `json:"assets,omitempty"`

	// Repositories lists the repositories the blueprint synthesizes.
	Repositories []RepositoryConfig `json:"repositories,omitempty"`

	// Resynthesis controls dispatch behaviour.
	Resynthesis ResynthesisConfig `json:"resynthesis,omitempty"`

	// Ancestors selects the ancestor snapshot store.
	Ancestors AncestorsConfig `json:"ancestors,omitempty"`

	// Diffs controls patch and pull request generation.
	Diffs DiffsConfig `json:"diffs,omitempty"`

	// Concurrency bounds parallel repository reconciliation.
	Concurrency int `json:"concurrency,omitempty"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"logLevel,omitempty"`

	// Serve configures the inspection server.
	Serve ServeConfig `json:"serve,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// RepositoryConfig describes one synthesized repository.
type RepositoryConfig struct {
	// Title names the repository folder under src/.
	Title string `json:"title"`

	// Assets re-roots static assets into the repository.
	Assets []AssetMapping `json:"assets,omitempty"`

	// Substitute holds template values applied to text assets.
	Substitute map[string]string `json:"substitute,omitempty"`

	// Strategies are registered in order after the built-in layer.
	Strategies []ownership.Strategy `json:"strategies,omitempty"`
}

// AssetMapping copies files matching From (a glob relative to the asset
// directory) to the To directory inside the repository. Template assets are
// rendered with the repository's Substitute values.
type AssetMapping struct {
	From     string `json:"from"`
	To       string `json:"to,omitempty"`
	Template bool   `json:"template,omitempty"`
}

// ResynthesisConfig contains dispatch settings.
type ResynthesisConfig struct {
	// Strict rejects paths that no strategy covers instead of falling back
	// to useProposed.
	Strict bool `json:"strict,omitempty"`

	// Dotfiles lets "*" and "**" match hidden path segments. Defaults to true.
	Dotfiles *bool `json:"dotfiles,omitempty"`
}

// AncestorsConfig contains ancestor store settings.
type AncestorsConfig struct {
	Driver    string `json:"driver,omitempty"`
	Dir       string `json:"dir,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	PathStyle bool   `json:"pathStyle,omitempty"`
}

// DiffsConfig contains patch and pull request settings.
type DiffsConfig struct {
	Enabled      bool   `json:"enabled,omitempty"`
	Dir          string `json:"dir,omitempty"`
	OriginBranch string `json:"originBranch,omitempty"`
	TargetBranch string `json:"targetBranch,omitempty"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
}

// ServeConfig contains inspection server settings.
type ServeConfig struct {
	Addr string `json:"addr,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{Version: "0.1.0"}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory.
// It looks for blueprint.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigMissing).
				WithDetail("No blueprint.json found in " + filepath.Dir(path)).
				WithSuggestion("Run 'blueprint init' to create one")
		}
		return nil, errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	cfg := &Config{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).
			WithLocation(path, 0, 0).
			WithDetail("Failed to parse blueprint.json: " + err.Error()).
			WithSuggestion("Check that blueprint.json is valid JSON and uses known keys")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
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
	if c.Outdir == "" {
		c.Outdir = DefaultOutdir
	}
	if c.Assets == "" {
		c.Assets = DefaultAssets
	}
	if c.Resynthesis.Dotfiles == nil {
		on := true
		c.Resynthesis.Dotfiles = &on
	}

	// Ancestors
	if c.Ancestors.Driver == "" {
		c.Ancestors.Driver = string(ancestor.DriverFilesystem)
	}
	if c.Ancestors.Dir == "" {
		c.Ancestors.Dir = DefaultAncestorDir
	}

	// Diffs
	if c.Diffs.Dir == "" {
		c.Diffs.Dir = DefaultDiffDir
	}
	if c.Diffs.OriginBranch == "" {
		c.Diffs.OriginBranch = DefaultOriginBranch
	}

	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = DefaultServeAddr
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return schemaError("concurrency must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return schemaError(err.Error())
	}

	switch ancestor.Driver(c.Ancestors.Driver) {
	case ancestor.DriverFilesystem, ancestor.DriverMemory:
	case ancestor.DriverS3:
		if c.Ancestors.Bucket == "" {
			return schemaError("ancestors.bucket is required by the s3 driver")
		}
	default:
		return schemaError(fmt.Sprintf("unknown ancestors.driver %q", c.Ancestors.Driver)).
			WithSuggestion("Use one of: fs, memory, s3")
	}

	titles := make(map[string]int, len(c.Repositories))
	for i, r := range c.Repositories {
		title := repository.ValidFolder(r.Title)
		if title == "" {
			return schemaError(fmt.Sprintf("repositories[%d].title is empty", i))
		}
		if j, ok := titles[title]; ok {
			return schemaError(fmt.Sprintf("repositories[%d] and repositories[%d] both use the folder %q", j, i, title))
		}
		titles[title] = i

		for _, a := range r.Assets {
			if !doublestar.ValidatePattern(a.From) {
				return schemaError(fmt.Sprintf("repositories[%d].assets: invalid glob %q", i, a.From))
			}
		}

		ids := make(map[string]bool, len(r.Strategies))
		for _, s := range r.Strategies {
			if s.Identifier == "" {
				return schemaError(fmt.Sprintf("repositories[%d].strategies: missing identifier", i))
			}
			if ids[s.Identifier] {
				return schemaError(fmt.Sprintf("repositories[%d].strategies: duplicate identifier %q", i, s.Identifier))
			}
			ids[s.Identifier] = true
			if _, ok := merge.Lookup(s.Strategy); !ok {
				return schemaError(fmt.Sprintf("strategy %q names unknown merge strategy %q", s.Identifier, s.Strategy)).
					WithSuggestion("Use one of: " + strings.Join(merge.Names(), ", "))
			}
			if len(s.Globs) == 0 {
				return schemaError(fmt.Sprintf("strategy %q has no globs", s.Identifier))
			}
			for _, g := range s.Globs {
				if !doublestar.ValidatePattern(g) {
					return schemaError(fmt.Sprintf("strategy %q: invalid glob %q", s.Identifier, g))
				}
			}
		}
	}
	return nil
}

func schemaError(detail string) *errors.BlueprintError {
	return errors.New(errors.CodeConfigSchema).WithDetail(detail)
}

// Dotfiles reports whether globs match hidden path segments.
func (c *Config) Dotfiles() bool {
	return c.Resynthesis.Dotfiles == nil || *c.Resynthesis.Dotfiles
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown logLevel %q", name)
	}
	return l, nil
}

// resolve makes p absolute against the config directory.
func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// OutputPath returns the absolute path to the output directory.
func (c *Config) OutputPath() string {
	return c.resolve(c.Outdir)
}

// AssetsPath returns the absolute path to the static asset directory.
func (c *Config) AssetsPath() string {
	return c.resolve(c.Assets)
}

// DiffPath returns the absolute path to the patch bundle.
func (c *Config) DiffPath() string {
	return c.resolve(c.Diffs.Dir)
}

// AncestorConfig returns the store configuration with its directory resolved.
func (c *Config) AncestorConfig() ancestor.Config {
	return ancestor.Config{
		Driver:    ancestor.Driver(c.Ancestors.Driver),
		Dir:       c.resolve(c.Ancestors.Dir),
		Bucket:    c.Ancestors.Bucket,
		Prefix:    c.Ancestors.Prefix,
		Region:    c.Ancestors.Region,
		Endpoint:  c.Ancestors.Endpoint,
		PathStyle: c.Ancestors.PathStyle,
	}
}

// Package returns the blueprint's owner identity.
func (c *Config) Package() ownership.Package {
	return ownership.Package{Name: c.Name, Version: c.Version}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing blueprint.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeConfigMissing).
				WithDetail("No blueprint.json found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'blueprint init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
