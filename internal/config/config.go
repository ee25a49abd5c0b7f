// Package config loads runledger settings from YAML with environment
// overrides.
//
// Core packages never read configuration themselves. The CLI loads a Config
// once and passes plain values (directory, sync flag, logger, policy) down.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "RUNLEDGER_"

// DefaultPersistDir is used when no directory is configured.
const DefaultPersistDir = "./runs"

// Config holds the settings shared by all commands.
type Config struct {
	// PersistDir holds one <run-id>.jsonl log per run.
	PersistDir string `yaml:"persist_dir" env:"PERSIST_DIR"`
	// SyncWrites fsyncs every append before dispatch returns.
	SyncWrites bool `yaml:"sync_writes" env:"SYNC_WRITES"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	// Policy restricts where output files may be written.
	Policy Policy `yaml:"policy" envPrefix:"POLICY_"`
}

// Policy is an explicit write whitelist.
type Policy struct {
	// Whitelist lists directory prefixes that may be written. Empty allows
	// every path.
	Whitelist []string `yaml:"whitelist" env:"WHITELIST" envSeparator:","`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		PersistDir: DefaultPersistDir,
		LogLevel:   "info",
	}
}

// Load reads the YAML file at path (if path is non-empty) over the defaults,
// then applies RUNLEDGER_* environment overrides.
func Load(path string) (Config, error) {
	return load(path, nil)
}

// load is Load with an explicit environment; nil means the process
// environment.
func load(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.PersistDir == "" {
		cfg.PersistDir = DefaultPersistDir
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values that YAML and env cannot express.
func (c Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	for _, p := range c.Policy.Whitelist {
		if strings.TrimSpace(p) == "" {
			return errors.New("config: policy.whitelist contains an empty entry")
		}
	}
	return nil
}

// SlogLevel parses LogLevel. An empty level is info.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Allows reports whether path lies inside one of the whitelisted
// directories. Paths are compared after conversion to absolute, cleaned form.
func (p Policy) Allows(path string) bool {
	if len(p.Whitelist) == 0 {
		return true
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, prefix := range p.Whitelist {
		root, err := filepath.Abs(prefix)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, target)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}

// ErrPathNotAllowed is returned by Check for paths outside the whitelist.
var ErrPathNotAllowed = errors.New("path not allowed by policy")

// Check returns ErrPathNotAllowed if Allows(path) is false.
func (p Policy) Check(path string) error {
	if !p.Allows(path) {
		return fmt.Errorf("%w: %s", ErrPathNotAllowed, path)
	}
	return nil
}
