// Package config loads master configuration files.
//
// YAML (.yaml, .yml) and CUE (.cue) files are accepted. Both are checked
// against the embedded CUE schema before decoding, so unknown fields and
// missing required fields are rejected the same way for either format.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/csledger/internal/changesource"
)

//go:embed schema.cue
var schemaCUE string

// Config is a master's configuration.
type Config struct {
	// Master is the master identity. Empty means generate one.
	Master changesource.MasterID

	// Database is the path to the shared SQLite database.
	Database string

	// PollInterval is how often the manager re-reconciles ownership.
	PollInterval time.Duration

	// ChangeSources lists the change-source names to operate.
	ChangeSources []string
}

// rawConfig mirrors #Config for CUE decoding.
type rawConfig struct {
	Master        string   `json:"master"`
	Database      string   `json:"database"`
	PollInterval  string   `json:"poll_interval"`
	ChangeSources []string `json:"change_sources"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	ctx := cuecontext.New()

	var value cue.Value
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		value = ctx.CompileBytes(data, cue.Filename(path))
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
		value = ctx.Encode(doc)
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", ext)
	}
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return decode(ctx, value, path)
}

// decode unifies value with #Config and converts it to a Config.
func decode(ctx *cue.Context, value cue.Value, path string) (*Config, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	var raw rawConfig
	if err := unified.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg := &Config{
		Master:   changesource.MasterID(raw.Master),
		Database: raw.Database,
	}

	if raw.PollInterval == "" {
		raw.PollInterval = "10s"
	}
	interval, err := time.ParseDuration(raw.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: poll_interval: %w", path, err)
	}
	cfg.PollInterval = interval
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("invalid config %s: poll_interval must be positive", path)
	}

	// Relative database paths are relative to the config file
	if !filepath.IsAbs(cfg.Database) {
		cfg.Database = filepath.Join(filepath.Dir(path), cfg.Database)
	}

	seen := make(map[string]bool, len(raw.ChangeSources))
	for _, name := range raw.ChangeSources {
		normalized, err := changesource.NormalizeName(name)
		if err != nil {
			return nil, fmt.Errorf("invalid config %s: change_sources: %w", path, err)
		}
		if seen[normalized] {
			return nil, fmt.Errorf("invalid config %s: duplicate change source %q", path, normalized)
		}
		seen[normalized] = true
		cfg.ChangeSources = append(cfg.ChangeSources, normalized)
	}

	return cfg, nil
}
