package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultFile     = "nvsh.yaml"
	DefaultMaxIndex = 1 << 22
	DefaultLogLevel = "warn"
	DefaultFormat   = "text"
	DefaultSeed     = 1
	envPrefix       = "NVSH_"
)

// Config holds the resolved settings.
type Config struct {
	MaxIndex   int    `koanf:"max_index"`
	Seed       uint64 `koanf:"seed"`
	TraceDB    string `koanf:"trace_db"`
	LogLevel   string `koanf:"log_level"`
	ProfileDir string `koanf:"profile_dir"`
	Format     string `koanf:"format"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Load resolves the configuration. cfgFile names an explicit config file;
// when empty, nvsh.yaml in the working directory is used if present. Only
// flags marked as changed override the other sources.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"max_index": DefaultMaxIndex,
		"seed":      DefaultSeed,
		"log_level": DefaultLogLevel,
		"format":    DefaultFormat,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := cfgFile
	if used == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			used = DefaultFile
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// NVSH_TRACE_DB -> trace_db
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.MaxIndex <= 0 {
		return fmt.Errorf("max_index must be positive, got %d", c.MaxIndex)
	}
	if _, ok := levels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q (want text or json)", c.Format)
	}
	return nil
}

// Level returns the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	if l, ok := levels[strings.ToLower(c.LogLevel)]; ok {
		return l
	}
	return slog.LevelWarn
}
