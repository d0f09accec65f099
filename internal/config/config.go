// Package config provides configuration types, defaults and loading for clusteval.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CLUSTEVAL_MIRROR_ENABLED=true.
const EnvPrefix = "CLUSTEVAL"

// Config holds all configuration options for clusteval.
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
	Compute    ComputeConfig    `mapstructure:"compute"`
	Finder     FinderConfig     `mapstructure:"finder"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Log        LogConfig        `mapstructure:"log"`
}

// RepositoryConfig locates the repository.
type RepositoryConfig struct {
	Root string `mapstructure:"root"` // defaults to the working directory
}

// MirrorConfig controls the SQLite shadow of the repository.
type MirrorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // relative paths are resolved against the repository root
}

// ComputeConfig describes the statistics service plugins load libraries into.
type ComputeConfig struct {
	// Address of a TCP compute service. Empty uses an in-process service
	// that offers exactly the Available libraries.
	Address   string        `mapstructure:"address"`
	Timeout   time.Duration `mapstructure:"timeout"`
	IdleTTL   time.Duration `mapstructure:"idle_ttl"`
	Available []string      `mapstructure:"available"`
}

// FinderConfig tunes filesystem discovery.
type FinderConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Interval time.Duration `mapstructure:"interval"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Exporter is one of "stdout", "file" or "otlp".
	Exporter     string  `mapstructure:"exporter"`
	FilePath     string  `mapstructure:"file_path"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Mirror: MirrorConfig{
			Path: filepath.Join(".clusteval", "mirror.db"),
		},
		Compute: ComputeConfig{
			Timeout: 10 * time.Second,
			IdleTTL: 5 * time.Minute,
		},
		Finder: FinderConfig{
			Debounce: 500 * time.Millisecond,
		},
		Tracing: TracingConfig{
			Exporter:     "stdout",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("repository.root", d.Repository.Root)
	v.SetDefault("mirror.enabled", d.Mirror.Enabled)
	v.SetDefault("mirror.path", d.Mirror.Path)
	v.SetDefault("compute.address", d.Compute.Address)
	v.SetDefault("compute.timeout", d.Compute.Timeout)
	v.SetDefault("compute.idle_ttl", d.Compute.IdleTTL)
	v.SetDefault("compute.available", []string{})
	v.SetDefault("finder.debounce", d.Finder.Debounce)
	v.SetDefault("finder.interval", d.Finder.Interval)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("log.level", d.Log.Level)
}

// Load reads configuration into a fresh viper instance.
//
// Config lookup order:
//  1. path, when non-empty (it must exist)
//  2. ./clusteval.yaml
//  3. ~/.config/clusteval/config.yaml
//
// Environment variables with the CLUSTEVAL_ prefix override file values.
// It returns the loaded config and the file used, or "" when none was found.
func Load(path string) (Config, string, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else if _, err := os.Stat("clusteval.yaml"); err == nil {
		v.SetConfigFile("clusteval.yaml")
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "clusteval"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, v.ConfigFileUsed(), nil
}

// Validate checks the values Load cannot type-check.
func (c Config) Validate() error {
	var errs []error
	switch c.Tracing.Exporter {
	case "stdout", "file", "otlp":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter: unknown exporter %q", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate: %v is outside [0, 1]", c.Tracing.SampleRate))
	}
	if c.Compute.Timeout <= 0 {
		errs = append(errs, errors.New("compute.timeout: must be positive"))
	}
	if c.Finder.Debounce < 0 || c.Finder.Interval < 0 {
		errs = append(errs, errors.New("finder: durations must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// RootDir returns the repository root, falling back to the working directory.
func (c Config) RootDir() (string, error) {
	if c.Repository.Root != "" {
		return filepath.Abs(c.Repository.Root)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return wd, nil
}

// MirrorPath resolves the mirror database path against root.
func (c Config) MirrorPath(root string) string {
	if filepath.IsAbs(c.Mirror.Path) {
		return c.Mirror.Path
	}
	return filepath.Join(root, c.Mirror.Path)
}
