// Package config loads CLI defaults from an optional YAML file, READDIR_*
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/michaelscutari/readdir/internal/logger"
	"github.com/michaelscutari/readdir/internal/options"
)

// FileName is the config file searched for when no path is given.
const FileName = "readdir.yaml"

// EnvPrefix prefixes environment overrides, e.g. READDIR_SCAN_RETENTION.
const EnvPrefix = "READDIR"

// Modes accepted by Config.Mode.
var Modes = []string{"sync", "async", "stream", "iter"}

// IndexModes accepted by ScanConfig.IndexMode.
var IndexModes = []string{"memory", "disk", "skip"}

type Config struct {
	Deep     string `mapstructure:"deep" yaml:"deep"`
	Filter   string `mapstructure:"filter" yaml:"filter"`
	Sep      string `mapstructure:"sep" yaml:"sep"`
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
	Stats    bool   `mapstructure:"stats" yaml:"stats"`
	Mode     string `mapstructure:"mode" yaml:"mode"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	Scan ScanConfig `mapstructure:"scan" yaml:"scan"`
}

type ScanConfig struct {
	Out             string   `mapstructure:"out" yaml:"out"`
	Retention       int      `mapstructure:"retention" yaml:"retention"`
	Exclude         []string `mapstructure:"exclude" yaml:"exclude"`
	MaxErrors       int      `mapstructure:"max_errors" yaml:"max_errors"`
	BatchSize       int      `mapstructure:"batch_size" yaml:"batch_size"`
	FlushIntervalMs int      `mapstructure:"flush_interval_ms" yaml:"flush_interval_ms"`
	Xdev            bool     `mapstructure:"xdev" yaml:"xdev"`
	FollowSymlinks  bool     `mapstructure:"follow_symlinks" yaml:"follow_symlinks"`
	IndexMode       string   `mapstructure:"index_mode" yaml:"index_mode"`
}

// DefaultConfig returns the values used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		Deep:     "false",
		Mode:     "sync",
		LogLevel: "info",
		Scan: ScanConfig{
			Out:             "./snapshots",
			Retention:       5,
			Exclude:         []string{`/\.snapshot(/|$)`},
			BatchSize:       10000,
			FlushIntervalMs: 1000,
			Xdev:            true,
			IndexMode:       "memory",
		},
	}
}

// Load reads configuration from path, or from FileName in the working
// directory when path is empty. A missing file yields the defaults with
// environment overrides applied.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = FileName
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("deep", d.Deep)
	v.SetDefault("filter", d.Filter)
	v.SetDefault("sep", d.Sep)
	v.SetDefault("base_path", d.BasePath)
	v.SetDefault("stats", d.Stats)
	v.SetDefault("mode", d.Mode)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("scan.out", d.Scan.Out)
	v.SetDefault("scan.retention", d.Scan.Retention)
	v.SetDefault("scan.exclude", d.Scan.Exclude)
	v.SetDefault("scan.max_errors", d.Scan.MaxErrors)
	v.SetDefault("scan.batch_size", d.Scan.BatchSize)
	v.SetDefault("scan.flush_interval_ms", d.Scan.FlushIntervalMs)
	v.SetDefault("scan.xdev", d.Scan.Xdev)
	v.SetDefault("scan.follow_symlinks", d.Scan.FollowSymlinks)
	v.SetDefault("scan.index_mode", d.Scan.IndexMode)
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	if !oneOf(c.Mode, Modes) {
		return fmt.Errorf("invalid mode %q: must be one of %s", c.Mode, strings.Join(Modes, ", "))
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if _, err := ParseDeep(c.Deep); err != nil {
		return err
	}
	if c.Scan.Retention < 0 {
		return fmt.Errorf("invalid scan.retention %d: must not be negative", c.Scan.Retention)
	}
	if c.Scan.MaxErrors < 0 {
		return fmt.Errorf("invalid scan.max_errors %d: must not be negative", c.Scan.MaxErrors)
	}
	if c.Scan.BatchSize <= 0 {
		return fmt.Errorf("invalid scan.batch_size %d: must be positive", c.Scan.BatchSize)
	}
	if c.Scan.FlushIntervalMs <= 0 {
		return fmt.Errorf("invalid scan.flush_interval_ms %d: must be positive", c.Scan.FlushIntervalMs)
	}
	if !oneOf(c.Scan.IndexMode, IndexModes) {
		return fmt.Errorf("invalid scan.index_mode %q: must be one of %s", c.Scan.IndexMode, strings.Join(IndexModes, ", "))
	}
	return nil
}

// ParseDeep converts the textual deep setting into an options.Options.Deep
// value: "", "false" and "0" list the root only, "true" and "inf" recurse
// fully, a non-negative integer limits depth and anything else is a glob.
func ParseDeep(s string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false":
		return false, nil
	case "true", "inf":
		return true, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return nil, fmt.Errorf("invalid deep %q: %w", s, options.ErrInvalid)
		}
		return n, nil
	}
	return s, nil
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
