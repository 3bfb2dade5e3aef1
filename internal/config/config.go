// Package config loads inkwell settings from config.yaml, environment
// variables and built-in defaults.
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
	"gopkg.in/yaml.v3"
)

const (
	fileName = "config"
	fileType = "yaml"
	fileExt  = "config.yaml"

	// EnvPrefix prefixes every environment override, e.g. INKWELL_DATABASE.
	EnvPrefix = "INKWELL"
	// EnvConfigDir names the config directory when --config-dir is unset.
	EnvConfigDir = "INKWELL_CONFIG_DIR"
	// DefaultDir is the config directory used when nothing else is set.
	DefaultDir = ".inkwell"
)

// Keys understood by Load.
const (
	KeyDatabase       = "database"
	KeySearchDebounce = "search.debounce"
	KeySearchLimit    = "search.limit_per_kind"
	KeySearchMinQuery = "search.min_query_length"
	KeySearchLocale   = "search.locale"
	KeyLogLevel       = "log.level"
)

// Config is the resolved configuration.
type Config struct {
	Database string       `yaml:"database" json:"database"`
	Search   SearchConfig `yaml:"search" json:"search"`
	Log      LogConfig    `yaml:"log" json:"log"`

	// Dir is the directory config.yaml was looked up in.
	Dir string `yaml:"-" json:"dir"`
	// File is the config file that was read, empty when none existed.
	File string `yaml:"-" json:"file,omitempty"`
}

// SearchConfig tunes the search subsystem.
type SearchConfig struct {
	Debounce       time.Duration `yaml:"debounce" json:"debounce"`
	LimitPerKind   int           `yaml:"limit_per_kind" json:"limit_per_kind"`
	MinQueryLength int           `yaml:"min_query_length" json:"min_query_length"`
	Locale         string        `yaml:"locale" json:"locale"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: "inkwell.db",
		Search: SearchConfig{
			Debounce:       300 * time.Millisecond,
			LimitPerKind:   10,
			MinQueryLength: 2,
			Locale:         "en",
		},
		Log: LogConfig{Level: "info"},
	}
}

// ResolveDir picks the config directory: the explicit flag value, then
// $INKWELL_CONFIG_DIR, then DefaultDir.
func ResolveDir(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return env
	}
	return DefaultDir
}

// Load reads config.yaml from dir. A missing file is not an error; defaults
// and INKWELL_* environment variables still apply.
func Load(dir string) (Config, error) {
	v := newViper(dir)

	cfg := Config{Dir: dir}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		slog.Debug("no config file", "dir", dir)
	} else {
		cfg.File = v.ConfigFileUsed()
	}

	cfg.Database = v.GetString(KeyDatabase)
	cfg.Search = SearchConfig{
		Debounce:       v.GetDuration(KeySearchDebounce),
		LimitPerKind:   v.GetInt(KeySearchLimit),
		MinQueryLength: v.GetInt(KeySearchMinQuery),
		Locale:         v.GetString(KeySearchLocale),
	}
	cfg.Log = LogConfig{Level: v.GetString(KeyLogLevel)}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper(dir string) *viper.Viper {
	def := Default()

	v := viper.New()
	v.SetDefault(KeyDatabase, def.Database)
	v.SetDefault(KeySearchDebounce, def.Search.Debounce)
	v.SetDefault(KeySearchLimit, def.Search.LimitPerKind)
	v.SetDefault(KeySearchMinQuery, def.Search.MinQueryLength)
	v.SetDefault(KeySearchLocale, def.Search.Locale)
	v.SetDefault(KeyLogLevel, def.Log.Level)

	v.SetConfigName(fileName)
	v.SetConfigType(fileType)
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("config: %s must not be empty", KeyDatabase)
	}
	if c.Search.Debounce < 0 {
		return fmt.Errorf("config: %s must not be negative", KeySearchDebounce)
	}
	if c.Search.LimitPerKind < 1 {
		return fmt.Errorf("config: %s must be at least 1", KeySearchLimit)
	}
	if c.Search.MinQueryLength < 1 {
		return fmt.Errorf("config: %s must be at least 1", KeySearchMinQuery)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level maps log.level to a slog level.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("config: %s: %w", KeyLogLevel, err)
	}
	return l, nil
}

// DatabasePath resolves a relative database path against the config
// directory's parent, so ".inkwell/../inkwell.db" sits next to .inkwell.
func (c Config) DatabasePath() string {
	if filepath.IsAbs(c.Database) || c.Dir == "" {
		return c.Database
	}
	return filepath.Join(filepath.Dir(filepath.Clean(c.Dir)), c.Database)
}

// WriteDefault writes the default config.yaml into dir, creating dir as
// needed. It refuses to overwrite an existing file unless force is set.
func WriteDefault(dir string, force bool) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}

	path := filepath.Join(dir, fileExt)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%s already exists", path)
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("stat config file: %w", err)
		}
	}

	data, err := Marshal(Default())
	if err != nil {
		return "", err
	}
	content := append([]byte("# inkwell configuration\n"), data...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

// Marshal renders c as YAML. Durations are written in Go notation ("300ms")
// so viper can read them back.
func Marshal(c Config) ([]byte, error) {
	doc := map[string]any{
		KeyDatabase: c.Database,
		"search": map[string]any{
			"debounce":         c.Search.Debounce.String(),
			"limit_per_kind":   c.Search.LimitPerKind,
			"min_query_length": c.Search.MinQueryLength,
			"locale":           c.Search.Locale,
		},
		"log": map[string]any{
			"level": c.Log.Level,
		},
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
