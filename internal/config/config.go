// Package config loads blockdiff settings from TOML. Embedded defaults are
// decoded first and the user file is decoded over them, so a file only
// needs the keys it changes.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultTOML string

// Diff modes.
const (
	ModeLocal     = "local"
	ModeWebsocket = "websocket"
)

// Config is the complete configuration.
type Config struct {
	Locale        string `toml:"locale"`
	TabIndent     string `toml:"tab_indent"`
	MaxConcurrent int    `toml:"max_concurrent"`
	Diff          Diff   `toml:"diff"`
	Cache         Cache  `toml:"cache"`
	Log           Log    `toml:"log"`
}

// Diff selects and tunes the differ.
type Diff struct {
	Mode     string   `toml:"mode"`
	URL      string   `toml:"url"`
	Context  int      `toml:"context"`
	Timeout  Duration `toml:"timeout"`
	MaxBytes int      `toml:"max_bytes"`
}

// Cache locates baseline snapshots.
type Cache struct {
	Dir string `toml:"dir"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration decodes TOML strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the embedded defaults.
func Default() *Config {
	var c Config
	if _, err := toml.Decode(defaultTOML, &c); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return &c
}

// Load reads path over the defaults. An empty path or a missing file gives
// the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := c.decode(string(data)); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) decode(data string) error {
	md, err := toml.Decode(data, c)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string
	if c.Locale == "" {
		problems = append(problems, "locale must be non-empty")
	}
	if c.MaxConcurrent < 0 {
		problems = append(problems, fmt.Sprintf("max_concurrent must be >= 0 (got %d)", c.MaxConcurrent))
	}
	switch c.Diff.Mode {
	case ModeLocal:
	case ModeWebsocket:
		if !strings.HasPrefix(c.Diff.URL, "ws://") && !strings.HasPrefix(c.Diff.URL, "wss://") {
			problems = append(problems, fmt.Sprintf("diff.url must be a ws:// or wss:// URL (got %q)", c.Diff.URL))
		}
	default:
		problems = append(problems, fmt.Sprintf("diff.mode must be %q or %q (got %q)", ModeLocal, ModeWebsocket, c.Diff.Mode))
	}
	if c.Diff.Context < 0 {
		problems = append(problems, fmt.Sprintf("diff.context must be >= 0 (got %d)", c.Diff.Context))
	}
	if c.Diff.Timeout.Duration < 0 {
		problems = append(problems, "diff.timeout must not be negative")
	}
	if c.Diff.MaxBytes < 0 {
		problems = append(problems, fmt.Sprintf("diff.max_bytes must be >= 0 (got %d)", c.Diff.MaxBytes))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		problems = append(problems, err.Error())
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		problems = append(problems, fmt.Sprintf("log.format must be \"text\" or \"json\" (got %q)", f))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "\n"))
	}
	return nil
}

// SlogLevel parses Level (debug, info, warn, error).
func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
