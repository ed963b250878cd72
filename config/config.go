// Package config provides configuration loading and validation for the
// heapsizegen command.
package config

import (
	"errors"
	"fmt"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mlwelles/heapsizegen/generator"
	"github.com/mlwelles/heapsizegen/parser"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = ".heapsizegen.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HEAPSIZEGEN_"

// Config is the root configuration structure.
type Config struct {
	Output        string      `yaml:"output"`         // generated file name
	Tag           string      `yaml:"tag"`            // annotation namespace
	RuntimeImport string      `yaml:"runtime_import"` // import path of the heapsize runtime
	Receiver      string      `yaml:"receiver"`       // receiver name of generated methods
	Types         []string    `yaml:"types"`          // explicit type selection
	Log           LogConfig   `yaml:"log"`
	Watch         WatchConfig `yaml:"watch"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file, then applies overrides from a
// .env file next to it and from HEAPSIZEGEN_* environment variables. An empty
// path means DefaultFile; a missing DefaultFile yields the defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Expand environment variables
		data = []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	env, err := environment(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(&cfg, env)

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// environment returns a lookup over the process environment, falling back to
// the values of dotenv. The process environment is not modified.
func environment(dotenv string) (func(string) string, error) {
	values, err := godotenv.Read(dotenv)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", dotenv, err)
	}
	return func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return values[key]
	}, nil
}

// applyEnvOverrides applies HEAPSIZEGEN_* variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvPrefix + "OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := getenv(EnvPrefix + "TAG"); v != "" {
		cfg.Tag = v
	}
	if v := getenv(EnvPrefix + "RUNTIME_IMPORT"); v != "" {
		cfg.RuntimeImport = v
	}
	if v := getenv(EnvPrefix + "RECEIVER"); v != "" {
		cfg.Receiver = v
	}
	if v := getenv(EnvPrefix + "TYPES"); v != "" {
		cfg.Types = SplitList(v)
	}

	if v := getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if v := getenv(EnvPrefix + "WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Watch.Debounce = d
		}
	}
}

func setDefaults(cfg *Config) {
	if cfg.Output == "" {
		cfg.Output = generator.DefaultOutput
	}
	if cfg.Tag == "" {
		cfg.Tag = parser.DefaultTag
	}
	if cfg.RuntimeImport == "" {
		cfg.RuntimeImport = generator.DefaultRuntimeImport
	}
	if cfg.Receiver == "" {
		cfg.Receiver = generator.DefaultReceiver
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 200 * time.Millisecond
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if filepath.Base(c.Output) != c.Output || !strings.HasSuffix(c.Output, ".go") {
		return fmt.Errorf("output must be a .go file name, got %q", c.Output)
	}
	if strings.HasSuffix(c.Output, "_test.go") {
		return fmt.Errorf("output must not be a test file, got %q", c.Output)
	}
	if !token.IsIdentifier(c.Tag) {
		return fmt.Errorf("tag must be an identifier, got %q", c.Tag)
	}
	if !token.IsIdentifier(c.Receiver) {
		return fmt.Errorf("receiver must be an identifier, got %q", c.Receiver)
	}
	if c.RuntimeImport == "" || strings.ContainsAny(c.RuntimeImport, " \t\"`\\") {
		return fmt.Errorf("runtime_import is not an import path: %q", c.RuntimeImport)
	}
	for _, name := range c.Types {
		if !token.IsIdentifier(name) {
			return fmt.Errorf("types: %q is not a type name", name)
		}
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	return nil
}

// ParserOptions returns the options the parser runs with.
func (c *Config) ParserOptions() parser.Options {
	return parser.Options{
		Tag:    c.Tag,
		Types:  c.Types,
		Output: c.Output,
	}
}

// GeneratorOptions returns the options the generator runs with.
func (c *Config) GeneratorOptions() generator.Options {
	return generator.Options{
		Output:        c.Output,
		RuntimeImport: c.RuntimeImport,
		Receiver:      c.Receiver,
	}
}

// SplitList splits a comma-separated list, dropping empty elements.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
