// Package config loads the chord CLI configuration file.
//
// The file is YAML, decoded strictly: unknown keys are errors. Fields are
// validated with struct tags after decoding. Every field is optional.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/roach88/chord/internal/engine"
	"github.com/roach88/chord/internal/ir"
)

// Search paths, in order, used when no explicit config path is given.
var DefaultPaths = []string{
	"./chord.yaml",
	"~/.chord/config.yaml",
}

// Config is the decoded configuration file.
type Config struct {
	// EnvPrefix is prepended to upper-cased signal names for the environment
	// fallback. Empty means engine.DefaultEnvPrefix.
	EnvPrefix string `yaml:"env_prefix" validate:"omitempty,max=64"`

	// Database is the run log path. "~" is expanded. Empty disables
	// recording unless --db is passed.
	Database string `yaml:"database" validate:"omitempty,max=4096"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// Signals are preset before every run; --signal flags override them.
	Signals map[string]any `yaml:"signals"`

	StrictRedefinition bool `yaml:"strict_redefinition"`

	// Path is the file the config was read from, empty for defaults.
	Path string `yaml:"-"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		EnvPrefix: engine.DefaultEnvPrefix,
		LogLevel:  "info",
		Signals:   map[string]any{},
	}
}

// Load reads the config at path. An empty path searches DefaultPaths and
// falls back to Default when none exists. An explicit path that does not
// exist is an error.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFile(path)
	}
	for _, candidate := range DefaultPaths {
		cfg, err := loadFile(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return cfg, err
	}
	return Default(), nil
}

func loadFile(path string) (*Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand config path %s: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", expanded, err)
	}
	cfg.Path = expanded
	return cfg, nil
}

// Parse decodes and validates config YAML. Omitted fields take their
// Default values. An empty document is valid.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if cfg.Signals == nil {
		cfg.Signals = map[string]any{}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if cfg.Database != "" {
		db, err := homedir.Expand(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("expand database path: %w", err)
		}
		cfg.Database = db
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml key names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	name := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s: must be one of %s, got %q", name, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s: longer than %s characters", name, fe.Param())
	case "required":
		return fmt.Sprintf("%s: must not be empty", name)
	}
	return fmt.Sprintf("%s: failed %s", name, fe.Tag())
}

// Level returns the slog level for LogLevel. Unset means Info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Prefix returns EnvPrefix, or engine.DefaultEnvPrefix when unset.
func (c *Config) Prefix() string {
	if c.EnvPrefix == "" {
		return engine.DefaultEnvPrefix
	}
	return c.EnvPrefix
}

// SignalValues converts Signals to IR values.
func (c *Config) SignalValues() (map[string]ir.Value, error) {
	out := make(map[string]ir.Value, len(c.Signals))
	for k, v := range c.Signals {
		val, err := ir.FromAny(normalizeYAML(v))
		if err != nil {
			return nil, fmt.Errorf("signal %s: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

// normalizeYAML rewrites the map[any]any and numeric types yaml.v3 can
// produce into the shapes ir.FromAny accepts.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalizeYAML(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = normalizeYAML(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeYAML(elem)
		}
		return out
	case uint64:
		return int64(val)
	}
	return v
}
