// Package config loads the compatd configuration. Values come from an optional
// YAML or TOML file and are overridden by COMPATD_* environment variables.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"git.unix.lgbt/diamondburned/compatd/compat"
	"git.unix.lgbt/diamondburned/compatd/compat/registry"
	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "COMPATD_"

// Legacy file names, used when the matching path is not configured.
const (
	CommandFile = "icinga.cmd"
	StatusFile  = "status.dat"
	ObjectsFile = "objects.cache"
	JournalFile = "journal.json"
	DefsFile    = "objects.yml"
)

// Config is the daemon configuration. Relative paths are resolved against
// StateDir.
type Config struct {
	StateDir    string `yaml:"state_dir" toml:"state_dir" env:"STATE_DIR"`
	StatusPath  string `yaml:"status_path" toml:"status_path" env:"STATUS_PATH"`
	ObjectsPath string `yaml:"objects_path" toml:"objects_path" env:"OBJECTS_PATH"`
	CommandPath string `yaml:"command_path" toml:"command_path" env:"COMMAND_PATH"`
	JournalPath string `yaml:"journal_path" toml:"journal_path" env:"JOURNAL_PATH"`
	// ObjectsFile is the YAML file that defines hosts, services and groups.
	ObjectsFile string `yaml:"objects_file" toml:"objects_file" env:"OBJECTS_FILE"`

	PublishInterval time.Duration `yaml:"publish_interval" toml:"publish_interval" env:"PUBLISH_INTERVAL"`
	LogLevel        string        `yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`

	Dispatch Dispatch `yaml:"dispatch" toml:"dispatch" envPrefix:"DISPATCH_"`
}

// Dispatch configures command execution.
type Dispatch struct {
	Workers int     `yaml:"workers" toml:"workers" env:"WORKERS"`
	Rate    float64 `yaml:"rate" toml:"rate" env:"RATE"`
	Burst   int     `yaml:"burst" toml:"burst" env:"BURST"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	stateDir := "."
	if dir, err := os.UserConfigDir(); err == nil {
		stateDir = filepath.Join(dir, "compatd")
	}

	return Config{
		StateDir:        stateDir,
		PublishInterval: compat.DefaultPublishInterval,
		LogLevel:        zerolog.LevelInfoValue,
	}
}

// Load reads the configuration file at path, applies environment overrides,
// resolves paths and validates the result. Files ending in .toml are decoded
// as TOML, anything else as YAML. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "failed to read config")
		}

		decode := decodeYAML
		if filepath.Ext(path) == ".toml" {
			decode = decodeTOML
		}

		if err := decode(b, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "failed to parse config %q", path)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, errors.Wrap(err, "failed to parse environment")
	}

	cfg.Resolve()

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

// Resolve fills in empty paths with the legacy file names and makes every
// path absolute under StateDir.
func (c *Config) Resolve() {
	if abs, err := filepath.Abs(c.StateDir); err == nil {
		c.StateDir = abs
	}

	resolve := func(path *string, def string) {
		if *path == "" {
			*path = def
		}
		if !filepath.IsAbs(*path) {
			*path = filepath.Join(c.StateDir, *path)
		}
	}

	resolve(&c.StatusPath, StatusFile)
	resolve(&c.ObjectsPath, ObjectsFile)
	resolve(&c.CommandPath, CommandFile)
	resolve(&c.JournalPath, JournalFile)
	resolve(&c.ObjectsFile, DefsFile)
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	if c.PublishInterval <= 0 {
		return errors.Errorf("publish_interval must be positive, got %v", c.PublishInterval)
	}

	if c.Dispatch.Workers < 0 {
		return errors.Errorf("dispatch.workers must not be negative, got %d", c.Dispatch.Workers)
	}
	if c.Dispatch.Rate < 0 {
		return errors.Errorf("dispatch.rate must not be negative, got %v", c.Dispatch.Rate)
	}
	if c.Dispatch.Burst < 0 {
		return errors.Errorf("dispatch.burst must not be negative, got %d", c.Dispatch.Burst)
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	paths := map[string]string{}
	for name, path := range map[string]string{
		"status_path":  c.StatusPath,
		"objects_path": c.ObjectsPath,
		"command_path": c.CommandPath,
		"journal_path": c.JournalPath,
		"objects_file": c.ObjectsFile,
	} {
		path = filepath.Clean(path)
		if other, dup := paths[path]; dup {
			return errors.Errorf("%s and %s both point to %s", name, other, path)
		}
		paths[path] = name
	}

	return nil
}

// Level returns the parsed log level.
func (c Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, errors.Wrap(err, "invalid log_level")
	}
	return level, nil
}

// Options returns the component options.
func (c Config) Options() compat.Options {
	return compat.Options{
		StatusPath:      c.StatusPath,
		ObjectsPath:     c.ObjectsPath,
		CommandPath:     c.CommandPath,
		PublishInterval: c.PublishInterval,
		Workers:         c.Dispatch.Workers,
		Rate:            c.Dispatch.Rate,
		Burst:           c.Dispatch.Burst,
	}
}

// LoadObjects reads and validates the object definitions at path. The
// returned error matches os.ErrNotExist if the file does not exist.
func LoadObjects(path string) (registry.Objects, error) {
	var objs registry.Objects

	b, err := os.ReadFile(path)
	if err != nil {
		return objs, errors.Wrap(err, "failed to read objects")
	}

	if err := decodeYAML(b, &objs); err != nil {
		return objs, errors.Wrapf(err, "failed to parse objects %q", path)
	}

	if err := objs.Validate(); err != nil {
		return objs, errors.Wrapf(err, "invalid objects %q", path)
	}

	return objs, nil
}

// decodeYAML decodes b into v, rejecting unknown keys. An empty document
// leaves v untouched.
func decodeYAML(b []byte, v interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(v); err != nil && err != io.EOF {
		return err
	}

	return nil
}

// decodeTOML decodes b into v, rejecting unknown keys.
func decodeTOML(b []byte, v interface{}) error {
	meta, err := toml.Decode(string(b), v)
	if err != nil {
		return err
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("unknown key %q", undecoded[0].String())
	}

	return nil
}
