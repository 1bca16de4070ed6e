// Package config loads bounce configuration from TOML files and the
// environment.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/naoina/toml"
	"github.com/xyproto/env/v2"

	"github.com/bouncegrid/bounce/pkg/evaluator"
)

// Environment variables that override file settings.
const (
	EnvLogLevel  = "BOUNCE_LOG_LEVEL"
	EnvLogFormat = "BOUNCE_LOG_FORMAT"
	EnvLibrary   = "BOUNCE_LIBRARY"
	EnvMaxLoop   = "BOUNCE_MAX_LOOP"
)

// ProjectFile is looked up in the working directory, UserFile under the
// user's home directory.
const (
	ProjectFile = ".bounce.toml"
	UserFile    = ".bounce/config.toml"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// EngineConfig limits one execution.
type EngineConfig struct {
	MaxLoopIterations int64
	// MaxProgramDepth bounds nested ExecuteProgram dispatch in the driver.
	MaxProgramDepth int
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string
	Format string // "console" or "json"; empty picks by terminal
}

// LibraryConfig locates the program library.
type LibraryConfig struct {
	Path      string
	CacheSize int
}

// SamplesConfig lists sample files. A sample's index is its position.
type SamplesConfig struct {
	Paths []string `toml:",omitempty"`
}

// AudioConfig holds playback defaults.
type AudioConfig struct {
	Channel int
	Volume  float64
	Pitch   float64
}

// Config is the full bounce configuration.
type Config struct {
	Engine  EngineConfig
	Log     LogConfig
	Library LibraryConfig
	Samples SamplesConfig
	Audio   AudioConfig
}

// Default returns the built-in configuration.
func Default() Config {
	lib := filepath.Join(".bounce", "library")
	if home, err := os.UserHomeDir(); err == nil {
		lib = filepath.Join(home, lib)
	}
	return Config{
		Engine: EngineConfig{
			MaxLoopIterations: evaluator.DefaultMaxLoopIterations,
			MaxProgramDepth:   8,
		},
		Log:     LogConfig{Level: "info"},
		Library: LibraryConfig{Path: lib, CacheSize: 128},
		Audio:   AudioConfig{Channel: 0, Volume: 1, Pitch: 1},
	}
}

// Load returns the effective configuration. An explicit file must exist;
// without one the project file (./.bounce.toml) and then the user file
// (~/.bounce/config.toml) are tried, falling back to the defaults.
// Environment overrides apply last.
func Load(file string) (Config, error) {
	cfg := Default()
	path, err := locate(file)
	if err != nil {
		return cfg, err
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.validate()
}

func locate(file string) (string, error) {
	if file != "" {
		if _, err := os.Stat(file); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return file, nil
	}
	if _, err := os.Stat(ProjectFile); err == nil {
		return ProjectFile, nil
	}
	if home, err := os.UserHomeDir(); err == nil {
		user := filepath.Join(home, UserFile)
		if _, err := os.Stat(user); err == nil {
			return user, nil
		}
	}
	return "", nil
}

func loadFile(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return Decode(bufio.NewReader(f), file, cfg)
}

// Decode reads TOML from r into cfg. Unknown keys are errors.
func Decode(r io.Reader, name string, cfg *Config) error {
	err := tomlSettings.NewDecoder(r).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(name + ", " + err.Error())
	}
	return err
}

func applyEnv(cfg *Config) {
	cfg.Log.Level = env.Str(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = env.Str(EnvLogFormat, cfg.Log.Format)
	cfg.Library.Path = env.Str(EnvLibrary, cfg.Library.Path)
	if env.Has(EnvMaxLoop) {
		cfg.Engine.MaxLoopIterations = env.Int64(EnvMaxLoop, cfg.Engine.MaxLoopIterations)
	}
}

func (c Config) validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log format %q: want console or json", c.Log.Format)
	}
	if c.Engine.MaxProgramDepth < 0 {
		return fmt.Errorf("engine max program depth %d is negative", c.Engine.MaxProgramDepth)
	}
	if c.Library.CacheSize <= 0 {
		return fmt.Errorf("library cache size must be positive, got %d", c.Library.CacheSize)
	}
	return nil
}

// Dump writes cfg as TOML.
func Dump(w io.Writer, cfg Config) error {
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
