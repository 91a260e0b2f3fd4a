// Package config loads the command line tool's settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds the tool settings. Zero fields are replaced by defaults.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// FragmentSize is how many bytes are handed to the demuxer at a time.
	FragmentSize int `yaml:"fragment_size"`
	// Output selects the report format: text or yaml.
	Output string `yaml:"output"`
	// ExtractDir is where extract writes track payloads.
	ExtractDir string `yaml:"extract_dir"`
	// Concurrency bounds how many files are processed at once.
	Concurrency int `yaml:"concurrency"`
}

const (
	DefaultFragmentSize = 64 << 10
	DefaultLogLevel     = "info"
	DefaultOutput       = "text"
	DefaultExtractDir   = "."
)

// Default returns the built-in configuration.
func Default() Config {
	c := Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.FragmentSize == 0 {
		c.FragmentSize = DefaultFragmentSize
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.ExtractDir == "" {
		c.ExtractDir = DefaultExtractDir
	}
	if c.Concurrency == 0 {
		c.Concurrency = runtime.GOMAXPROCS(0)
	}
}

// Decode reads a YAML document from r. Unknown keys are an error.
func Decode(r io.Reader) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads the file at path. An empty path yields Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.FragmentSize < 1 {
		return fmt.Errorf("config: fragment_size must be positive, got %d", c.FragmentSize)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be positive, got %d", c.Concurrency)
	}
	switch c.Output {
	case "text", "yaml":
	default:
		return fmt.Errorf("config: unknown output %q", c.Output)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}
