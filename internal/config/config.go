package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults for fields left empty.
const (
	DefaultRegistryBaseURL = "https://registry.npmjs.org"
	DefaultLogLevel        = "info"
	DefaultConcurrency     = 4
	DefaultHashWorkers     = 4
	DefaultRequestTimeout  = Duration(30 * time.Second)
)

// Duration is a time.Duration that unmarshals from yaml strings like "30s".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("requestTimeout must be a duration string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config carries every knob the verification engine recognizes. The registry
// base URL is threaded through explicitly; there is no process-wide override.
type Config struct {
	// RegistryBaseURL is the npm-compatible registry serving metadata and
	// tarballs. Override it for private or mirror registries.
	RegistryBaseURL string `yaml:"registryBaseURL"`

	// SourceHostBaseURL, when set, replaces the host derived from a
	// package's repository URL when building release-archive URLs. Meant
	// for mirrors and tests; empty means "use the repository's own host".
	SourceHostBaseURL string `yaml:"sourceHostBaseURL"`

	// ScratchDir is where downloads and extracted trees land. Required.
	ScratchDir string `yaml:"scratchDir"`

	LogLevel string `yaml:"logLevel"`

	// Concurrency bounds how many dependencies are verified at once.
	Concurrency int `yaml:"concurrency"`

	// HashWorkers bounds parallel file hashing within one dependency.
	HashWorkers int `yaml:"hashWorkers"`

	RequestTimeout Duration `yaml:"requestTimeout"`
}

// Default returns a config with every defaultable field populated. The
// scratch directory is intentionally left empty: callers must choose it.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads a yaml config file and applies defaults to unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	c.ApplyDefaults()
	return &c, nil
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.RegistryBaseURL == "" {
		c.RegistryBaseURL = DefaultRegistryBaseURL
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.HashWorkers <= 0 {
		c.HashWorkers = DefaultHashWorkers
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Validate reports the first problem that would make a run impossible.
func (c *Config) Validate() error {
	if c.RegistryBaseURL == "" {
		return fmt.Errorf("registryBaseURL must not be empty")
	}
	if c.ScratchDir == "" {
		return fmt.Errorf("scratchDir is required")
	}
	switch c.LogLevel {
	case "debug", "info", "error":
	default:
		return fmt.Errorf("invalid logLevel %q (expected debug|info|error)", c.LogLevel)
	}
	return nil
}

// ScratchDirAbs returns the absolute path to the scratch directory.
func (c *Config) ScratchDirAbs() (string, error) {
	return filepath.Abs(c.ScratchDir)
}

// CreateScratchDir ensures the scratch directory exists.
func (c *Config) CreateScratchDir() error {
	dir, err := c.ScratchDirAbs()
	if err != nil {
		return fmt.Errorf("resolving scratch directory: %w", err)
	}
	return createDirIfNotExists(dir)
}

func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
