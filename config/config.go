// Package config loads the buildwatch configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the project root when no path is given.
const DefaultFileName = "buildwatch.yaml"

// ErrNoConfigFile is returned by Load when the file does not exist.
var ErrNoConfigFile = errors.New("config file does not exist")

// Config is the watch session configuration. Environment variables override
// values from the file.
type Config struct {
	// RootDir is the project root. Relative values resolve against the config file's directory.
	RootDir string `yaml:"root" env:"BUILDWATCH_ROOT"`
	// BuildConfig is the project's build config file; a change to it forces a full rebuild.
	BuildConfig string        `yaml:"build_config" env:"BUILDWATCH_BUILD_CONFIG" env-default:"stencil.config.ts"`
	Delay       time.Duration `yaml:"delay" env:"BUILDWATCH_DELAY" env-default:"20ms"`

	CopyTasks []string `yaml:"copy_tasks" env:"BUILDWATCH_COPY_TASKS" env-separator:","`
	Exclude   []string `yaml:"exclude" env:"BUILDWATCH_EXCLUDE" env-separator:","`

	// BuildCommand runs once per coalesced change set. Empty disables it.
	BuildCommand string `yaml:"build_command" env:"BUILDWATCH_BUILD_COMMAND"`

	MaxFileSize       int64         `yaml:"max_file_size" env:"BUILDWATCH_MAX_FILE_SIZE" env-default:"1048576"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval" env:"BUILDWATCH_RECONCILE_INTERVAL" env-default:"0s"`

	LogLevel string `yaml:"log_level" env:"BUILDWATCH_LOG_LEVEL" env-default:"info"`
	LogFile  string `yaml:"log_file" env:"BUILDWATCH_LOG_FILE"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		BuildConfig: "stencil.config.ts",
		Delay:       20 * time.Millisecond,
		CopyTasks:   []string{"src/assets"},
		MaxFileSize: 1024 * 1024,
		LogLevel:    "info",
	}
}

// Load reads path and applies environment overrides, then resolves relative
// paths. A missing file returns ErrNoConfigFile.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: %s", ErrNoConfigFile, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolving config path: %w", err)
	}
	cfg.Resolve(filepath.Dir(absPath))
	return cfg, nil
}

// FromEnv builds a configuration from defaults and environment variables only.
func FromEnv(baseDir string) (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}
	if len(cfg.CopyTasks) == 0 {
		cfg.CopyTasks = Default().CopyTasks
	}
	cfg.Resolve(baseDir)
	return cfg, nil
}

// Resolve makes RootDir and BuildConfig absolute. RootDir defaults to baseDir;
// BuildConfig resolves against RootDir.
func (c *Config) Resolve(baseDir string) {
	if c.RootDir == "" {
		c.RootDir = baseDir
	} else if !filepath.IsAbs(c.RootDir) {
		c.RootDir = filepath.Join(baseDir, c.RootDir)
	}
	c.RootDir = filepath.Clean(c.RootDir)

	if c.BuildConfig != "" && !filepath.IsAbs(c.BuildConfig) {
		c.BuildConfig = filepath.Join(c.RootDir, c.BuildConfig)
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.RootDir, "buildwatch.log")
	}
}

// fileView is Config as written to disk, with durations in their string form.
type fileView struct {
	RootDir           string   `yaml:"root,omitempty"`
	BuildConfig       string   `yaml:"build_config"`
	Delay             string   `yaml:"delay"`
	CopyTasks         []string `yaml:"copy_tasks"`
	Exclude           []string `yaml:"exclude"`
	BuildCommand      string   `yaml:"build_command"`
	MaxFileSize       int64    `yaml:"max_file_size"`
	ReconcileInterval string   `yaml:"reconcile_interval"`
	LogLevel          string   `yaml:"log_level"`
	LogFile           string   `yaml:"log_file,omitempty"`
}

func (c Config) fileView() fileView {
	return fileView{
		RootDir:           c.RootDir,
		BuildConfig:       c.BuildConfig,
		Delay:             c.Delay.String(),
		CopyTasks:         c.CopyTasks,
		Exclude:           append([]string{}, c.Exclude...),
		BuildCommand:      c.BuildCommand,
		MaxFileSize:       c.MaxFileSize,
		ReconcileInterval: c.ReconcileInterval.String(),
		LogLevel:          c.LogLevel,
		LogFile:           c.LogFile,
	}
}

// WriteDefault writes a starter config file to path. It refuses to overwrite.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg := Default()
	data, err := yaml.Marshal(cfg.fileView())
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}

	header := []byte("# buildwatch configuration. Environment variables (BUILDWATCH_*) override these values.\n")
	if err := os.WriteFile(path, append(header, data...), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
