// Package config loads runtime settings from the environment (optionally
// seeded from a .env file) and selector overrides from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"shopflow/domain/entities"
	"shopflow/domain/errs"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvDriver        = "SHOPFLOW_DRIVER"
	EnvBaseURL       = "SHOPFLOW_BASE_URL"
	EnvHeadless      = "SHOPFLOW_HEADLESS"
	EnvSlowMo        = "SHOPFLOW_SLOW_MO_MS"
	EnvLogLevel      = "SHOPFLOW_LOG_LEVEL"
	EnvHistoryPath   = "SHOPFLOW_HISTORY_PATH"
	EnvSelectorsFile = "SHOPFLOW_SELECTORS_FILE"
	EnvStatePath     = "SHOPFLOW_STATE_PATH"
	EnvDriverPath    = "BROWSER_DRIVER_PATH"
	EnvChromeBinary  = "CHROME_BINARY_PATH"
)

const stateDir = ".shopflow"

// Config is the runtime configuration.
type Config struct {
	Driver        string
	BaseURL       string
	Headless      bool
	SlowMo        time.Duration
	LogLevel      logrus.Level
	HistoryPath   string
	SelectorsFile string
	StatePath     string
	DriverPath    string
	ChromeBinary  string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// .env file is optional
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset values.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Driver:        "playwright",
		BaseURL:       strings.TrimRight(getenv(EnvBaseURL), "/"),
		Headless:      true,
		LogLevel:      logrus.InfoLevel,
		SelectorsFile: getenv(EnvSelectorsFile),
		StatePath:     getenv(EnvStatePath),
		DriverPath:    getenv(EnvDriverPath),
		ChromeBinary:  getenv(EnvChromeBinary),
	}

	if v := strings.ToLower(strings.TrimSpace(getenv(EnvDriver))); v != "" {
		cfg.Driver = v
	}

	if v := getenv(EnvHeadless); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, fmt.Sprintf("invalid %s %q", EnvHeadless, v), err)
		}
		cfg.Headless = b
	}

	if v := getenv(EnvSlowMo); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("invalid %s %q", EnvSlowMo, v))
		}
		cfg.SlowMo = time.Duration(ms) * time.Millisecond
	}

	if v := getenv(EnvLogLevel); v != "" {
		level, err := logrus.ParseLevel(v)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, fmt.Sprintf("invalid %s %q", EnvLogLevel, v), err)
		}
		cfg.LogLevel = level
	}

	cfg.HistoryPath = getenv(EnvHistoryPath)
	if cfg.HistoryPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		cfg.HistoryPath = filepath.Join(homeDir, stateDir, "history.json")
	}

	return cfg, nil
}

// NewLogger returns the process logger at the configured level.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

// SelectorOverrides maps a page name ("home", "snowboards") to selectors that
// replace or extend the page's built-in map.
type SelectorOverrides map[string]entities.SelectorMap

// For returns the overrides of one page, nil when there are none.
func (o SelectorOverrides) For(page string) entities.SelectorMap {
	if o == nil {
		return nil
	}
	return o[page]
}

// LoadSelectorOverrides parses a YAML document keyed by page name. An empty
// path yields no overrides.
func LoadSelectorOverrides(path string) (SelectorOverrides, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selector overrides: %w", err)
	}
	return ParseSelectorOverrides(data)
}

// ParseSelectorOverrides parses YAML selector overrides.
func ParseSelectorOverrides(data []byte) (SelectorOverrides, error) {
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "failed to parse selector overrides", err)
	}
	out := make(SelectorOverrides, len(raw))
	for page, m := range raw {
		out[page] = entities.SelectorMap(m)
	}
	return out, nil
}
