// Package config reads the server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvLogLevel     = "HOUGH_MCP_LOG_LEVEL"
	EnvLogFile      = "HOUGH_MCP_LOG_FILE"
	EnvWorkers      = "HOUGH_MCP_WORKERS"
	EnvMaxImageSide = "HOUGH_MCP_MAX_IMAGE_SIDE"
)

// Config holds the process-wide settings.
type Config struct {
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `validate:"oneof=trace debug info warn error"`

	// LogFile, when set, receives a rotated copy of the log.
	LogFile string

	// Workers bounds the goroutines used per detection. Zero selects
	// GOMAXPROCS.
	Workers int `validate:"gte=0,lte=1024"`

	// MaxImageSide rejects larger images at load time. Zero selects the
	// detector limit.
	MaxImageSide int `validate:"gte=0,lt=65535"`
}

// Default returns the settings used when no variable is set.
func Default() Config {
	return Config{LogLevel: "info"}
}

var validate = validator.New()

// Load merges the given dotenv files into the process environment, then
// reads the configuration from it. Missing dotenv files are skipped and
// variables already present in the environment win.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config using getenv for lookups.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.LogFile = strings.TrimSpace(getenv(EnvLogFile))

	var err error
	if cfg.Workers, err = intVar(getenv, EnvWorkers); err != nil {
		return nil, err
	}
	if cfg.MaxImageSide, err = intVar(getenv, EnvMaxImageSide); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func intVar(getenv func(string) string, name string) (int, error) {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}
