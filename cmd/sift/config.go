package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "SIFT_"
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// cliConfig is the CLI configuration. Values come from the defaults, then
// the YAML file named by --config, then SIFT_* environment variables.
// Command-line flags override all of them.
type cliConfig struct {
	Log     logConfig     `koanf:"log"`
	Profile string        `koanf:"profile" validate:"required"`
	Store   string        `koanf:"store" validate:"required"`
	Match   matchConfig   `koanf:"match"`
	Analyze analyzeConfig `koanf:"analyze"`
}

type logConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled off"`
	Format string `koanf:"format" validate:"omitempty,oneof=console json"`
}

type matchConfig struct {
	MaxMatches   int   `koanf:"max_matches" validate:"min=0"`
	MaxSteps     int64 `koanf:"max_steps" validate:"min=0"`
	TimeoutMS    int64 `koanf:"timeout_ms" validate:"min=0"`
	ContextLines int   `koanf:"context_lines" validate:"min=0"`
}

type analyzeConfig struct {
	Workers          int    `koanf:"workers" validate:"min=1"`
	MaxFileSize      int64  `koanf:"max_file_size" validate:"min=1"`
	IncludeHidden    bool   `koanf:"include_hidden"`
	ExtractDocuments string `koanf:"extract_documents"`
}

func defaultConfig() *cliConfig {
	return &cliConfig{
		Log:     logConfig{Level: "info", Format: "console"},
		Profile: "default",
		Store:   "sift.db",
		Match:   matchConfig{ContextLines: 1},
		Analyze: analyzeConfig{Workers: 4, MaxFileSize: 10 * 1024 * 1024},
	}
}

// loadConfig layers the config file and environment over the defaults.
// An empty path skips the file.
func loadConfig(path string) (*cliConfig, error) {
	k := koanf.New(".")

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// SIFT_LOG_LEVEL -> log.level, SIFT_ANALYZE_MAX_FILE_SIZE -> analyze.max_file_size
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := defaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var configValidator = newConfigValidator()

// newConfigValidator reports fields by their config keys.
func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("koanf"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

func validateConfig(cfg *cliConfig) error {
	err := configValidator.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		key := strings.TrimPrefix(fe.Namespace(), "cliConfig.")
		switch fe.Tag() {
		case "required":
			msgs[i] = fmt.Sprintf("%s is required", key)
		case "min":
			msgs[i] = fmt.Sprintf("%s must be at least %s, got %v", key, fe.Param(), fe.Value())
		case "oneof":
			msgs[i] = fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
		default:
			msgs[i] = fmt.Sprintf("%s failed %s", key, fe.Tag())
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// envKey maps an environment variable to a config key, splitting the
// section from the field on the first underscore.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}
