package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load itself.
const (
	EnvPrefix  = "FLIGHTDELAY_"
	EnvConfig  = EnvPrefix + "CONFIG"
	EnvEnvFile = EnvPrefix + "ENV_FILE"

	defaultEnvFile = ".env"
)

var listKeys = map[string]struct{}{
	"unusual_weather": {},
	"cors_origins":    {},
}

// Load builds a Config by layering, from low to high precedence:
//  1. defaults (New)
//  2. the YAML file named by FLIGHTDELAY_CONFIG, if set
//  3. FLIGHTDELAY_* environment variables
//
// Before that, the dotenv file named by FLIGHTDELAY_ENV_FILE (default .env)
// is loaded into the environment without overriding variables already set.
// A missing dotenv file is not an error.
func Load(_ context.Context) (*Config, error) {
	envFile := os.Getenv(EnvEnvFile)
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: env file %s: %w", ErrLoadConfig, envFile, err)
	}

	base := New()
	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// FLIGHTDELAY_QUEUE_SIZE -> queue_size; underscores are kept to match
	// the koanf tags. List settings are comma separated.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if _, ok := listKeys[key]; ok {
			return key, strings.Split(value, ",")
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	// lists are replaced, not merged element-wise into the defaults
	if k.Exists("unusual_weather") {
		cfg.UnusualWeather = nil
	}
	if k.Exists("cors_origins") {
		cfg.CORSOrigins = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	cfg.UnusualWeather = trimAll(cfg.UnusualWeather)
	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func trimAll(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
