package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Env holds runtime settings read from the environment. Command-line
// flags override them.
type Env struct {
	DB        string `env:"INSTRUMENTD_DB"         envDefault:"instrumentd.db"`
	Config    string `env:"INSTRUMENTD_CONFIG"`
	LogLevel  string `env:"INSTRUMENTD_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"INSTRUMENTD_LOG_FORMAT" envDefault:"text"`
}

// LoadEnv reads Env from the process environment.
func LoadEnv() (Env, error) {
	return parseEnv(env.Options{})
}

// LoadEnvFrom reads Env from vars instead of the process environment.
func LoadEnvFrom(vars map[string]string) (Env, error) {
	return parseEnv(env.Options{Environment: vars})
}

func parseEnv(opts env.Options) (Env, error) {
	var cfg Env
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Level(); err != nil {
		return Env{}, err
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Env{}, fmt.Errorf("parse env: INSTRUMENTD_LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	return cfg, nil
}

// Level returns LogLevel as a slog level.
func (e Env) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(e.LogLevel))); err != nil {
		return 0, fmt.Errorf("parse env: INSTRUMENTD_LOG_LEVEL: %w", err)
	}
	return l, nil
}
