// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"blockduel/internal/game"
	"blockduel/pkg/realtime"
)

// Config is the process configuration.
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"BASE_URL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	QueueLength   int           `env:"QUEUE_LENGTH" envDefault:"1000"`
	TickBase      time.Duration `env:"TICK_BASE" envDefault:"1s"`
	TickStep      time.Duration `env:"TICK_STEP" envDefault:"100ms"`
	TickFloor     time.Duration `env:"TICK_FLOOR" envDefault:"100ms"`
	TickCycle     time.Duration `env:"TICK_CYCLE" envDefault:"10s"`
	CountdownStep time.Duration `env:"COUNTDOWN_STEP" envDefault:"1s"`
	IdleGrace     time.Duration `env:"MATCH_IDLE_GRACE" envDefault:"30s"`

	AllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

var ErrInvalid = errors.New("invalid config")

// Load reads files (".env" when none are given) into the environment, then
// parses it. Missing files are skipped; variables already set win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects values the game cannot run with.
func (c Config) Validate() error {
	switch {
	case c.QueueLength < 1:
		return fmt.Errorf("%w: QUEUE_LENGTH must be positive, got %d", ErrInvalid, c.QueueLength)
	case c.TickBase <= 0 || c.TickFloor <= 0 || c.TickCycle <= 0:
		return fmt.Errorf("%w: TICK_BASE, TICK_FLOOR and TICK_CYCLE must be positive", ErrInvalid)
	case c.TickStep < 0:
		return fmt.Errorf("%w: TICK_STEP must not be negative", ErrInvalid)
	case c.TickFloor > c.TickBase:
		return fmt.Errorf("%w: TICK_FLOOR %s exceeds TICK_BASE %s", ErrInvalid, c.TickFloor, c.TickBase)
	case c.CountdownStep <= 0:
		return fmt.Errorf("%w: COUNTDOWN_STEP must be positive", ErrInvalid)
	case c.IdleGrace < 0:
		return fmt.Errorf("%w: MATCH_IDLE_GRACE must not be negative", ErrInvalid)
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

// MatchSettings converts the timing and queue options for the game store.
func (c Config) MatchSettings() game.Settings {
	return game.Settings{
		QueueLength: c.QueueLength,
		Cadence: realtime.Cadence{
			Base:  c.TickBase,
			Step:  c.TickStep,
			Floor: c.TickFloor,
			Cycle: c.TickCycle,
		},
		CountdownStep: c.CountdownStep,
		IdleGrace:     c.IdleGrace,
	}
}
