// Package config loads rigup settings from the environment and an optional
// dotenv file. The resulting Settings value is passed explicitly to every
// entry point; nothing below cmd/ reads the environment itself.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Wait bounds for interactive authentication polling, in seconds.
const (
	MinWaitSeconds     = 10
	MaxWaitSeconds     = 900
	DefaultWaitSeconds = 120
)

// Settings holds values shared by all subcommands. Flags override them.
type Settings struct {
	// CatalogDir is a directory of capability YAML files. Empty selects the
	// catalog built into the binary.
	CatalogDir     string        `env:"RIGUP_CATALOG"`
	SessionName    string        `env:"RIGUP_SESSION" envDefault:"setup"`
	WaitSeconds    int           `env:"RIGUP_WAIT_SECONDS" envDefault:"120"`
	InstallTimeout time.Duration `env:"RIGUP_INSTALL_TIMEOUT" envDefault:"5m"`
	PollInterval   time.Duration `env:"RIGUP_POLL_INTERVAL" envDefault:"3s"`
	TmuxBinary     string        `env:"RIGUP_TMUX" envDefault:"tmux"`
	Debug          bool          `env:"RIGUP_DEBUG"`
}

// Load builds Settings from environ (KEY=VALUE pairs, usually os.Environ()).
// When envFile is set its values are used for keys environ does not define.
// The process environment is never modified.
func Load(envFile string, environ []string) (Settings, error) {
	merged := map[string]string{}
	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil {
			return Settings{}, fmt.Errorf("reading env file %s: %w", envFile, err)
		}
		for k, v := range fileVars {
			merged[k] = v
		}
	}
	for k, v := range env.ToMap(environ) {
		merged[k] = v
	}

	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Environment: merged}); err != nil {
		return Settings{}, fmt.Errorf("parsing settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate rejects settings no run can use. The wait value is not rejected
// here; it is clamped by ClampWait where it is consumed.
func (s Settings) Validate() error {
	var errs []error
	if s.SessionName == "" {
		errs = append(errs, errors.New("session name must not be empty"))
	}
	if s.InstallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("install timeout must be positive, got %s", s.InstallTimeout))
	}
	if s.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", s.PollInterval))
	}
	if s.TmuxBinary == "" {
		errs = append(errs, errors.New("tmux binary must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid settings: %w", errors.Join(errs...))
	}
	return nil
}

// ClampWait bounds a wait in seconds to [MinWaitSeconds, MaxWaitSeconds].
// Zero selects DefaultWaitSeconds.
func ClampWait(seconds int) int {
	switch {
	case seconds == 0:
		return DefaultWaitSeconds
	case seconds < MinWaitSeconds:
		return MinWaitSeconds
	case seconds > MaxWaitSeconds:
		return MaxWaitSeconds
	}
	return seconds
}
