package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	ListenAddr string

	RedisURL        string
	DatabaseURL     string
	IdentityBaseURL string
	IdentityAPIKey  string

	MatchBudget       time.Duration
	StalenessWindow   time.Duration
	SweepInterval     time.Duration
	TerminalRetention time.Duration
	MatchTTL          time.Duration

	LobbyToleranceStep int
	LobbyWidenInterval time.Duration

	AllowedOrigins []string
	MessagesDir    string
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over .env entries.
func Load(files ...string) (*AppConfig, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &AppConfig{
		ListenAddr:         ":8080",
		MatchBudget:        5 * time.Minute,
		StalenessWindow:    10 * time.Minute,
		SweepInterval:      2 * time.Minute,
		TerminalRetention:  10 * time.Minute,
		MatchTTL:           24 * time.Hour,
		LobbyToleranceStep: 10,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.IdentityBaseURL = strings.TrimSpace(os.Getenv("IDENTITY_BASE_URL"))
	cfg.IdentityAPIKey = strings.TrimSpace(os.Getenv("IDENTITY_API_KEY"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"MATCH_BUDGET", &cfg.MatchBudget},
		{"STALENESS_WINDOW", &cfg.StalenessWindow},
		{"SWEEP_INTERVAL", &cfg.SweepInterval},
		{"TERMINAL_RETENTION", &cfg.TerminalRetention},
		{"MATCH_TTL", &cfg.MatchTTL},
		{"LOBBY_WIDEN_INTERVAL", &cfg.LobbyWidenInterval},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s: invalid duration %q", d.key, v)
		}
		*d.dst = parsed
	}

	if v := strings.TrimSpace(os.Getenv("LOBBY_TOLERANCE_STEP")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("LOBBY_TOLERANCE_STEP: invalid value %q", v)
		}
		cfg.LobbyToleranceStep = n
	}

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	if cfg.MatchBudget == 0 {
		return nil, errors.New("MATCH_BUDGET must be positive")
	}
	if cfg.StalenessWindow < cfg.MatchBudget {
		return nil, errors.New("STALENESS_WINDOW must not be shorter than MATCH_BUDGET")
	}
	return cfg, nil
}
