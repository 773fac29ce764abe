package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the focusguard service.
type Config struct {
	HTTPPort   int
	SQLiteDSN  string
	SessionTTL time.Duration
	TickPeriod time.Duration
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields while collecting every
// invalid entry so callers see all problems in a single error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:   8080,
		SQLiteDSN:  "file:focusguard.db?_foreign_keys=on",
		SessionTTL: 24 * time.Hour,
		TickPeriod: time.Second,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("FOCUSGUARD_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "FOCUSGUARD_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("FOCUSGUARD_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("FOCUSGUARD_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "FOCUSGUARD_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if tickValue := strings.TrimSpace(os.Getenv("FOCUSGUARD_TICK_PERIOD")); tickValue != "" {
		tick, err := time.ParseDuration(tickValue)
		if err != nil || tick <= 0 {
			invalid = append(invalid, "FOCUSGUARD_TICK_PERIOD")
		} else {
			cfg.TickPeriod = tick
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
