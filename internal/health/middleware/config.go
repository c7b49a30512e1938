// Package middleware provides HTTP middleware components for the health
// and readiness surface.
package middleware

import (
	"github.com/snak3gh0st/emendas-etl/internal/config"
)

const (
	defaultRPS   = 10
	defaultBurst = 20
)

// Config holds rate limiter configuration for the health surface's single
// global token bucket (no per-plugin tiers, unlike the teacher's API).
type Config struct {
	RPS   int // Default: 10
	Burst int // Default: 20 (0 falls back to the default, not to "unlimited")
}

// LoadConfig loads middleware config from environment variables with
// fallback to defaults.
func LoadConfig() *Config {
	rps := config.GetEnvInt("EMENDAS_HEALTH_RPS", defaultRPS)
	burst := config.GetEnvInt("EMENDAS_HEALTH_BURST", defaultBurst)

	if burst == 0 {
		burst = defaultBurst
	}

	return &Config{
		RPS:   rps,
		Burst: burst,
	}
}
