package main

import (
	"fmt"
	"os"
	"time"

	"dbgate/internal/db"
	"dbgate/internal/env"
	"dbgate/internal/platform/config"
	"dbgate/internal/services/web"
)

// settings collects every process-level knob read from the environment.
type settings struct {
	Port int

	Mode      web.Mode
	DevURL    string
	StaticDir string

	Default      env.Name
	QueryTimeout time.Duration
	ProbeTimeout time.Duration
	ReadOnly     bool
	Pool         db.Options

	HTTPTimeout time.Duration
	MaxInFlight int
	RateRPS     float64
	RateBurst   int
	AllowOrigin string
}

func loadSettings() (settings, error) {
	def := config.Getenv("DEFAULT_ENVIRONMENT", string(env.Default))
	n, ok := env.Parse(def)
	if !ok {
		return settings{}, fmt.Errorf("DEFAULT_ENVIRONMENT: unknown environment %q", def)
	}

	return settings{
		Port: config.GetenvInt("PORT", 3000),

		Mode:      web.ParseMode(config.Getenv("APP_ENV", string(web.Production))),
		DevURL:    config.Getenv("FRONTEND_DEV_URL", "http://localhost:5173"),
		StaticDir: config.Getenv("STATIC_DIR", "./dist"),

		Default:      n,
		QueryTimeout: config.GetenvDuration("QUERY_TIMEOUT", 30*time.Second),
		ProbeTimeout: config.GetenvDuration("PROBE_TIMEOUT", 5*time.Second),
		ReadOnly:     config.GetenvBool("QUERY_READ_ONLY", false),
		Pool: db.Options{
			MaxOpenConns:    config.GetenvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    config.GetenvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: config.GetenvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: config.GetenvDuration("DB_CONN_MAX_IDLE_TIME", 0),
		},

		HTTPTimeout: config.GetenvDuration("HTTP_TIMEOUT", 60*time.Second),
		MaxInFlight: config.GetenvInt("HTTP_MAX_INFLIGHT", 512),
		RateRPS:     config.GetenvFloat("RATELIMIT_RPS", 50),
		RateBurst:   config.GetenvInt("RATELIMIT_BURST", 100),
		AllowOrigin: config.Getenv("CORS_ALLOW_ORIGIN", "*"),
	}, nil
}

// loadConfigs resolves every environment from the process environment and
// validates all of them.
func loadConfigs() (env.Configs, error) {
	cfgs := env.ResolveAll(os.Getenv)
	return cfgs, env.Validate(cfgs)
}
