package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/fliphouse/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"API_PORT" default:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" default:"INFO"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Keeper burn cadence, surfaced as the /burns countdown.
	BurnInterval time.Duration `env:"BURN_INTERVAL" default:"150s"`

	Postgres config.PostgresConfig
	Ledger   config.LedgerConfig
}
