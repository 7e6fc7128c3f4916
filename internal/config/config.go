package config

import "time"

type PostgresConfig struct {
	DSN string `env:"PG_DSN"`
}

// LedgerConfig covers the Solana RPC connection and the house wallet.
type LedgerConfig struct {
	RPCURL string `env:"RPC_URL" default:"https://api.mainnet-beta.solana.com"`

	// Path to the house keypair in solana-keygen JSON format.
	HouseKeyPath string `env:"HOUSE_KEYPAIR_PATH"`

	ConfirmAttempts int           `env:"CONFIRM_ATTEMPTS" default:"10"`
	ConfirmInterval time.Duration `env:"CONFIRM_INTERVAL" default:"1500ms"`
}
