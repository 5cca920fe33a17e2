package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

const (
	StageProd = "prod"
	StageDev  = "dev"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSqlite   = "sqlite"
)

type Config struct {
	Stage string `env:"STAGE" envDefault:"dev"`
	Port  int    `env:"PORT" envDefault:"8000"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseUrl string `env:"DATABASE_URL"`
	SqlitePath  string `env:"SQLITE_PATH" envDefault:"battleship.db"`

	// Authority receives fees. Empty means a random identity for local runs.
	Authority   string `env:"AUTHORITY"`
	FeeBps      uint16 `env:"FEE_BPS" envDefault:"0"`
	MaxGridSize uint8  `env:"MAX_GRID_SIZE" envDefault:"10"`

	// Wallet balance new identities start with in the in-process vault.
	Faucet uint64 `env:"FAUCET" envDefault:"0"`

	CommitFlushInterval time.Duration `env:"COMMIT_FLUSH_INTERVAL" envDefault:"2s"`

	// Require an EdDSA token signed by the connecting identity.
	SignedSessions     bool          `env:"SIGNED_SESSIONS" envDefault:"false"`
	SessionTokenWindow time.Duration `env:"SESSION_TOKEN_WINDOW" envDefault:"1m"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Stage != StageDev && c.Stage != StageProd {
		return fmt.Errorf("stage must be either dev or prod, got %q", c.Stage)
	}

	switch c.StoreDriver {
	case StoreMemory, StoreSqlite:
	case StorePostgres:
		if c.DatabaseUrl == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unsupported store driver %q", c.StoreDriver)
	}

	if c.CommitFlushInterval <= 0 {
		return fmt.Errorf("commit flush interval must be positive")
	}
	if c.Stage == StageProd && !c.SignedSessions {
		return fmt.Errorf("signed sessions are required in prod")
	}
	if c.SignedSessions && c.SessionTokenWindow <= 0 {
		return fmt.Errorf("session token window must be positive")
	}
	if c.Authority != "" {
		if _, err := ledger.ParseIdentity(c.Authority); err != nil {
			return err
		}
	}
	return nil
}

// AuthorityIdentity returns the configured fee collector or a fresh one.
func (c Config) AuthorityIdentity() ledger.Identity {
	if c.Authority == "" {
		return ledger.NewIdentity()
	}
	return ledger.MustParseIdentity(c.Authority)
}
