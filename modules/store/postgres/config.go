package postgres

import (
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	defaultMaxConns       = 4
	defaultConnectTimeout = 10 * time.Second
)

// Config holds the PostgreSQL store module configuration.
type Config struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN string `yaml:"dsn"`

	// DSNEnv names an environment variable holding the DSN. Used when DSN
	// is empty.
	DSNEnv string `yaml:"dsn_env"`

	// MaxConns caps the pool size. Defaults to 4.
	MaxConns int32 `yaml:"max_conns"`

	// ConnectTimeout bounds the initial connection and schema setup.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	fromEnv bool
}

func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = defaultMaxConns
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.DSN == "" && c.DSNEnv != "" {
		c.DSN = os.Getenv(c.DSNEnv)
		c.fromEnv = true
	}
}

// inlinePassword reports whether the config file itself carries a
// database password.
func (c *Config) inlinePassword() bool {
	if c.fromEnv || c.DSN == "" {
		return false
	}
	cc, err := pgx.ParseConfig(c.DSN)
	return err == nil && cc.Password != ""
}

func (c *Config) validate() error {
	if c.DSN == "" {
		if c.DSNEnv != "" {
			return fmt.Errorf("postgres: environment variable %s is empty", c.DSNEnv)
		}
		return fmt.Errorf("postgres: one of dsn or dsn_env is required")
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("postgres: max_conns must be non-negative, got %d", c.MaxConns)
	}
	return nil
}
