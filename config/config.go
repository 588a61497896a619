package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverBadger   = "badger"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Store     StoreConfig     `mapstructure:"store"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Signer    SignerConfig    `mapstructure:"signer"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Vault     VaultConfig     `mapstructure:"vault"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StoreConfig selects the transaction store backend.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`      // postgres | badger
	BadgerPath string `mapstructure:"badger_path"` // data dir for the badger driver
}

type LedgerConfig struct {
	RESTURL         string        `mapstructure:"rest_url"`
	ChainID         string        `mapstructure:"chain_id"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BalanceCacheTTL time.Duration `mapstructure:"balance_cache_ttl"` // 0 disables the cache
	Breaker         BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type ReconcileConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	Interval      time.Duration `mapstructure:"interval"` // 0 disables the background worker
}

type SignerConfig struct {
	URL     string        `mapstructure:"url"` // empty = no wallet bridge configured
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"` // empty disables event publishing
	Subject string `mapstructure:"subject"`
}

type VaultConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
	Mount   string `mapstructure:"mount"`
	Path    string `mapstructure:"path"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CPR_.
// Nested keys use underscore: CPR_LEDGER_REST_URL, CPR_RECONCILE_CONCURRENCY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "chainpay")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("store.badger_path", "./data/badger")
	v.SetDefault("ledger.rest_url", "https://api.xion-testnet-2.burnt.com")
	v.SetDefault("ledger.chain_id", "xion-testnet-2")
	v.SetDefault("ledger.timeout", "10s")
	v.SetDefault("ledger.balance_cache_ttl", "15s")
	v.SetDefault("ledger.breaker.max_requests", 1)
	v.SetDefault("ledger.breaker.interval", "60s")
	v.SetDefault("ledger.breaker.timeout", "30s")
	v.SetDefault("ledger.breaker.consecutive_failures", 5)
	v.SetDefault("reconcile.concurrency", 8)
	v.SetDefault("reconcile.lookup_timeout", "10s")
	v.SetDefault("reconcile.lock_ttl", "2m")
	v.SetDefault("reconcile.stale_after", "24h")
	v.SetDefault("reconcile.interval", "0s")
	v.SetDefault("signer.url", "")
	v.SetDefault("signer.api_key", "")
	v.SetDefault("signer.timeout", "30s")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "transactions.status_changed")
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "http://127.0.0.1:8200")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.path", "chainpay-reconciler")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "chainpay-reconciler")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "chainpay")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// CPR_LEDGER_REST_URL -> ledger.rest_url
	v.SetEnvPrefix("CPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverBadger:
	default:
		errs = append(errs, fmt.Errorf("store.driver: unsupported driver %q", c.Store.Driver))
	}
	if c.Ledger.RESTURL == "" {
		errs = append(errs, errors.New("ledger.rest_url: required"))
	}
	if c.Reconcile.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("reconcile.concurrency: must be >= 1, got %d", c.Reconcile.Concurrency))
	}
	if c.Reconcile.Interval < 0 {
		errs = append(errs, errors.New("reconcile.interval: must not be negative"))
	}
	return errors.Join(errs...)
}
