package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Program  ProgramConfig  `mapstructure:"program"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Client   ClientConfig   `mapstructure:"client"`
	Database DatabaseConfig `mapstructure:"database"`
	API      APIConfig      `mapstructure:"api"`
	Log      LogConfig      `mapstructure:"log"`
}

// ProgramConfig identifies the deployed fixed-ratio program.
type ProgramConfig struct {
	// ID is the base58 program address. Empty means the built-in default.
	ID string `mapstructure:"id"`
	// UpgradeAuthorityKeypair is a path to a JSON keypair file.
	UpgradeAuthorityKeypair string `mapstructure:"upgrade_authority_keypair"`
}

// LedgerConfig holds the host ledger's fee, budget and rent parameters.
type LedgerConfig struct {
	LamportsPerSignature    uint64 `mapstructure:"lamports_per_signature"`
	ComputeUnitLimit        uint64 `mapstructure:"compute_unit_limit"`
	RentLamportsPerByteYear uint64 `mapstructure:"rent_lamports_per_byte_year"`
	RentExemptionThreshold  uint64 `mapstructure:"rent_exemption_threshold"`
	GenesisUnixTimestamp    int64  `mapstructure:"genesis_unix_timestamp"`
}

// ClientConfig tunes transaction submission retries.
type ClientConfig struct {
	MaxRetries           uint          `mapstructure:"max_retries"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	RetryMaxElapsedTime  time.Duration `mapstructure:"retry_max_elapsed_time"`
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type"` // memory, postgres, mysql or mongodb
	Workers int    `mapstructure:"workers"`
	// BatchSize is how many committed transactions are buffered before
	// they are written. 1 writes every commit immediately.
	BatchSize int            `mapstructure:"batch_size"`
	Postgres  PostgresConfig `mapstructure:"postgres"`
	MySQL     MySQLConfig    `mapstructure:"mysql"`
	MongoDB   MongoDBConfig  `mapstructure:"mongodb"`
}

type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // in seconds
}

type MySQLConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // in seconds
}

type MongoDBConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	MaxPoolSize    uint64 `mapstructure:"max_pool_size"`
	MinPoolSize    uint64 `mapstructure:"min_pool_size"`
	ConnectTimeout int    `mapstructure:"connect_timeout"` // in seconds
}

// APIConfig configures the read-only HTTP API.
type APIConfig struct {
	Listen string `mapstructure:"listen"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			LamportsPerSignature:    5_000,
			ComputeUnitLimit:        200_000,
			RentLamportsPerByteYear: 3_480,
			RentExemptionThreshold:  2,
			GenesisUnixTimestamp:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
		},
		Client: ClientConfig{
			MaxRetries:           5,
			RetryInitialInterval: 50 * time.Millisecond,
			RetryMaxElapsedTime:  5 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:   true,
			Type:      "memory",
			Workers:   4,
			BatchSize: 1,
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				Database:        "fixedratio",
				SSLMode:         "disable",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 300,
			},
			MySQL: MySQLConfig{
				Host:            "localhost",
				Port:            3306,
				Database:        "fixedratio",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 300,
			},
			MongoDB: MongoDBConfig{
				URI:            "mongodb://localhost:27017",
				Database:       "fixedratio",
				MaxPoolSize:    100,
				MinPoolSize:    10,
				ConnectTimeout: 10,
			},
		},
		API: APIConfig{
			Listen: "127.0.0.1:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".fixedratio")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	// Environment variables
	v.SetEnvPrefix("FIXEDRATIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables can override
// keys that are absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("program.id", d.Program.ID)
	v.SetDefault("program.upgrade_authority_keypair", d.Program.UpgradeAuthorityKeypair)

	v.SetDefault("ledger.lamports_per_signature", d.Ledger.LamportsPerSignature)
	v.SetDefault("ledger.compute_unit_limit", d.Ledger.ComputeUnitLimit)
	v.SetDefault("ledger.rent_lamports_per_byte_year", d.Ledger.RentLamportsPerByteYear)
	v.SetDefault("ledger.rent_exemption_threshold", d.Ledger.RentExemptionThreshold)
	v.SetDefault("ledger.genesis_unix_timestamp", d.Ledger.GenesisUnixTimestamp)

	v.SetDefault("client.max_retries", d.Client.MaxRetries)
	v.SetDefault("client.retry_initial_interval", d.Client.RetryInitialInterval)
	v.SetDefault("client.retry_max_elapsed_time", d.Client.RetryMaxElapsedTime)

	v.SetDefault("database.enabled", d.Database.Enabled)
	v.SetDefault("database.type", d.Database.Type)
	v.SetDefault("database.workers", d.Database.Workers)
	v.SetDefault("database.batch_size", d.Database.BatchSize)
	for prefix, sql := range map[string]struct {
		host                       string
		port                       int
		user, password, db, ssl    string
		maxOpen, maxIdle, lifetime int
	}{
		"database.postgres": {d.Database.Postgres.Host, d.Database.Postgres.Port, d.Database.Postgres.User, d.Database.Postgres.Password,
			d.Database.Postgres.Database, d.Database.Postgres.SSLMode, d.Database.Postgres.MaxOpenConns, d.Database.Postgres.MaxIdleConns, d.Database.Postgres.ConnMaxLifetime},
		"database.mysql": {d.Database.MySQL.Host, d.Database.MySQL.Port, d.Database.MySQL.User, d.Database.MySQL.Password,
			d.Database.MySQL.Database, d.Database.MySQL.SSLMode, d.Database.MySQL.MaxOpenConns, d.Database.MySQL.MaxIdleConns, d.Database.MySQL.ConnMaxLifetime},
	} {
		v.SetDefault(prefix+".host", sql.host)
		v.SetDefault(prefix+".port", sql.port)
		v.SetDefault(prefix+".user", sql.user)
		v.SetDefault(prefix+".password", sql.password)
		v.SetDefault(prefix+".database", sql.db)
		v.SetDefault(prefix+".ssl_mode", sql.ssl)
		v.SetDefault(prefix+".max_open_conns", sql.maxOpen)
		v.SetDefault(prefix+".max_idle_conns", sql.maxIdle)
		v.SetDefault(prefix+".conn_max_lifetime", sql.lifetime)
	}
	v.SetDefault("database.mongodb.uri", d.Database.MongoDB.URI)
	v.SetDefault("database.mongodb.database", d.Database.MongoDB.Database)
	v.SetDefault("database.mongodb.max_pool_size", d.Database.MongoDB.MaxPoolSize)
	v.SetDefault("database.mongodb.min_pool_size", d.Database.MongoDB.MinPoolSize)
	v.SetDefault("database.mongodb.connect_timeout", d.Database.MongoDB.ConnectTimeout)

	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate rejects settings the ledger or storage layer cannot run with.
func (c *Config) Validate() error {
	if c.Ledger.ComputeUnitLimit == 0 {
		return fmt.Errorf("ledger.compute_unit_limit must be positive")
	}
	if c.Ledger.RentExemptionThreshold == 0 {
		return fmt.Errorf("ledger.rent_exemption_threshold must be positive")
	}
	if c.Database.BatchSize < 1 {
		return fmt.Errorf("database.batch_size must be at least 1")
	}
	switch c.Database.Type {
	case "", "memory", "postgres", "mysql", "mongodb":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	return nil
}
