package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Rarity     RarityConfig     `mapstructure:"rarity"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Rewards    RewardsConfig    `mapstructure:"rewards"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Events     EventsConfig     `mapstructure:"events"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory, postgres
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
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// RarityConfig selects the seed source used for rarity rolls.
type RarityConfig struct {
	Entropy    string `mapstructure:"entropy"`    // crypto, replay
	Randomness string `mapstructure:"randomness"` // hex value mixed into replay seeds
}

// SettlementConfig names the backing-asset account redemptions are paid from.
type SettlementConfig struct {
	ReserveAccount string `mapstructure:"reserve_account"`
	MintReason     string `mapstructure:"mint_reason"`
	OpeningReserve int64  `mapstructure:"opening_reserve"` // memory driver only
	// StaleAfter is how long a PENDING settlement may go without an update
	// before an operator retry can take it over.
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type RewardsConfig struct {
	TrustedGranters []string `mapstructure:"trusted_granters"`
}

// Credential is an HMAC key pair for signed requests.
type Credential struct {
	AccessKey string `mapstructure:"access_key"`
	Secret    string `mapstructure:"secret"`
	Account   string `mapstructure:"account"` // identity the key acts as
}

type AuthConfig struct {
	Operators []Credential `mapstructure:"operators"`
	Granters  []Credential `mapstructure:"granters"`
}

type EventsConfig struct {
	Stream        string   `mapstructure:"stream"` // Redis stream key; empty disables
	Webhooks      []string `mapstructure:"webhooks"`
	WebhookSecret string   `mapstructure:"webhook_secret"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: NIE_ (Note Issuance Engine).
// Nested keys use underscore: NIE_DATABASE_HOST, NIE_SETTLEMENT_RESERVE_ACCOUNT, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "note_issuance")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "note-issuance-engine")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("rarity.entropy", "crypto")
	v.SetDefault("rarity.randomness", "")
	v.SetDefault("settlement.reserve_account", "reserve")
	v.SetDefault("settlement.mint_reason", "note redemption shortfall")
	v.SetDefault("settlement.opening_reserve", 0)
	v.SetDefault("settlement.stale_after", "10m")
	v.SetDefault("events.stream", "notes:events")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: NIE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("NIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can suffice
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unknown server mode %q", c.Server.Mode)
	}
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Rarity.Entropy {
	case "crypto", "replay":
	default:
		return fmt.Errorf("unknown rarity entropy source %q", c.Rarity.Entropy)
	}
	if c.Settlement.ReserveAccount == "" {
		return fmt.Errorf("settlement.reserve_account must be set")
	}
	if c.Settlement.StaleAfter < 0 {
		return fmt.Errorf("settlement.stale_after must not be negative")
	}
	return nil
}
