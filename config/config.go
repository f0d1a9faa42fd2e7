package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Solana      SolanaConfig      `mapstructure:"solana"`
	Pricing     PricingConfig     `mapstructure:"pricing"`
	Referral    ReferralConfig    `mapstructure:"referral"`
	Reservation ReservationConfig `mapstructure:"reservation"`
	Minter      MinterConfig      `mapstructure:"minter"`
	Payout      PayoutConfig      `mapstructure:"payout"`
	Notifier    NotifierConfig    `mapstructure:"notifier"`
	Frontend    FrontendConfig    `mapstructure:"frontend"`
	Admin       AdminConfig       `mapstructure:"admin"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Policy      PolicyConfig      `mapstructure:"policy"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the durable backend for the ledgers.
type StorageConfig struct {
	Driver    string `mapstructure:"driver"` // postgres, badger, memory
	BadgerDir string `mapstructure:"badger_dir"`
	// Reservations live in Redis unless this is false.
	RedisReservations bool `mapstructure:"redis_reservations"`
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

type SolanaConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	Network         string        `mapstructure:"network"`
	ReceiverAddress string        `mapstructure:"receiver_address"`
	Commitment      string        `mapstructure:"commitment"`
	Lookback        time.Duration `mapstructure:"lookback"`
	Epsilon         string        `mapstructure:"epsilon"` // SOL
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	SignatureLimit  int           `mapstructure:"signature_limit"`
	RequestsPerSec  float64       `mapstructure:"requests_per_sec"`
}

// PricingConfig amounts are decimal SOL strings so they survive env overrides exactly.
type PricingConfig struct {
	BasePrice           string            `mapstructure:"base_price"`
	SuffixPrices        map[string]string `mapstructure:"suffix_prices"`
	BonusSuffixLength   int               `mapstructure:"bonus_suffix_length"`
	InitialBonusCredits int               `mapstructure:"initial_bonus_credits"`
}

type ReferralConfig struct {
	TokenRate  string `mapstructure:"token_rate"`
	CustomRate string `mapstructure:"custom_rate"`
}

type ReservationConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type MinterConfig struct {
	Command       string `mapstructure:"command"`
	Script        string `mapstructure:"script"`
	WorkDir       string `mapstructure:"work_dir"`
	TokenInfoFile string `mapstructure:"token_info_file"`
	LogoDir       string `mapstructure:"logo_dir"` // uploaded logos here are deleted after a run
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

type PayoutConfig struct {
	Command string        `mapstructure:"command"`
	Script  string        `mapstructure:"script"`
	WorkDir string        `mapstructure:"work_dir"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type NotifierConfig struct {
	URL       string        `mapstructure:"url"`
	Secret    string        `mapstructure:"secret"`
	Timeout   time.Duration `mapstructure:"timeout"`
	QueueSize int           `mapstructure:"queue_size"`
}

// FrontendConfig holds the credentials the chat front-end signs requests with.
type FrontendConfig struct {
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	MaxSkew   time.Duration `mapstructure:"max_skew"`
}

type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // argon2id encoded
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type PolicyConfig struct {
	ExcludedUserIDs []int64 `mapstructure:"excluded_user_ids"`
	OperatorIDs     []int64 `mapstructure:"operator_ids"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Pretty     bool   `mapstructure:"pretty"` // human-readable output (dev only)
	File       string `mapstructure:"file"`   // optional rotated log file
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: TLG_ (Token Launch Gateway).
// Nested keys use underscore: TLG_DATABASE_HOST, TLG_SOLANA_RPC_URL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.badger_dir", "./data/ledger")
	v.SetDefault("storage.redis_reservations", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "token_launch")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.network", "mainnet")
	v.SetDefault("solana.receiver_address", "")
	v.SetDefault("solana.commitment", "confirmed")
	v.SetDefault("solana.lookback", "30m")
	v.SetDefault("solana.epsilon", "0.0001")
	v.SetDefault("solana.query_timeout", "20s")
	v.SetDefault("solana.signature_limit", 50)
	v.SetDefault("solana.requests_per_sec", 5.0)
	v.SetDefault("pricing.base_price", "0.09")
	v.SetDefault("pricing.suffix_prices", map[string]string{
		"4": "0.03", "5": "0.10", "6": "0.20", "7": "0.35", "8": "0.50", "9": "0.75", "10": "1.00",
	})
	v.SetDefault("pricing.bonus_suffix_length", 4)
	v.SetDefault("pricing.initial_bonus_credits", 3)
	v.SetDefault("referral.token_rate", "0.10")
	v.SetDefault("referral.custom_rate", "0.50")
	v.SetDefault("reservation.ttl", "30m")
	v.SetDefault("reservation.sweep_interval", "1m")
	v.SetDefault("minter.command", "node")
	v.SetDefault("minter.script", "solana-token.js")
	v.SetDefault("minter.work_dir", ".")
	v.SetDefault("minter.token_info_file", "token-info.json")
	v.SetDefault("minter.logo_dir", "./uploads")
	v.SetDefault("minter.max_concurrent", 1)
	v.SetDefault("payout.command", "node")
	v.SetDefault("payout.script", "payment-sender.js")
	v.SetDefault("payout.work_dir", ".")
	v.SetDefault("payout.timeout", "2m")
	v.SetDefault("notifier.url", "")
	v.SetDefault("notifier.secret", "")
	v.SetDefault("notifier.timeout", "10s")
	v.SetDefault("notifier.queue_size", 256)
	v.SetDefault("frontend.access_key", "")
	v.SetDefault("frontend.secret_key", "")
	v.SetDefault("frontend.max_skew", "5m")
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "12h")
	v.SetDefault("jwt.issuer", "token-launch-gateway")
	v.SetDefault("policy.excluded_user_ids", []int64{})
	v.SetDefault("policy.operator_ids", []int64{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: TLG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("TLG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
