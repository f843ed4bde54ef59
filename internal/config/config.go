package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the registry service
type Config struct {
	AppEnv      string
	Port        string
	LogLevel    string
	ChainID     uint64
	ExplorerURL string
	CORSOrigins []string

	Ledger    LedgerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Validator ValidatorConfig
	Archive   ArchiveConfig
	Agent     AgentConfig
	RateLimit RateLimitConfig
}

type LedgerConfig struct {
	Address      common.Address
	Store        string // memory, sqlite or postgres
	SQLitePath   string
	ReceiptCache int
}

type PostgresConfig struct {
	DSN string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	MaxLen   int64
}

type ValidatorConfig struct {
	Command        string
	Args           []string
	Dir            string
	Timeout        time.Duration
	MaxConcurrent  int
	MaxOutputBytes int
}

type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type AgentConfig struct {
	Model       string
	APIKey      string
	GeocodeURL  string
	ContractURL string
	ToolTimeout time.Duration
	MaxHistory  int
	GeocodeTTL  time.Duration
}

type RateLimitConfig struct {
	RPS       float64
	Burst     int
	Whitelist []string
}

// Load reads an optional .env file, then defaults, an optional YAML config
// file and FLIGHTREG_* environment variables, in increasing precedence.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("flightreg")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/flightreg")
	v.AddConfigPath(".")

	if configFile == "" {
		configFile = os.Getenv("FLIGHTREG_CONFIG_PATH")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FLIGHTREG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := fromViper(v)
	if err := validate(v, cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "local")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("chain_id", 1337)
	v.SetDefault("explorer_url", "https://sepolia.etherscan.io/tx/")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("ledger.address", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	v.SetDefault("ledger.store", "memory")
	v.SetDefault("ledger.sqlite_path", "ledger.db")
	v.SetDefault("ledger.receipt_cache", 1024)

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "flightreg:events")
	v.SetDefault("redis.group", "flight-indexer")
	v.SetDefault("redis.max_len", 100000)

	v.SetDefault("validator.command", "python3")
	v.SetDefault("validator.args", []string{"backend/llama_validator.py"})
	v.SetDefault("validator.dir", "")
	v.SetDefault("validator.timeout", "60s")
	v.SetDefault("validator.max_concurrent", 4)
	v.SetDefault("validator.max_output_bytes", 1<<20)

	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.access_key", "")
	v.SetDefault("archive.secret_key", "")
	v.SetDefault("archive.bucket", "flight-details")
	v.SetDefault("archive.use_ssl", false)

	v.SetDefault("agent.model", "gemini-2.0-flash")
	v.SetDefault("agent.api_key", "")
	v.SetDefault("agent.geocode_url", "http://localhost:8080/tools/geocode/mcp")
	v.SetDefault("agent.contract_url", "http://localhost:8080/tools/contract/mcp")
	v.SetDefault("agent.tool_timeout", "15s")
	v.SetDefault("agent.max_history", 20)
	v.SetDefault("agent.geocode_ttl", "1h")

	v.SetDefault("rate_limit.rps", 1.0)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("rate_limit.whitelist", []string{"127.0.0.1"})
}

func fromViper(v *viper.Viper) *Config {
	port := strings.TrimPrefix(strings.TrimSpace(v.GetString("port")), ":")

	archiveEndpoint := strings.TrimSpace(v.GetString("archive.endpoint"))

	return &Config{
		AppEnv:      v.GetString("app_env"),
		Port:        port,
		LogLevel:    v.GetString("log_level"),
		ChainID:     v.GetUint64("chain_id"),
		ExplorerURL: v.GetString("explorer_url"),
		CORSOrigins: v.GetStringSlice("cors_origins"),
		Ledger: LedgerConfig{
			Address:      common.HexToAddress(v.GetString("ledger.address")),
			Store:        strings.ToLower(v.GetString("ledger.store")),
			SQLitePath:   v.GetString("ledger.sqlite_path"),
			ReceiptCache: v.GetInt("ledger.receipt_cache"),
		},
		Postgres: PostgresConfig{
			DSN: v.GetString("postgres.dsn"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Stream:   v.GetString("redis.stream"),
			Group:    v.GetString("redis.group"),
			MaxLen:   v.GetInt64("redis.max_len"),
		},
		Validator: ValidatorConfig{
			Command:        v.GetString("validator.command"),
			Args:           v.GetStringSlice("validator.args"),
			Dir:            v.GetString("validator.dir"),
			Timeout:        v.GetDuration("validator.timeout"),
			MaxConcurrent:  v.GetInt("validator.max_concurrent"),
			MaxOutputBytes: v.GetInt("validator.max_output_bytes"),
		},
		Archive: ArchiveConfig{
			Enabled:   archiveEndpoint != "",
			Endpoint:  archiveEndpoint,
			Region:    v.GetString("archive.region"),
			AccessKey: v.GetString("archive.access_key"),
			SecretKey: v.GetString("archive.secret_key"),
			Bucket:    v.GetString("archive.bucket"),
			UseSSL:    v.GetBool("archive.use_ssl"),
		},
		Agent: AgentConfig{
			Model:       v.GetString("agent.model"),
			APIKey:      v.GetString("agent.api_key"),
			GeocodeURL:  v.GetString("agent.geocode_url"),
			ContractURL: v.GetString("agent.contract_url"),
			ToolTimeout: v.GetDuration("agent.tool_timeout"),
			MaxHistory:  v.GetInt("agent.max_history"),
			GeocodeTTL:  v.GetDuration("agent.geocode_ttl"),
		},
		RateLimit: RateLimitConfig{
			RPS:       v.GetFloat64("rate_limit.rps"),
			Burst:     v.GetInt("rate_limit.burst"),
			Whitelist: v.GetStringSlice("rate_limit.whitelist"),
		},
	}
}

func validate(v *viper.Viper, cfg *Config) error {
	if cfg.Port == "" {
		return fmt.Errorf("port is required")
	}
	if addr := v.GetString("ledger.address"); !common.IsHexAddress(addr) {
		return fmt.Errorf("ledger.address %q is not a hex address", addr)
	}

	switch cfg.Ledger.Store {
	case "memory":
	case "sqlite":
		if cfg.Ledger.SQLitePath == "" {
			return fmt.Errorf("ledger.sqlite_path is required for the sqlite store")
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("invalid ledger.store: %s (must be memory, sqlite or postgres)", cfg.Ledger.Store)
	}

	if cfg.Validator.Timeout <= 0 {
		return fmt.Errorf("validator.timeout must be greater than 0")
	}
	if cfg.Validator.MaxConcurrent <= 0 {
		return fmt.Errorf("validator.max_concurrent must be greater than 0")
	}
	if cfg.Agent.MaxHistory < 0 {
		return fmt.Errorf("agent.max_history must not be negative")
	}
	if cfg.Archive.Enabled && (cfg.Archive.AccessKey == "" || cfg.Archive.SecretKey == "") {
		return fmt.Errorf("archive.access_key and archive.secret_key are required when archive.endpoint is set")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production") || strings.EqualFold(c.AppEnv, "prod")
}
