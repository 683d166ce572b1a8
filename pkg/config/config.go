package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config represents the gateway configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	DEX        DEXConfig        `yaml:"dex"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Swap       SwapConfig       `yaml:"swap"`
	Fees       FeesConfig       `yaml:"fees"`
	Retention  RetentionConfig  `yaml:"retention"`
	JWKS       JWKSConfig       `yaml:"jwks"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host" default:"localhost" validate:"required"`
	Port     int    `yaml:"port" default:"5432"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"asset_gateway"`
	SSLMode  string `yaml:"ssl_mode" default:"disable"`
}

// LedgerConfig contains settings for the native blockchain service client
type LedgerConfig struct {
	BaseURL        string        `yaml:"base_url" validate:"required,url"`
	RequestTimeout time.Duration `yaml:"request_timeout" default:"15s"`
}

// DEXConfig contains settings for the remote market-making service client
type DEXConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout" default:"15s"`
}

// BridgeConfig contains bridge operation settings. An empty contract address
// for a chain means the bridge runs in lock-only mode for that chain.
type BridgeConfig struct {
	Contracts     map[string]string        `yaml:"contracts"`
	FeeRate       string                   `yaml:"fee_rate" default:"0.005"`
	MinAmount     string                   `yaml:"min_amount" default:"10"`
	EstimatedTime map[string]time.Duration `yaml:"estimated_time"`
	VerifierRPCs  map[string]string        `yaml:"verifier_rpcs"`
}

// SwapConfig contains swap engine settings
type SwapConfig struct {
	FeeRate          string            `yaml:"fee_rate" default:"0.003"`
	SlippageRate     string            `yaml:"slippage_rate" default:"0.01"`
	LiquidityPool    string            `yaml:"liquidity_pool" validate:"required"`
	DefaultRates     map[string]string `yaml:"default_rates"`
	RefreshInterval  time.Duration     `yaml:"refresh_interval" default:"1m"`
	SupportedTokens  []string          `yaml:"supported_tokens"`
	CrossChainTarget string            `yaml:"cross_chain_target" default:"BSC"`
}

// FeesConfig contains fee routing settings
type FeesConfig struct {
	Rate            string        `yaml:"rate" default:"0.001"`
	MinFee          string        `yaml:"min_fee" default:"0.01"`
	MaxFee          string        `yaml:"max_fee" default:"10"`
	TreasuryAddress string        `yaml:"treasury_address"`
	OutboxInterval  time.Duration `yaml:"outbox_interval" default:"30s"`
	OutboxBaseDelay time.Duration `yaml:"outbox_base_delay" default:"1m"`
	OutboxMaxDelay  time.Duration `yaml:"outbox_max_delay" default:"30m"`
	MaxAttempts     int           `yaml:"max_attempts" default:"10"`
}

// RetentionConfig contains record archival settings
type RetentionConfig struct {
	Enabled       bool          `yaml:"enabled" default:"false"`
	MaxAge        time.Duration `yaml:"max_age" default:"2160h"`
	SweepInterval time.Duration `yaml:"sweep_interval" default:"24h"`
}

// JWKSConfig contains JWKS configuration for JWT validation.
// An empty URL disables authentication on protected endpoints.
type JWKSConfig struct {
	URL    string `yaml:"url"`
	Issuer string `yaml:"issuer"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool `yaml:"enabled" default:"true"`
	MetricsPort int  `yaml:"metrics_port" default:"9090"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// Load loads configuration from a YAML file, applies defaults and validates
// it. Environment variable references in the file ($VAR or ${VAR}) are
// expanded before parsing.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Decode through mapstructure so duration strings like "30s" land in
	// time.Duration fields. yaml.v3 cannot do that on its own.
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &config,
		TagName:    "yaml",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if len(raw) > 0 {
		if err := decoder.Decode(raw); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func validate(config *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(config); err != nil {
		return err
	}

	// Cross-field rules the struct tags cannot express. A missing DEX
	// endpoint is fine (rate refresh degrades to the static table), but an
	// API key without one is a misconfiguration.
	if config.DEX.APIKey != "" && config.DEX.BaseURL == "" {
		return fmt.Errorf("dex.api_key is set but dex.base_url is empty")
	}
	if config.JWKS.URL != "" && config.JWKS.Issuer == "" {
		return fmt.Errorf("jwks.issuer is required when jwks.url is set")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
