package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/walrus-x402/x402/types"
	"github.com/walrus-x402/x402/utils"
)

// Config represents the complete gate configuration
type Config struct {
	Environment  string             `yaml:"environment"`
	Server       ServerConfig       `yaml:"server"`
	Chain        types.ClientConfig `yaml:"chain"`
	Verification VerificationConfig `yaml:"verification"`
	Signing      SigningConfig      `yaml:"signing"`
	Auth         AuthConfig         `yaml:"auth"`
	Upload       UploadConfig       `yaml:"upload"`
	Store        StoreConfig        `yaml:"store"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// VerificationConfig bounds the transaction lookup poll.
type VerificationConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffUnit time.Duration `yaml:"backoff_unit"`
	Timeout     time.Duration `yaml:"timeout"`
}

type SigningConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`

	// TrustBodyWallet lets the request body name the wallet to check in
	// place of the identity claim.
	TrustBodyWallet bool `yaml:"trust_body_wallet"`
}

// UploadConfig prices uploads. An empty PlatformAddress disables upload gating.
type UploadConfig struct {
	PlatformAddress string `yaml:"platform_address"`
	Fee             string `yaml:"fee"`
	TokenAddress    string `yaml:"token_address"`
	TokenDecimals   int32  `yaml:"token_decimals"`
}

type StoreConfig struct {
	Driver        string        `yaml:"driver"`
	SQLitePath    string        `yaml:"sqlite_path"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	ClaimTTL      time.Duration `yaml:"claim_ttl"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Default returns the configuration used for anything the file and the
// environment leave unset.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Chain: types.ClientConfig{
			Network: types.NetworkBaseSepolia,
			Timeout: 10 * time.Second,
		},
		Verification: VerificationConfig{
			MaxAttempts: 5,
			BackoffUnit: time.Second,
			Timeout:     30 * time.Second,
		},
		Signing: SigningConfig{TTL: time.Hour},
		Auth:    AuthConfig{TrustBodyWallet: true},
		Upload:  UploadConfig{TokenDecimals: 18},
		Store: StoreConfig{
			Driver:     StoreMemory,
			SQLitePath: "x402.db",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
			Burst:             20,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from file and environment variables. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("X402_ENV", &c.Environment)
	setString("PORT", &c.Server.Port)
	setString("X402_RPC_URL", &c.Chain.RPCUrl)
	setString("X402_REGISTRY_ADDRESS", &c.Chain.RegistryAddress)
	setString("CONTENT_SIGNING_SECRET", &c.Signing.Secret)
	setString("JWT_SECRET", &c.Auth.JWTSecret)
	setString("PLATFORM_ADDRESS", &c.Upload.PlatformAddress)
	setString("PLATFORM_FEE", &c.Upload.Fee)
	setString("X402_STORE", &c.Store.Driver)
	setString("REDIS_ADDR", &c.Store.RedisAddr)
	setString("REDIS_PASSWORD", &c.Store.RedisPassword)
	setString("LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("X402_NETWORK"); v != "" {
		c.Chain.Network = types.Network(v)
	}
	if v := os.Getenv("X402_CHAIN_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return &ConfigError{"X402_CHAIN_ID must be an integer"}
		}
		c.Chain.ChainID = id
	}
	if v := os.Getenv("TRUST_BODY_WALLET"); v != "" {
		c.Auth.TrustBodyWallet = v == "true"
	}
	return nil
}

// IsProduction reports whether weak development fallbacks are forbidden.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Chain.RPCUrl == "" {
		return ErrMissingRPCURL
	}
	if !utils.IsAddress(c.Chain.RegistryAddress) {
		return ErrInvalidRegistry
	}
	if c.Chain.ChainID == 0 && !c.Chain.Network.IsKnown() {
		return &ConfigError{fmt.Sprintf("unknown network %q and no chain_id set", c.Chain.Network)}
	}
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.IsProduction() && c.Signing.Secret == "" {
		return ErrMissingSigningSecret
	}
	if c.Verification.MaxAttempts < 1 {
		return &ConfigError{"verification.max_attempts must be at least 1"}
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return &ConfigError{"store.sqlite_path is required for the sqlite store"}
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return &ConfigError{"store.redis_addr is required for the redis store"}
		}
	default:
		return &ConfigError{fmt.Sprintf("unknown store driver %q", c.Store.Driver)}
	}

	if _, err := c.PlatformFee(); err != nil {
		return err
	}
	return nil
}

// PlatformFee converts the upload section into a payment requirement. It
// returns nil when upload gating is disabled.
func (c *Config) PlatformFee() (*types.PaymentRequirement, error) {
	u := c.Upload
	if u.PlatformAddress == "" {
		return nil, nil
	}

	recipient, err := utils.ParseAddress(u.PlatformAddress)
	if err != nil {
		return nil, &ConfigError{"upload.platform_address: " + err.Error()}
	}

	token := types.NativeToken
	if u.TokenAddress != "" {
		if token, err = utils.ParseAddress(u.TokenAddress); err != nil {
			return nil, &ConfigError{"upload.token_address: " + err.Error()}
		}
	}

	amount, err := types.ToSmallestUnit(u.Fee, u.TokenDecimals)
	if err != nil {
		return nil, &ConfigError{"upload.fee: " + err.Error()}
	}
	if amount.Sign() == 0 {
		return nil, &ConfigError{"upload.fee must be positive"}
	}

	return &types.PaymentRequirement{
		Recipient: recipient,
		Amount:    amount,
		Token:     token,
		ChainID:   c.ChainID(),
	}, nil
}

// ChainID is the configured chain id, falling back to the network's.
func (c *Config) ChainID() uint64 {
	if c.Chain.ChainID != 0 {
		return c.Chain.ChainID
	}
	return c.Chain.Network.ChainID()
}

// Errors
var (
	ErrMissingRPCURL        = &ConfigError{"chain.rpc_url is required"}
	ErrInvalidRegistry      = &ConfigError{"chain.registry_address must be a 0x-prefixed address"}
	ErrMissingJWTSecret     = &ConfigError{"auth.jwt_secret is required"}
	ErrMissingSigningSecret = &ConfigError{"signing.secret is required in production"}
)

// ConfigError represents a configuration error
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Message
}
