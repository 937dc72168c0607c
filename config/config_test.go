package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walrus-x402/x402/types"
)

const sampleYAML = `
environment: production
server:
  port: "9090"
chain:
  network: base-sepolia
  rpc_url: https://sepolia.base.org
  registry_address: "0x1111111111111111111111111111111111111111"
verification:
  max_attempts: 3
  backoff_unit: 500ms
signing:
  secret: file-secret
auth:
  jwt_secret: jwt-secret
  trust_body_wallet: false
upload:
  platform_address: "0x3bf65a84b4b753b51b32063a7f12320a9c2578e3"
  fee: "0.5"
  token_address: "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
  token_decimals: 6
store:
  driver: sqlite
  sqlite_path: /tmp/claims.db
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, 3, cfg.Verification.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Verification.BackoffUnit)
	assert.False(t, cfg.Auth.TrustBodyWallet)
	assert.Equal(t, uint64(84532), cfg.ChainID())
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)

	fee, err := cfg.PlatformFee()
	require.NoError(t, err)
	assert.Equal(t, "500000", fee.Amount.String())
	assert.Equal(t, "0x036CbD53842c5426634e7929541eC2318f3dCF7e", fee.Token.Hex())
	assert.Equal(t, uint64(84532), fee.ChainID)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CONTENT_SIGNING_SECRET", "env-secret")
	t.Setenv("X402_RPC_URL", "http://localhost:8545")
	t.Setenv("X402_CHAIN_ID", "31337")
	t.Setenv("TRUST_BODY_WALLET", "true")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Signing.Secret)
	assert.Equal(t, "http://localhost:8545", cfg.Chain.RPCUrl)
	assert.Equal(t, uint64(31337), cfg.ChainID())
	assert.True(t, cfg.Auth.TrustBodyWallet)
}

func TestLoad_EnvOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, types.NetworkBaseSepolia, cfg.Chain.Network)
	assert.True(t, cfg.Auth.TrustBodyWallet)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingRPCURL)
}

func TestLoad_BadChainID(t *testing.T) {
	t.Setenv("X402_CHAIN_ID", "base")
	_, err := Load("")
	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Chain.RPCUrl = "http://localhost:8545"
		cfg.Chain.RegistryAddress = "0x1111111111111111111111111111111111111111"
		cfg.Auth.JWTSecret = "jwt"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults with required fields", func(c *Config) {}, true},
		{"production without signing secret", func(c *Config) { c.Environment = "production" }, false},
		{"bad registry", func(c *Config) { c.Chain.RegistryAddress = "registry" }, false},
		{"unknown network", func(c *Config) { c.Chain.Network = "mainnet" }, false},
		{"unknown network with chain id", func(c *Config) { c.Chain.Network = "mainnet"; c.Chain.ChainID = 1 }, true},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, false},
		{"zero attempts", func(c *Config) { c.Verification.MaxAttempts = 0 }, false},
		{"redis without addr", func(c *Config) { c.Store.Driver = StoreRedis }, false},
		{"unknown store", func(c *Config) { c.Store.Driver = "etcd" }, false},
		{"fractional wei fee", func(c *Config) {
			c.Upload.PlatformAddress = "0x7a6308061e899292F0d1Ae297c11d234676F1d17"
			c.Upload.Fee = "0.0000000000000000001"
		}, false},
		{"native fee", func(c *Config) {
			c.Upload.PlatformAddress = "0x7a6308061e899292F0d1Ae297c11d234676F1d17"
			c.Upload.Fee = "0.0001"
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var cerr *ConfigError
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestPlatformFee_NativeDefault(t *testing.T) {
	cfg := Default()
	cfg.Upload.PlatformAddress = "0x7a6308061e899292F0d1Ae297c11d234676F1d17"
	cfg.Upload.Fee = "0.0001"

	fee, err := cfg.PlatformFee()
	require.NoError(t, err)
	assert.True(t, fee.IsNative())
	assert.Equal(t, "100000000000000", fee.Amount.String())

	cfg.Upload.PlatformAddress = ""
	fee, err = cfg.PlatformFee()
	require.NoError(t, err)
	assert.Nil(t, fee)
}
