package configloader

import (
	"fmt"
	"os"
	"strings"
	"time"

	"wallet_indexer/internal/domain/entity"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
	SwaggerSpec  string `yaml:"swaggerSpec"` // OpenAPI file served under /swagger
	EnablePprof  bool   `yaml:"enablePprof"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// IndexerConfig is the configuration surface of the multi-chain indexer.
type IndexerConfig struct {
	RPCURLs        map[string]string `yaml:"rpcURLs"` // chain -> RPC or explorer base URL
	APIKeys        map[string]string `yaml:"apiKeys"` // provider name -> API key
	BatchSize      int               `yaml:"batchSize"`
	MaxConcurrent  int               `yaml:"maxConcurrent"`
	TimeoutSeconds int               `yaml:"timeoutSeconds"`
	RateLimit      float64           `yaml:"rateLimit"` // requests per second per adapter, 0 = unlimited
	BurstLimit     int               `yaml:"burstLimit"`
}

// PriceOracleConfig holds configuration for the pricing API client.
type PriceOracleConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"baseURL"`
	Currency string `yaml:"currency"`
}

// BitcoinConfig holds configuration for xpub derivation.
type BitcoinConfig struct {
	Network                string `yaml:"network"` // mainnet, testnet, regtest
	XpubGapLimit           int    `yaml:"xpubGapLimit"`
	DerivationCacheMinutes int    `yaml:"derivationCacheMinutes"`
}

// DatabaseConfig points at the sqlite file holding sync statistics.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SyncConfig controls the background sync scheduler.
type SyncConfig struct {
	SchedulerEnabled bool           `yaml:"schedulerEnabled"`
	TickSeconds      int            `yaml:"tickSeconds"`
	Concurrency      int            `yaml:"concurrency"`
	IntervalMinutes  map[string]int `yaml:"intervalMinutes"` // chain -> minutes
}

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Indexer     IndexerConfig     `yaml:"indexer"`
	PriceOracle PriceOracleConfig `yaml:"priceOracle"`
	Bitcoin     BitcoinConfig     `yaml:"bitcoin"`
	Database    DatabaseConfig    `yaml:"database"`
	Sync        SyncConfig        `yaml:"sync"`
	Tokens      map[string]string `yaml:"tokens"` // chain -> token list JSON file
	WalletsFile string            `yaml:"walletsFile"`
}

const (
	defaultBatchSize      = 50
	defaultMaxConcurrent  = 10
	defaultTimeoutSeconds = 30

	// PriceProviderCoinStats is the API key name used for the price oracle.
	PriceProviderCoinStats = "coinstats"
)

// Load reads the YAML configuration file from the given path and unmarshals it.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML, applies environment overrides and defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}
	cfg.applyEnvOverrides(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyEnvOverrides lets deployments inject secrets without editing the file:
// INDEXER_API_KEY_<PROVIDER> and INDEXER_RPC_URL_<CHAIN>.
func (c *Config) applyEnvOverrides(getenv func(string) string) {
	if c.Indexer.APIKeys == nil {
		c.Indexer.APIKeys = make(map[string]string)
	}
	if c.Indexer.RPCURLs == nil {
		c.Indexer.RPCURLs = make(map[string]string)
	}
	for _, chain := range entity.AllChains() {
		if v := getenv("INDEXER_RPC_URL_" + strings.ToUpper(chain.String())); v != "" {
			c.Indexer.RPCURLs[chain.String()] = v
			logrus.Infof("RPC URL for %s overridden from environment", chain)
		}
	}
	for _, provider := range []string{PriceProviderCoinStats, "alchemy", "infura"} {
		if v := getenv("INDEXER_API_KEY_" + strings.ToUpper(provider)); v != "" {
			c.Indexer.APIKeys[provider] = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 60
	}
	if c.Server.IdleTimeout <= 0 {
		c.Server.IdleTimeout = 120
	}
	if c.Server.SwaggerSpec == "" {
		c.Server.SwaggerSpec = "docs/swagger.yaml"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Indexer.RPCURLs == nil {
		c.Indexer.RPCURLs = make(map[string]string)
	}
	if c.Indexer.APIKeys == nil {
		c.Indexer.APIKeys = make(map[string]string)
	}
	for _, chain := range entity.AllChains() {
		if c.Indexer.RPCURLs[chain.String()] == "" {
			c.Indexer.RPCURLs[chain.String()] = chain.DefaultEndpoint()
			logrus.Infof("RPC URL for %s not set, defaulting to %s", chain, chain.DefaultEndpoint())
		}
	}
	if c.Indexer.BatchSize <= 0 {
		c.Indexer.BatchSize = defaultBatchSize
		logrus.Infof("Indexer.BatchSize not set, defaulting to %d", c.Indexer.BatchSize)
	}
	if c.Indexer.MaxConcurrent <= 0 {
		c.Indexer.MaxConcurrent = defaultMaxConcurrent
		logrus.Infof("Indexer.MaxConcurrent not set, defaulting to %d", c.Indexer.MaxConcurrent)
	}
	if c.Indexer.TimeoutSeconds <= 0 {
		c.Indexer.TimeoutSeconds = defaultTimeoutSeconds
		logrus.Infof("Indexer.TimeoutSeconds not set, defaulting to %d", c.Indexer.TimeoutSeconds)
	}
	if c.Indexer.BurstLimit <= 0 {
		c.Indexer.BurstLimit = c.Indexer.MaxConcurrent
	}
	if c.PriceOracle.Provider == "" {
		c.PriceOracle.Provider = PriceProviderCoinStats
	}
	if c.PriceOracle.BaseURL == "" {
		c.PriceOracle.BaseURL = "https://openapiv1.coinstats.app"
	}
	if c.PriceOracle.Currency == "" {
		c.PriceOracle.Currency = "USD"
	}
	if c.Bitcoin.Network == "" {
		c.Bitcoin.Network = "mainnet"
	}
	if c.Bitcoin.XpubGapLimit <= 0 {
		c.Bitcoin.XpubGapLimit = 20
	}
	if c.Bitcoin.DerivationCacheMinutes <= 0 {
		c.Bitcoin.DerivationCacheMinutes = 60
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/sync_stats.db"
	}
	if c.Sync.TickSeconds <= 0 {
		c.Sync.TickSeconds = 30
	}
	if c.Sync.Concurrency <= 0 {
		c.Sync.Concurrency = 4
	}
	if c.Sync.IntervalMinutes == nil {
		c.Sync.IntervalMinutes = make(map[string]int)
	}
	for _, chain := range entity.AllChains() {
		if c.Sync.IntervalMinutes[chain.String()] <= 0 {
			minutes := 1
			if chain == entity.Bitcoin {
				minutes = 2
			}
			c.Sync.IntervalMinutes[chain.String()] = minutes
		}
	}
}

// Validate rejects chain keys the indexer does not know.
func (c *Config) Validate() error {
	for key := range c.Indexer.RPCURLs {
		if _, err := entity.ParseChain(key); err != nil {
			return fmt.Errorf("indexer.rpcURLs: %w", err)
		}
	}
	for key := range c.Tokens {
		chain, err := entity.ParseChain(key)
		if err != nil {
			return fmt.Errorf("tokens: %w", err)
		}
		if !chain.IsEVM() {
			return fmt.Errorf("tokens: chain %s does not support token contracts", chain)
		}
	}
	return nil
}

// RPCURL returns the configured endpoint for chain. A "{provider}" placeholder
// such as "{alchemy}" is replaced with that provider's API key.
func (c *Config) RPCURL(chain entity.Chain) string {
	for key, url := range c.Indexer.RPCURLs {
		if parsed, err := entity.ParseChain(key); err == nil && parsed == chain && url != "" {
			for provider, apiKey := range c.Indexer.APIKeys {
				url = strings.ReplaceAll(url, "{"+strings.ToLower(provider)+"}", apiKey)
			}
			return url
		}
	}
	return chain.DefaultEndpoint()
}

// APIKey returns the key configured for a named provider.
func (c *Config) APIKey(provider string) string {
	return c.Indexer.APIKeys[strings.ToLower(provider)]
}

// Timeout returns the per-call timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Indexer.TimeoutSeconds) * time.Second
}

// SyncInterval returns how stale a wallet on chain may become before the scheduler resyncs it.
func (c *Config) SyncInterval(chain entity.Chain) time.Duration {
	return time.Duration(c.Sync.IntervalMinutes[chain.String()]) * time.Minute
}

// TokenFiles returns chain -> token list path for every valid entry.
func (c *Config) TokenFiles() map[entity.Chain]string {
	out := make(map[entity.Chain]string, len(c.Tokens))
	for key, path := range c.Tokens {
		if chain, err := entity.ParseChain(key); err == nil {
			out[chain] = path
		}
	}
	return out
}
