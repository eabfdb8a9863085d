package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	domain "wallet_indexer/internal/domain/entity"
	"wallet_indexer/internal/entity"
	"wallet_indexer/internal/infrastructure/httpclient"
	"wallet_indexer/internal/pkg/metrics"
	"wallet_indexer/internal/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

const (
	// DefaultCoinStatsBaseURL is the public CoinStats API.
	DefaultCoinStatsBaseURL = "https://openapiv1.coinstats.app"

	coinStatsAPIKeyHeader = "X-API-KEY"
	healthCheckSymbol     = "BTC"
)

// CoinStatsClient fetches USD prices from the CoinStats REST API.
type CoinStatsClient struct {
	rest     *httpclient.RESTClient
	baseURL  string
	apiKey   string
	currency string
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewCoinStatsClient creates a client. An empty baseURL selects the public API.
func NewCoinStatsClient(baseURL, apiKey, currency string, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *CoinStatsClient {
	if baseURL == "" {
		baseURL = DefaultCoinStatsBaseURL
	}
	if currency == "" {
		currency = "USD"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoinStatsClient{
		rest:     httpclient.NewRESTClient(timeout),
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		currency: strings.ToUpper(currency),
		metrics:  m,
		logger:   logger.Named("CoinStatsClient"),
	}
}

// GetPrices returns upper-cased symbol -> price for the symbols the API knows.
// Symbols are deduplicated case-insensitively before the request. Entries that
// do not decode or carry a negative price are skipped.
func (c *CoinStatsClient) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	symbols = utils.UniqueUpper(symbols)
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))
	query.Set("currency", c.currency)
	requestURL := c.baseURL + "/coins?" + query.Encode()

	headers := map[string]string{}
	if c.apiKey != "" {
		headers[coinStatsAPIKeyHeader] = c.apiKey
	}

	c.logger.Debug("Requesting prices from CoinStats", zap.Strings("symbols", symbols))
	var resp entity.CoinStatsCoinsResponse
	err := c.rest.GetJSON(ctx, "", "get prices", requestURL, headers, &resp)
	c.metrics.ObserveOracle(err)
	if err != nil {
		c.logger.Warn("CoinStats request failed", zap.Strings("symbols", symbols), zap.Error(err))
		return nil, err
	}

	prices := make(map[string]float64, len(symbols))
	for i, raw := range resp.Items() {
		var coin entity.CoinStatsCoin
		if err := json.Unmarshal(raw, &coin); err != nil {
			c.logger.Warn("Skipping malformed CoinStats entry", zap.Int("index", i), zap.Error(err))
			continue
		}
		if coin.Price == nil || coin.Symbol == "" {
			continue
		}
		if *coin.Price < 0 {
			c.logger.Warn("Skipping negative CoinStats price", zap.String("symbol", coin.Symbol), zap.Float64("price", *coin.Price))
			continue
		}
		prices[strings.ToUpper(coin.Symbol)] = *coin.Price
	}
	c.logger.Debug("Fetched prices from CoinStats", zap.Int("requested", len(symbols)), zap.Int("received", len(prices)))
	return prices, nil
}

// GetPrice returns the price of a single symbol.
func (c *CoinStatsClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := c.GetPrices(ctx, []string{symbol})
	if err != nil {
		return 0, err
	}
	price, ok := prices[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return 0, domain.NewSyncError(domain.KindParse, "", "get price", fmt.Errorf("price not found for symbol %s", symbol))
	}
	return price, nil
}

// HealthCheck fetches the BTC price.
func (c *CoinStatsClient) HealthCheck(ctx context.Context) error {
	if _, err := c.GetPrice(ctx, healthCheckSymbol); err != nil {
		return fmt.Errorf("CoinStats health check failed: %w", err)
	}
	return nil
}
