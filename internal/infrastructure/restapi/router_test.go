package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wallet_indexer/internal/app/service"
	"wallet_indexer/internal/domain/entity"
	"wallet_indexer/internal/infrastructure/cache"
	"wallet_indexer/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubIndexer struct {
	syncErr  error
	priceErr error
	health   entity.IndexerHealth
	valued   [][]entity.Balance
}

func (s *stubIndexer) SyncAddresses(_ context.Context, chain entity.Chain, addresses []string) ([]entity.Balance, error) {
	if s.syncErr != nil {
		return nil, s.syncErr
	}
	out := make([]entity.Balance, len(addresses))
	for i := range addresses {
		out[i] = entity.NewBalance(chain, "1.5", 10)
	}
	return out, nil
}

func (s *stubIndexer) GetPortfolioValue(_ context.Context, balances []entity.Balance) (float64, error) {
	s.valued = append(s.valued, balances)
	if s.priceErr != nil {
		return 0, s.priceErr
	}
	return 2000 * float64(len(balances)), nil
}

func (s *stubIndexer) GetSyncStats() map[entity.Chain]entity.SyncState {
	return map[entity.Chain]entity.SyncState{entity.Ethereum: {Chain: entity.Ethereum, LastBlock: 10, Errors: []string{}}}
}

func (s *stubIndexer) HealthCheck(context.Context) entity.IndexerHealth { return s.health }

type testServer struct {
	router  *gin.Engine
	cache   *cache.WalletCache
	indexer *stubIndexer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	idx := &stubIndexer{health: entity.IndexerHealth{Healthy: true, Chains: map[entity.Chain]entity.ChainHealth{}, Errors: []string{}}}
	reg := prometheus.NewRegistry()
	c := cache.NewWalletCache(metrics.New(reg))
	syncer := service.NewWalletSyncService(idx, nil, nil)
	scheduler := service.NewSyncScheduler(c, syncer, service.SchedulerOptions{}, nil)
	h := NewHandler(idx, c, scheduler, syncer, nil)
	return &testServer{router: SetupRouter(h, reg, RouterOptions{}, nil), cache: c, indexer: idx}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestWalletLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPut, "/api/v1/wallets", map[string]any{
		"name":      "treasury",
		"chain":     "ethereum",
		"addresses": []string{"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[entity.Wallet](t, rec)
	assert.Equal(t, "treasury", created.Name)
	assert.Equal(t, entity.WalletWatchOnly, created.Type)

	rec = srv.do(t, http.MethodGet, "/api/v1/wallets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entity.Wallet](t, rec), 1)

	rec = srv.do(t, http.MethodPost, "/api/v1/wallets/"+created.ID.String()+"/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	synced := decode[SyncResponse](t, rec)
	assert.Equal(t, entity.WalletActive, synced.Wallet.Status)
	assert.Equal(t, uint32(1), synced.Stats.AddressesSynced)

	// hex addresses are looked up case-insensitively
	rec = srv.do(t, http.MethodGet, "/api/v1/balances/0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.5", decode[entity.Balance](t, rec).Native)

	rec = srv.do(t, http.MethodGet, "/api/v1/cache/stats", nil)
	assert.Equal(t, cache.Stats{Wallets: 1, Balances: 1}, decode[cache.Stats](t, rec))

	rec = srv.do(t, http.MethodDelete, "/api/v1/wallets/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/wallets/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = srv.do(t, http.MethodGet, "/api/v1/balances/0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutWalletRejectsInvalidDefinitions(t *testing.T) {
	srv := newTestServer(t)

	for name, body := range map[string]any{
		"unknown chain":  map[string]any{"name": "x", "chain": "solana", "addresses": []string{"a"}},
		"no addresses":   map[string]any{"name": "x", "chain": "ethereum"},
		"xpub on evm":    map[string]any{"name": "x", "chain": "polygon", "xpub": "xpub123"},
		"malformed json": "not an object",
	} {
		t.Run(name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPut, "/api/v1/wallets", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSyncWalletErrors(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/wallets/not-a-uuid/sync", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/wallets/"+uuid.NewString()+"/sync", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	w := entity.NewWallet("hot", entity.WalletWatchOnly, entity.Ethereum, []string{"0xabc"}, "")
	srv.cache.PutWallet(w)
	srv.indexer.syncErr = entity.NewSyncError(entity.KindRateLimit, entity.Ethereum, "sync", nil)

	rec = srv.do(t, http.MethodPost, "/api/v1/wallets/"+w.ID.String()+"/sync", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, entity.KindRateLimit.String(), decode[ErrorResponse](t, rec).Kind)

	cached, ok := srv.cache.GetWallet(w.ID)
	require.True(t, ok)
	assert.Equal(t, entity.WalletError, cached.Status)
}

func TestPortfolioValue(t *testing.T) {
	srv := newTestServer(t)

	w := entity.NewWallet("hot", entity.WalletWatchOnly, entity.Ethereum, []string{"0xabc", "0xdef"}, "")
	b := entity.NewBalance(entity.Ethereum, "1", 1)
	w.Addresses[0].UpdateBalance(b)
	srv.cache.PutWallet(w)

	rec := srv.do(t, http.MethodPost, "/api/v1/portfolio/value", PortfolioValueRequest{
		Balances:  []entity.Balance{{Chain: entity.BinanceSmartChain, Native: "2"}},
		WalletIDs: []string{w.ID.String()},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[PortfolioValueResponse](t, rec)
	assert.Equal(t, 2, resp.Balances)
	assert.InDelta(t, 4000.0, resp.TotalUSD, 1e-9)

	rec = srv.do(t, http.MethodPost, "/api/v1/portfolio/value", PortfolioValueRequest{WalletIDs: []string{uuid.NewString()}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/portfolio/value", PortfolioValueRequest{WalletIDs: []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	srv.indexer.priceErr = entity.NewSyncError(entity.KindTimeout, "", "get prices", context.DeadlineExceeded)
	rec = srv.do(t, http.MethodPost, "/api/v1/portfolio/value", PortfolioValueRequest{})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestHealthAndStats(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	srv.indexer.health = entity.IndexerHealth{Healthy: false, Errors: []string{"price oracle: 503"}}
	rec = srv.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, decode[entity.IndexerHealth](t, rec).Healthy)

	rec = srv.do(t, http.MethodGet, "/api/v1/sync-stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[entity.Chain]entity.SyncState](t, rec)
	assert.Equal(t, uint64(10), stats[entity.Ethereum].LastBlock)
}

func TestWalletSyncStatsWithoutRepository(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodGet, "/api/v1/wallets/"+uuid.NewString()+"/sync-stats", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.cache.PutWallet(entity.NewWallet("hot", entity.WalletWatchOnly, entity.Ethereum, []string{"0xabc"}, ""))

	rec := srv.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `wallet_indexer_cache_entries{kind="wallets"} 1`), rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/wallets", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSwaggerRoutes(t *testing.T) {
	spec := filepath.Join(t.TempDir(), "swagger.yaml")
	require.NoError(t, os.WriteFile(spec, []byte("swagger: \"2.0\"\n"), 0o600))

	srv := newTestServer(t)
	srv.router = SetupRouter(NewHandler(srv.indexer, srv.cache, nil, nil, nil), prometheus.NewRegistry(), RouterOptions{SwaggerSpec: spec}, nil)

	rec := srv.do(t, http.MethodGet, "/docs/swagger.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger")

	rec = srv.do(t, http.MethodGet, "/swagger/index.html", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPprofRoutes(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodGet, "/debug/pprof/cmdline", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	srv.router = SetupRouter(NewHandler(srv.indexer, srv.cache, nil, nil, nil), prometheus.NewRegistry(), RouterOptions{EnablePprof: true}, nil)
	rec = srv.do(t, http.MethodGet, "/debug/pprof/cmdline", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrWalletNotFound, http.StatusNotFound},
		{service.ErrSyncInProgress, http.StatusConflict},
		{entity.NewSyncError(entity.KindValidation, entity.Bitcoin, "sync", errors.New("bad address")), http.StatusBadRequest},
		{entity.NewSyncError(entity.KindRateLimit, entity.Ethereum, "sync", errors.New("429")), http.StatusTooManyRequests},
		{entity.NewSyncError(entity.KindTimeout, entity.Polygon, "sync", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{entity.NewSyncError(entity.KindNetwork, entity.Ethereum, "sync", errors.New("refused")), http.StatusBadGateway},
		{entity.NewSyncError(entity.KindParse, entity.Ethereum, "sync", errors.New("garbage")), http.StatusBadGateway},
		{entity.NewSyncError(entity.KindConfig, entity.Ethereum, "sync", errors.New("no adapter")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
