package restapi

import (
	"context"
	"errors"
	"net/http"

	"wallet_indexer/internal/app/service"
	"wallet_indexer/internal/domain/entity"
	"wallet_indexer/internal/infrastructure/cache"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Indexer is the part of the multi-chain indexer served over HTTP.
type Indexer interface {
	GetPortfolioValue(ctx context.Context, balances []entity.Balance) (float64, error)
	GetSyncStats() map[entity.Chain]entity.SyncState
	HealthCheck(ctx context.Context) entity.IndexerHealth
}

// Handler serves the wallet, balance, valuation and health endpoints.
type Handler struct {
	indexer   Indexer
	cache     *cache.WalletCache
	scheduler *service.SyncScheduler
	syncer    *service.WalletSyncService
	logger    *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(indexer Indexer, c *cache.WalletCache, scheduler *service.SyncScheduler, syncer *service.WalletSyncService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		indexer:   indexer,
		cache:     c,
		scheduler: scheduler,
		syncer:    syncer,
		logger:    logger.Named("Handler"),
	}
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// PortfolioValueRequest values either explicit balances or the cached
// balances of the listed wallets, or both.
type PortfolioValueRequest struct {
	Balances  []entity.Balance `json:"balances"`
	WalletIDs []string         `json:"walletIds"`
}

// PortfolioValueResponse is the USD value of the requested balances.
type PortfolioValueResponse struct {
	TotalUSD float64 `json:"totalUsd"`
	Balances int     `json:"balances"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrWalletNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, entity.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, entity.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, entity.ErrNetwork), errors.Is(err, entity.ErrParse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	resp := ErrorResponse{Error: err.Error()}
	if kind := entity.KindOf(err); kind != 0 {
		resp.Kind = kind.String()
	}
	_ = c.Error(err)
	c.JSON(statusFor(err), resp)
}

// GetPortfolioValue handles POST /api/v1/portfolio/value.
func (h *Handler) GetPortfolioValue(c *gin.Context) {
	var req PortfolioValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	balances := append([]entity.Balance(nil), req.Balances...)
	for _, raw := range req.WalletIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid wallet id " + raw})
			return
		}
		w, ok := h.cache.GetWallet(id)
		if !ok {
			h.fail(c, service.ErrWalletNotFound)
			return
		}
		balances = append(balances, walletBalances(w)...)
	}

	total, err := h.indexer.GetPortfolioValue(c.Request.Context(), balances)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PortfolioValueResponse{TotalUSD: total, Balances: len(balances)})
}

func walletBalances(w *entity.Wallet) []entity.Balance {
	var out []entity.Balance
	for _, a := range w.Addresses {
		if a.Balance != nil {
			out = append(out, *a.Balance)
		}
	}
	if w.XpubBalance != nil {
		out = append(out, *w.XpubBalance)
	}
	return out
}

// GetSyncStats handles GET /api/v1/sync-stats.
func (h *Handler) GetSyncStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.indexer.GetSyncStats())
}

// Health handles GET /api/v1/health. A degraded report is served with 503.
func (h *Handler) Health(c *gin.Context) {
	report := h.indexer.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}
