package restapi

import (
	"net/http"

	"wallet_indexer/internal/domain/entity"
	"wallet_indexer/internal/infrastructure/walletloader"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SyncResponse is returned by a successful on-demand sync.
type SyncResponse struct {
	Wallet *entity.Wallet   `json:"wallet"`
	Stats  entity.SyncStats `json:"stats"`
}

func (h *Handler) walletID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid wallet id"})
		return uuid.Nil, false
	}
	return id, true
}

// PutWallet handles PUT /api/v1/wallets. The body is a wallet definition;
// an id in the body replaces the cached wallet with that id.
func (h *Handler) PutWallet(c *gin.Context) {
	var def walletloader.WalletDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	w, err := def.ToWallet()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	h.cache.PutWallet(w)
	c.JSON(http.StatusOK, w)
}

// ListWallets handles GET /api/v1/wallets.
func (h *Handler) ListWallets(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.ListWallets())
}

// GetWallet handles GET /api/v1/wallets/:id.
func (h *Handler) GetWallet(c *gin.Context) {
	id, ok := h.walletID(c)
	if !ok {
		return
	}
	w, found := h.cache.GetWallet(id)
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "wallet not found"})
		return
	}
	c.JSON(http.StatusOK, w)
}

// DeleteWallet handles DELETE /api/v1/wallets/:id and drops the cached
// balances of its addresses.
func (h *Handler) DeleteWallet(c *gin.Context) {
	id, ok := h.walletID(c)
	if !ok {
		return
	}
	h.cache.DeleteWallet(id)
	c.Status(http.StatusNoContent)
}

// SyncWallet handles POST /api/v1/wallets/:id/sync.
func (h *Handler) SyncWallet(c *gin.Context) {
	id, ok := h.walletID(c)
	if !ok {
		return
	}
	w, stats, err := h.scheduler.SyncCached(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SyncResponse{Wallet: w, Stats: stats})
}

// GetWalletSyncStats handles GET /api/v1/wallets/:id/sync-stats.
func (h *Handler) GetWalletSyncStats(c *gin.Context) {
	id, ok := h.walletID(c)
	if !ok {
		return
	}
	stats, err := h.syncer.LatestStats(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if stats == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no sync stats for wallet"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetBalance handles GET /api/v1/balances/:address.
func (h *Handler) GetBalance(c *gin.Context) {
	b, ok := h.cache.GetBalance(c.Param("address"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "balance not cached"})
		return
	}
	c.JSON(http.StatusOK, b)
}
