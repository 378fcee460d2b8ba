package handler

import (
	"net/http"

	"github.com/AimalShah/BarterDash-sub000/internal/config"
	"github.com/AimalShah/BarterDash-sub000/internal/repository"
	"github.com/AimalShah/BarterDash-sub000/internal/ws"
	"github.com/gin-gonic/gin"
)

// DashboardHandler serves the /admin/dashboard overview.
type DashboardHandler struct {
	auctionRepo *repository.AuctionRepository
	escrowRepo  *repository.EscrowRepository
	hub         *ws.Hub
	cfg         *config.Config
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(
	auctionRepo *repository.AuctionRepository,
	escrowRepo *repository.EscrowRepository,
	hub *ws.Hub,
	cfg *config.Config,
) *DashboardHandler {
	return &DashboardHandler{
		auctionRepo: auctionRepo,
		escrowRepo:  escrowRepo,
		hub:         hub,
		cfg:         cfg,
	}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	auctionCounts, err := h.auctionRepo.CountByStatus(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	escrowCounts, err := h.escrowRepo.CountByStatus(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	connected := 0
	if h.hub != nil {
		connected = h.hub.ConnectedCount()
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"auctions":      auctionCounts,
		"escrows":       escrowCounts,
		"ws_clients":    connected,
		"environment":   h.cfg.Server.Env,
		"fee_rate":      h.cfg.Escrow.FeeRate,
		"snipe_window":  h.cfg.Auction.SnipeWindow.String(),
		"auto_release":  h.cfg.Escrow.AutoReleaseWindow.String(),
	})
}
