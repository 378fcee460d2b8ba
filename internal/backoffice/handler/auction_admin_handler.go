package handler

import (
	"net/http"

	"github.com/AimalShah/BarterDash-sub000/internal/config"
	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/AimalShah/BarterDash-sub000/internal/repository"
	"github.com/AimalShah/BarterDash-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuctionAdminHandler serves /admin/auctions endpoints.
type AuctionAdminHandler struct {
	biddingSvc  *service.BiddingService
	auctionRepo *repository.AuctionRepository
	bidRepo     *repository.BidRepository
	cfg         *config.Config
}

// NewAuctionAdminHandler creates an AuctionAdminHandler.
func NewAuctionAdminHandler(
	biddingSvc *service.BiddingService,
	auctionRepo *repository.AuctionRepository,
	bidRepo *repository.BidRepository,
	cfg *config.Config,
) *AuctionAdminHandler {
	return &AuctionAdminHandler{
		biddingSvc:  biddingSvc,
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		cfg:         cfg,
	}
}

// List godoc
// GET /admin/auctions?status=active&page=1&limit=50
func (h *AuctionAdminHandler) List(c *gin.Context) {
	status := c.DefaultQuery("status", "")
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	auctions, total, err := h.auctionRepo.List(c.Request.Context(), limit, offset, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, auctions, total, page, limit)
}

// Detail godoc
// GET /admin/auctions/:id
// Returns the auction plus its full bid history.
func (h *AuctionAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid auction id")
		return
	}
	ctx := c.Request.Context()

	auction, err := h.auctionRepo.GetByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_AUCTION_NOT_FOUND", "auction not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	bids, err := h.bidRepo.GetByAuction(ctx, id, 500, 0)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"auction": auction, "bids": bids})
}

// ForceClose godoc
// POST /admin/auctions/:id/close
// Drops the hammer immediately; the winner (if any) gets an order as usual.
func (h *AuctionAdminHandler) ForceClose(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid auction id")
		return
	}

	won, err := h.biddingSvc.CloseAuction(c.Request.Context(), id)
	if err != nil {
		switch {
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_AUCTION_NOT_FOUND", "auction not found")
		case domain.IsConflict(err):
			respondError(c, http.StatusConflict, "ERR_NOT_ACTIVE", "auction is not active")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id, "status": "ended", "won": won})
}

// Cancel godoc
// POST /admin/auctions/:id/cancel
// Voids an auction that has not ended. Bids already placed are abandoned; no
// order is created.
func (h *AuctionAdminHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid auction id")
		return
	}

	if err := h.auctionRepo.Cancel(c.Request.Context(), id); err != nil {
		if domain.IsConflict(err) {
			respondError(c, http.StatusConflict, "ERR_ALREADY_ENDED", "auction has already ended")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id, "status": "cancelled"})
}
