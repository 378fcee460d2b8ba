package handler

import (
	"net/http"
	"time"

	"github.com/AimalShah/BarterDash-sub000/internal/api/middleware"
	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/AimalShah/BarterDash-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionHandler serves auction lifecycle and browsing endpoints.
type AuctionHandler struct {
	biddingSvc *service.BiddingService
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(biddingSvc *service.BiddingService) *AuctionHandler {
	return &AuctionHandler{biddingSvc: biddingSvc}
}

// CreateAuction godoc
// POST /api/auctions [JWT]
// Body: {"product_id":"uuid","starting_bid":"50.00","min_increment":"1.00",
//
//	"reserve_price":"80.00","mode":"normal","duration_seconds":90}
func (h *AuctionHandler) CreateAuction(c *gin.Context) {
	sellerID := middleware.GetUserID(c)

	var body struct {
		ProductID       string  `json:"product_id"      binding:"required"`
		StartingBid     string  `json:"starting_bid"    binding:"required"`
		MinIncrement    string  `json:"min_increment"   binding:"required"`
		ReservePrice    *string `json:"reserve_price"`
		Mode            string  `json:"mode"`
		DurationSeconds int     `json:"duration_seconds"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	productID, err := uuid.Parse(body.ProductID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_PRODUCT_ID", "invalid product_id format")
		return
	}
	startingBid, err := decimal.NewFromString(body.StartingBid)
	if err != nil || startingBid.IsNegative() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "starting_bid must be a non-negative decimal string")
		return
	}
	minIncrement, err := decimal.NewFromString(body.MinIncrement)
	if err != nil || !minIncrement.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "min_increment must be a positive decimal string")
		return
	}

	req := service.CreateAuctionRequest{
		SellerID:     sellerID,
		ProductID:    productID,
		StartingBid:  startingBid,
		MinIncrement: minIncrement,
		Mode:         domain.AuctionMode(body.Mode),
		Duration:     time.Duration(body.DurationSeconds) * time.Second,
	}
	if body.ReservePrice != nil {
		reserve, err := decimal.NewFromString(*body.ReservePrice)
		if err != nil || reserve.IsNegative() {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "reserve_price must be a non-negative decimal string")
			return
		}
		req.ReservePrice = &reserve
	}
	if req.Mode != "" && req.Mode != domain.ModeNormal && req.Mode != domain.ModeSuddenDeath {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_MODE", "mode must be normal or sudden_death")
		return
	}

	auction, err := h.biddingSvc.CreateAuction(c.Request.Context(), req)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not create auction")
		return
	}
	respondSuccess(c, http.StatusCreated, auction)
}

// ActivateAuction godoc
// POST /api/auctions/:id/activate [JWT]
func (h *AuctionHandler) ActivateAuction(c *gin.Context) {
	sellerID := middleware.GetUserID(c)

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}

	auction, err := h.biddingSvc.ActivateAuction(c.Request.Context(), auctionID, sellerID)
	if err != nil {
		switch {
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_AUCTION_NOT_FOUND", "auction not found")
		case domain.IsForbidden(err):
			respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "only the seller can start this auction")
		case domain.IsValidation(err):
			respondError(c, http.StatusConflict, "ERR_NOT_PENDING", "auction is not pending")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not activate auction")
		}
		return
	}
	respondSuccess(c, http.StatusOK, auction)
}

// GetAuction godoc
// GET /api/auctions/:id
func (h *AuctionHandler) GetAuction(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}

	auction, err := h.biddingSvc.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_AUCTION_NOT_FOUND", "auction not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch auction")
		return
	}
	respondSuccess(c, http.StatusOK, auction)
}

// ListAuctions godoc
// GET /api/auctions?status=active&page=1&limit=20
func (h *AuctionHandler) ListAuctions(c *gin.Context) {
	page, limit := parsePagination(c)
	offset := (page - 1) * limit
	status := c.Query("status")

	auctions, total, err := h.biddingSvc.ListAuctions(c.Request.Context(), limit, offset, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list auctions")
		return
	}
	respondList(c, auctions, total, page, limit)
}

// GetAuctionBids godoc
// GET /api/auctions/:id/bids?page=1&limit=20
func (h *AuctionHandler) GetAuctionBids(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	bids, err := h.biddingSvc.GetAuctionBids(c.Request.Context(), auctionID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bids")
		return
	}
	respondList(c, bids, len(bids), page, limit)
}
