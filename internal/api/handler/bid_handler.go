package handler

import (
	"errors"
	"net/http"

	"github.com/AimalShah/BarterDash-sub000/internal/api/middleware"
	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/AimalShah/BarterDash-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BidHandler serves bid placement and max-bid endpoints.
type BidHandler struct {
	biddingSvc *service.BiddingService
}

// NewBidHandler creates a BidHandler.
func NewBidHandler(biddingSvc *service.BiddingService) *BidHandler {
	return &BidHandler{biddingSvc: biddingSvc}
}

// PlaceBid godoc
// POST /api/auctions/:id/bids [JWT]
// Body: {"amount": "61.00"}
func (h *BidHandler) PlaceBid(c *gin.Context) {
	userID := middleware.GetUserID(c)

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}

	var body struct {
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || !amount.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	result, err := h.biddingSvc.PlaceBid(c.Request.Context(), domain.PlaceBidRequest{
		UserID:    userID,
		AuctionID: auctionID,
		Amount:    amount,
	})
	if err != nil {
		respondBidError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, result)
}

// RegisterMaxBid godoc
// POST /api/auctions/:id/max-bid [JWT]
// Body: {"max_amount": "150.00"}
func (h *BidHandler) RegisterMaxBid(c *gin.Context) {
	userID := middleware.GetUserID(c)

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}

	var body struct {
		MaxAmount string `json:"max_amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	maxAmount, err := decimal.NewFromString(body.MaxAmount)
	if err != nil || !maxAmount.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "max_amount must be a positive decimal string")
		return
	}

	result, err := h.biddingSvc.RegisterMaxBid(c.Request.Context(), auctionID, userID, maxAmount)
	if err != nil {
		respondBidError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, result)
}

// CancelMaxBid godoc
// DELETE /api/auctions/:id/max-bid [JWT]
func (h *BidHandler) CancelMaxBid(c *gin.Context) {
	userID := middleware.GetUserID(c)

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}

	if err := h.biddingSvc.CancelMaxBid(c.Request.Context(), auctionID, userID); err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_MAX_BID_NOT_FOUND", "no active max bid on this auction")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not cancel max bid")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"cancelled": true})
}

// GetMyBids godoc
// GET /api/bids/my?page=1&limit=20 [JWT]
func (h *BidHandler) GetMyBids(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	bids, err := h.biddingSvc.GetMyBids(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bids")
		return
	}
	respondList(c, bids, len(bids), page, limit)
}

// respondBidError maps bidding failures onto HTTP statuses. Bid placement has
// the widest error surface of any endpoint, so the mapping lives in one place.
func respondBidError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "ERR_AUCTION_NOT_FOUND", "auction not found")
	case domain.IsForbidden(err):
		respondError(c, http.StatusForbidden, "ERR_SELF_BID", "sellers cannot bid on their own auctions")
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "ERR_AUCTION_ENDED", "auction has ended, bid not accepted")
	case errors.Is(err, domain.ErrBidTooLow):
		respondError(c, http.StatusUnprocessableEntity, "ERR_BID_TOO_LOW", domain.ErrBidTooLow.Error())
	case errors.Is(err, domain.ErrMaxBidTooLow):
		respondError(c, http.StatusUnprocessableEntity, "ERR_MAX_BID_TOO_LOW", domain.ErrMaxBidTooLow.Error())
	case domain.IsValidation(err):
		respondError(c, http.StatusUnprocessableEntity, "ERR_BID_REJECTED", "bid not accepted in the auction's current state")
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not place bid")
	}
}
