package handler

import (
	"net/http"

	"github.com/AimalShah/BarterDash-sub000/internal/api/middleware"
	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/AimalShah/BarterDash-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EscrowHandler serves the buyer-facing escrow endpoints: paying for an order
// and inspecting the resulting escrow transaction. Money movement after the
// hold (capture, release, refund) is driven by processor webhooks and the
// scheduler, not by this handler.
type EscrowHandler struct {
	escrowSvc *service.EscrowService
}

// NewEscrowHandler creates an EscrowHandler.
func NewEscrowHandler(escrowSvc *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowSvc: escrowSvc}
}

// PayOrder godoc
// POST /api/orders/:id/pay [JWT]
// Body: {"payment_method_ref": "pm_abc123"}
// Authorises the buyer's payment method and opens a pending escrow.
func (h *EscrowHandler) PayOrder(c *gin.Context) {
	buyerID := middleware.GetUserID(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ORDER_ID", "invalid order id")
		return
	}

	var body struct {
		PaymentMethodRef string `json:"payment_method_ref" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	escrow, err := h.escrowSvc.CreateEscrow(c.Request.Context(), orderID, buyerID, body.PaymentMethodRef)
	if err != nil {
		switch {
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_ORDER_NOT_FOUND", "order not found")
		case domain.IsForbidden(err):
			respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "only the buyer can pay for this order")
		case domain.IsConflict(err):
			respondError(c, http.StatusConflict, "ERR_ALREADY_PAID", "an escrow already exists for this order")
		case domain.IsValidation(err):
			respondError(c, http.StatusUnprocessableEntity, "ERR_NOT_PAYABLE", "order is not awaiting payment")
		default:
			respondError(c, http.StatusBadGateway, "ERR_PAYMENT_FAILED", "payment authorisation failed")
		}
		return
	}
	respondSuccess(c, http.StatusCreated, escrow)
}

// GetEscrow godoc
// GET /api/escrows/:id [JWT]
// Visible only to the escrow's buyer or seller.
func (h *EscrowHandler) GetEscrow(c *gin.Context) {
	userID := middleware.GetUserID(c)

	escrowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ESCROW_ID", "invalid escrow id")
		return
	}

	escrow, err := h.escrowSvc.GetEscrowByID(c.Request.Context(), escrowID)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_ESCROW_NOT_FOUND", "escrow not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch escrow")
		return
	}
	if escrow.BuyerID != userID && escrow.SellerID != userID {
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "you are not a party to this escrow")
		return
	}
	respondSuccess(c, http.StatusOK, escrow)
}

// GetOrderEscrow godoc
// GET /api/orders/:id/escrow [JWT]
func (h *EscrowHandler) GetOrderEscrow(c *gin.Context) {
	userID := middleware.GetUserID(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ORDER_ID", "invalid order id")
		return
	}

	escrow, err := h.escrowSvc.GetEscrowByOrder(c.Request.Context(), orderID)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_ESCROW_NOT_FOUND", "no escrow for this order")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch escrow")
		return
	}
	if escrow.BuyerID != userID && escrow.SellerID != userID {
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "you are not a party to this escrow")
		return
	}
	respondSuccess(c, http.StatusOK, escrow)
}
