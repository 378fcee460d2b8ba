package handler

import (
	"net/http"

	"github.com/AimalShah/BarterDash-sub000/internal/api/middleware"
	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/AimalShah/BarterDash-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrderHandler serves order lookup endpoints. Orders are created by the
// checkout flow when an auction hammer falls, never directly over the API.
type OrderHandler struct {
	checkoutSvc *service.CheckoutService
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(checkoutSvc *service.CheckoutService) *OrderHandler {
	return &OrderHandler{checkoutSvc: checkoutSvc}
}

// GetOrder godoc
// GET /api/orders/:id [JWT]
// Visible only to the order's buyer or seller.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID := middleware.GetUserID(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ORDER_ID", "invalid order id")
		return
	}

	order, err := h.checkoutSvc.GetOrder(c.Request.Context(), orderID, userID)
	if err != nil {
		switch {
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_ORDER_NOT_FOUND", "order not found")
		case domain.IsForbidden(err):
			respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "you are not a party to this order")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch order")
		}
		return
	}
	respondSuccess(c, http.StatusOK, order)
}

// GetMyOrders godoc
// GET /api/orders/my?page=1&limit=20 [JWT]
func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	orders, err := h.checkoutSvc.GetMyOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch orders")
		return
	}
	respondList(c, orders, len(orders), page, limit)
}
