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

// EscrowAdminHandler serves /admin/escrows endpoints. Force-release and refund
// are the manual levers for support tickets and dispute resolution; both go
// through EscrowService so the state machine and processor calls stay in one
// place.
type EscrowAdminHandler struct {
	escrowSvc  *service.EscrowService
	escrowRepo *repository.EscrowRepository
	cfg        *config.Config
}

// NewEscrowAdminHandler creates an EscrowAdminHandler.
func NewEscrowAdminHandler(
	escrowSvc *service.EscrowService,
	escrowRepo *repository.EscrowRepository,
	cfg *config.Config,
) *EscrowAdminHandler {
	return &EscrowAdminHandler{escrowSvc: escrowSvc, escrowRepo: escrowRepo, cfg: cfg}
}

// List godoc
// GET /admin/escrows?status=disputed&page=1&limit=50
func (h *EscrowAdminHandler) List(c *gin.Context) {
	status := c.DefaultQuery("status", "")
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	escrows, total, err := h.escrowRepo.List(c.Request.Context(), limit, offset, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, escrows, total, page, limit)
}

// Detail godoc
// GET /admin/escrows/:id
func (h *EscrowAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid escrow id")
		return
	}
	escrow, err := h.escrowRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_ESCROW_NOT_FOUND", "escrow not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, escrow)
}

// ForceRelease godoc
// POST /admin/escrows/:id/release
// Body: {"dispute": true} when resolving a dispute in the seller's favour.
func (h *EscrowAdminHandler) ForceRelease(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid escrow id")
		return
	}
	var body struct {
		Dispute bool `json:"dispute"`
	}
	_ = c.ShouldBindJSON(&body) // flag is optional

	reason := domain.ReleaseReasonAdmin
	if body.Dispute {
		reason = domain.ReleaseReasonDispute
	}

	escrow, err := h.escrowSvc.ReleaseToSeller(c.Request.Context(), id, reason)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, escrow)
}

// Refund godoc
// POST /admin/escrows/:id/refund
// Body: {"dispute": true} when resolving a dispute in the buyer's favour.
func (h *EscrowAdminHandler) Refund(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid escrow id")
		return
	}
	var body struct {
		Dispute bool `json:"dispute"`
	}
	_ = c.ShouldBindJSON(&body) // flag is optional

	reason := domain.RefundReasonAdmin
	if body.Dispute {
		reason = domain.ReleaseReasonDispute
	}

	escrow, err := h.escrowSvc.RefundToBuyer(c.Request.Context(), id, reason)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, escrow)
}

// Cancel godoc
// POST /admin/escrows/:id/cancel
// Voids a pending escrow whose capture never arrived.
func (h *EscrowAdminHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid escrow id")
		return
	}

	if err := h.escrowSvc.CancelEscrow(c.Request.Context(), id); err != nil {
		respondTransitionError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id, "status": "cancelled"})
}

// respondTransitionError maps escrow transition failures onto HTTP statuses.
func respondTransitionError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "ERR_ESCROW_NOT_FOUND", "escrow not found")
	case domain.IsValidation(err):
		respondError(c, http.StatusConflict, "ERR_BAD_STATE", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
	}
}
