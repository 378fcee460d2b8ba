package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/AimalShah/BarterDash-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// maxWebhookBody caps the webhook payload size.
const maxWebhookBody = 64 << 10

// WebhookHandler receives event callbacks from the payment processor. The
// processor retries failed deliveries, so every event handler must be
// idempotent.
type WebhookHandler struct {
	escrowSvc *service.EscrowService
	secret    []byte
	logger    *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler verifying signatures with the
// given shared secret.
func NewWebhookHandler(escrowSvc *service.EscrowService, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		escrowSvc: escrowSvc,
		secret:    []byte(secret),
		logger:    logger,
	}
}

// webhookEvent is the processor's event envelope.
type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		HoldRef    string `json:"hold_ref"`
		DisputeRef string `json:"dispute_ref"`
	} `json:"data"`
}

// HandleProcessorEvent godoc
// POST /webhooks/payments
// Signature: X-Webhook-Signature header, hex HMAC-SHA256 of the raw body.
func (h *WebhookHandler) HandleProcessorEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_BODY_READ", "could not read request body")
		return
	}

	if !h.verifySignature(body, c.GetHeader("X-Webhook-Signature")) {
		h.logger.Warn("webhook: signature mismatch", "ip", c.ClientIP())
		respondError(c, http.StatusUnauthorized, "ERR_BAD_SIGNATURE", "signature verification failed")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_BAD_PAYLOAD", "could not parse event")
		return
	}

	ctx := c.Request.Context()
	switch event.Type {
	case "hold.captured":
		if _, err := h.escrowSvc.CaptureToEscrow(ctx, event.Data.HoldRef); err != nil {
			h.handleEventError(c, event.Type, err)
			return
		}

	case "dispute.created":
		if err := h.escrowSvc.HandleDisputeCreated(ctx, event.Data.HoldRef, event.Data.DisputeRef); err != nil {
			h.handleEventError(c, event.Type, err)
			return
		}

	default:
		// Unknown event types are acknowledged so the processor stops
		// redelivering them.
		h.logger.Info("webhook: ignoring event", "type", event.Type)
	}

	respondSuccess(c, http.StatusOK, gin.H{"received": true})
}

// handleEventError answers the processor. A 2xx stops redelivery, anything
// else triggers a retry, so only transient failures get a 5xx.
func (h *WebhookHandler) handleEventError(c *gin.Context, eventType string, err error) {
	switch {
	case domain.IsNotFound(err):
		// No escrow for this reference. Redelivery will not fix that.
		h.logger.Warn("webhook: no escrow for event", "type", eventType, "err", err)
		respondSuccess(c, http.StatusOK, gin.H{"received": true})
	case domain.IsValidation(err):
		// Escrow is in a state the event no longer applies to.
		h.logger.Warn("webhook: event not applicable", "type", eventType, "err", err)
		respondSuccess(c, http.StatusOK, gin.H{"received": true})
	default:
		h.logger.Error("webhook: event processing failed", "type", eventType, "err", err)
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "event processing failed")
	}
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
