package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/internal/service"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// Stripe рекомендует ограничивать тело вебхука 64 КБ
const maxWebhookBodyBytes = 65536

// WebhookHandler обработчик для вебхуков
type WebhookHandler struct {
	reconciler service.Reconciler
	log        *logger.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(reconciler service.Reconciler, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		log:        log,
	}
}

// HandleStripeWebhook обрабатывает вебхуки от Stripe
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Errorw("Failed to read webhook body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read webhook body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")

	err = h.reconciler.Reconcile(c.Request.Context(), payload, sigHeader)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, domain.ErrWebhookSecretMissing):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing is not configured"})
	case errors.Is(err, domain.ErrWebhookVerificationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to verify webhook signature"})
	case errors.Is(err, domain.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed webhook payload"})
	default:
		h.log.Errorw("Unexpected webhook processing error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
	}
}
