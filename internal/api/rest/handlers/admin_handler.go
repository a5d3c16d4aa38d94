package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/internal/repository"
	"github.com/lumoapp/billing-service/internal/service"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// AdminHandler административные операции над зеркалом и финансовым журналом
type AdminHandler struct {
	reconciler service.Reconciler
	ledger     service.LedgerService
	log        *logger.Logger
}

// NewAdminHandler создает новый обработчик административных операций
func NewAdminHandler(reconciler service.Reconciler, ledger service.LedgerService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		reconciler: reconciler,
		ledger:     ledger,
		log:        log,
	}
}

// ResyncSubscription перечитывает подписку со стороны шлюза и перезаписывает зеркало
func (h *AdminHandler) ResyncSubscription(c *gin.Context) {
	stripeSubID := c.Param("stripeSubscriptionId")

	sub, err := h.reconciler.Resync(c.Request.Context(), stripeSubID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		case errors.Is(err, domain.ErrGatewayUnavailable):
			h.log.Errorw("Resync failed, gateway unavailable", "error", err, "stripeSubscriptionID", stripeSubID)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway is unavailable"})
		default:
			h.log.Errorw("Resync failed", "error", err, "stripeSubscriptionID", stripeSubID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Resync failed"})
		}
		return
	}

	c.JSON(http.StatusOK, sub)
}

// AnonymizeUserRecords редактирует персональные данные пользователя в журнале
func (h *AdminHandler) AnonymizeUserRecords(c *gin.Context) {
	userID := c.Param("userId")

	count, err := h.ledger.Anonymize(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorw("Ledger anonymization failed", "error", err, "userID", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Anonymization failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"anonymized": count})
}

// SweepLedger удаляет записи журнала с истекшим сроком хранения
func (h *AdminHandler) SweepLedger(c *gin.Context) {
	count, err := h.ledger.Sweep(c.Request.Context())
	if err != nil {
		h.log.Errorw("Ledger sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": count})
}
