package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumoapp/billing-service/internal/api/rest/middleware"
	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/internal/repository"
	"github.com/lumoapp/billing-service/internal/service"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// CreateSubscriptionRequest тело запроса на создание подписки
type CreateSubscriptionRequest struct {
	PlanType     string `json:"plan_type" binding:"required,oneof=basic premium family"`
	BillingCycle string `json:"billing_cycle" binding:"required,oneof=monthly yearly"`
	Email        string `json:"email" binding:"required,email"`
	DisplayName  string `json:"display_name"`
}

// CancelSubscriptionRequest тело запроса на отмену подписки
type CancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

// SubscriptionHandler обработчик для подписок
type SubscriptionHandler struct {
	billingSvc service.BillingService
	log        *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик подписок
func NewSubscriptionHandler(billingSvc service.BillingService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		billingSvc: billingSvc,
		log:        log,
	}
}

// CreateSubscription создает новую подписку
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnw("Invalid create subscription request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	userID := middleware.UserIDFromContext(c)

	result, err := h.billingSvc.CreateSubscription(c.Request.Context(), service.CreateSubscriptionInput{
		UserID:       userID,
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PlanType:     domain.PlanType(req.PlanType),
		BillingCycle: domain.BillingCycle(req.BillingCycle),
	})
	if err != nil {
		h.handleServiceError(c, err, "Failed to create subscription")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"subscription":  result.Subscription,
		"client_secret": result.ClientSecret,
	})
}

// GetSubscriptions возвращает подписки текущего пользователя
func (h *SubscriptionHandler) GetSubscriptions(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	subs, err := h.billingSvc.GetSubscriptionsByUserID(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err, "Failed to list subscriptions")
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// GetSubscription возвращает одну подписку текущего пользователя
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	subscriptionID := c.Param("id")

	sub, err := h.billingSvc.GetSubscriptionByID(c.Request.Context(), userID, subscriptionID)
	if err != nil {
		h.handleServiceError(c, err, "Failed to get subscription")
		return
	}

	c.JSON(http.StatusOK, sub)
}

// CancelSubscription отменяет подписку текущего пользователя
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	var req CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Пустое тело означает отмену по умолчанию в конце периода
		req.AtPeriodEnd = true
	}

	userID := middleware.UserIDFromContext(c)
	subscriptionID := c.Param("id")

	if err := h.billingSvc.CancelSubscription(c.Request.Context(), userID, subscriptionID, req.AtPeriodEnd); err != nil {
		h.handleServiceError(c, err, "Failed to cancel subscription")
		return
	}

	c.JSON(http.StatusOK, gin.H{"canceled": true, "at_period_end": req.AtPeriodEnd})
}

// GetPromotionCode возвращает активный промокод
func (h *SubscriptionHandler) GetPromotionCode(c *gin.Context) {
	code := c.Param("code")

	promo, err := h.billingSvc.GetPromotionCode(c.Request.Context(), code)
	if err != nil {
		h.handleServiceError(c, err, "Failed to get promotion code")
		return
	}

	c.JSON(http.StatusOK, promo)
}

func (h *SubscriptionHandler) handleServiceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, domain.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		h.log.Errorw(message, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway is unavailable"})
	default:
		h.log.Errorw(message, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
