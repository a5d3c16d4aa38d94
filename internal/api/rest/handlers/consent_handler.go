package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/internal/service"
	"github.com/lumoapp/billing-service/pkg/logger"
	"github.com/lumoapp/billing-service/pkg/mailer"
)

// RequestConsentRequest тело запроса на родительское согласие
type RequestConsentRequest struct {
	ParentEmail string `json:"parent_email" binding:"required,email"`
	ChildName   string `json:"child_name" binding:"required"`
}

// ConsentHandler обработчик потока родительского согласия
type ConsentHandler struct {
	consentSvc service.ConsentService
	sender     mailer.Sender
	baseURL    string
	log        *logger.Logger
}

// NewConsentHandler создает новый обработчик родительского согласия.
// baseURL используется для построения ссылки подтверждения в письме.
func NewConsentHandler(consentSvc service.ConsentService, sender mailer.Sender, baseURL string, log *logger.Logger) *ConsentHandler {
	return &ConsentHandler{
		consentSvc: consentSvc,
		sender:     sender,
		baseURL:    baseURL,
		log:        log,
	}
}

// RequestConsent выдает токен согласия и отправляет письмо родителю
func (h *ConsentHandler) RequestConsent(c *gin.Context) {
	var req RequestConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnw("Invalid consent request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	token := h.consentSvc.Issue(uuid.NewString(), req.ParentEmail, req.ChildName)

	if err := h.sendConsentEmail(token); err != nil {
		h.log.Errorw("Failed to send consent email", "error", err, "parentEmail", req.ParentEmail)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send consent email"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"token":      token.Token,
		"expires_at": token.ExpiresAt,
	})
}

// VerifyConsent подтверждает токен согласия по ссылке из письма
func (h *ConsentHandler) VerifyConsent(c *gin.Context) {
	token := c.Param("token")

	verified, err := h.consentSvc.Verify(token)
	if err != nil {
		h.handleConsentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"verified":    true,
		"verified_at": verified.VerifiedAt,
	})
}

// ConsentStatus возвращает состояние токена согласия
func (h *ConsentHandler) ConsentStatus(c *gin.Context) {
	token := c.Param("token")

	state, err := h.consentSvc.Status(token)
	if err != nil {
		h.handleConsentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"verified":   state.IsVerified,
		"expires_at": state.ExpiresAt,
	})
}

func (h *ConsentHandler) handleConsentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown consent token"})
	case errors.Is(err, domain.ErrTokenExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Consent token has expired"})
	case errors.Is(err, domain.ErrTokenAlreadyVerified):
		c.JSON(http.StatusConflict, gin.H{"error": "Consent token is already verified"})
	default:
		h.log.Errorw("Consent operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Consent operation failed"})
	}
}

func (h *ConsentHandler) sendConsentEmail(token domain.ConsentToken) error {
	verifyURL := fmt.Sprintf("%s/api/v1/consent/%s/verify", h.baseURL, token.Token)

	subject := "Parental consent required"
	textBody := fmt.Sprintf(
		"Hello,\n\n%s wants to use a subscription in our app. "+
			"To give your consent, open the link below:\n\n%s\n\n"+
			"The link is valid for 24 hours. If you did not expect this email, you can ignore it.\n",
		token.ChildName, verifyURL,
	)
	htmlBody := fmt.Sprintf(
		"<p>Hello,</p><p><b>%s</b> wants to use a subscription in our app. "+
			"To give your consent, click the link below:</p>"+
			"<p><a href=%q>Confirm consent</a></p>"+
			"<p>The link is valid for 24 hours. If you did not expect this email, you can ignore it.</p>",
		token.ChildName, verifyURL,
	)

	return h.sender.Send(token.ParentEmail, subject, htmlBody, textBody)
}
