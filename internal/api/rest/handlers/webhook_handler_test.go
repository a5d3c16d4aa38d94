package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/pkg/logger"
)

type stubReconciler struct {
	reconcileErr error
	gotPayload   []byte
	gotSigHeader string
}

func (s *stubReconciler) Reconcile(ctx context.Context, payload []byte, sigHeader string) error {
	s.gotPayload = payload
	s.gotSigHeader = sigHeader
	return s.reconcileErr
}

func (s *stubReconciler) EnforceSingleActive(ctx context.Context, userID, keepStripeSubID string) error {
	return nil
}

func (s *stubReconciler) Resync(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	return nil, domain.ErrNotFound
}

func newWebhookTestRouter(rec *stubReconciler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)

	r := gin.New()
	r.POST("/webhooks/stripe", NewWebhookHandler(rec, log).HandleStripeWebhook)
	return r
}

func postWebhook(r *gin.Engine, body []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", sig)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_Acknowledged(t *testing.T) {
	rec := &stubReconciler{}
	r := newWebhookTestRouter(rec)

	w := postWebhook(r, []byte(`{"type":"charge.refunded"}`), "t=1,v1=abc")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte(`{"type":"charge.refunded"}`), rec.gotPayload)
	assert.Equal(t, "t=1,v1=abc", rec.gotSigHeader)
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	rec := &stubReconciler{reconcileErr: domain.ErrWebhookVerificationFailed}
	r := newWebhookTestRouter(rec)

	w := postWebhook(r, []byte(`{}`), "t=1,v1=bad")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_MissingSecretIsServerError(t *testing.T) {
	rec := &stubReconciler{reconcileErr: domain.ErrWebhookSecretMissing}
	r := newWebhookTestRouter(rec)

	w := postWebhook(r, []byte(`{}`), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookHandler_OversizedBodyRejected(t *testing.T) {
	rec := &stubReconciler{}
	r := newWebhookTestRouter(rec)

	big := bytes.Repeat([]byte("a"), maxWebhookBodyBytes+1)
	w := postWebhook(r, big, "t=1,v1=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
