package secrets

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumoapp/billing-service/pkg/logger"
)

func testLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

func TestEnvProvider_PrefixedLookupWins(t *testing.T) {
	t.Setenv("BILLING_STRIPE_API_KEY", "sk_prefixed")
	t.Setenv("STRIPE_API_KEY", "sk_bare")

	provider := NewEnvProvider("BILLING", testLogger())
	assert.Equal(t, "sk_prefixed", provider.Get(StripeAPIKey))
}

func TestEnvProvider_FallsBackToBareName(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_bare")

	provider := NewEnvProvider("BILLING", testLogger())
	assert.Equal(t, "whsec_bare", provider.Get(StripeWebhookSecret))
}

func TestEnvProvider_MissingSecretIsEmpty(t *testing.T) {
	provider := NewEnvProvider("", testLogger())
	assert.Empty(t, provider.Get("NO_SUCH_SECRET_NAME"))
}

func TestStaticProvider(t *testing.T) {
	provider := NewStaticProvider(map[string]string{JWTSecret: "s3cret"})
	assert.Equal(t, "s3cret", provider.Get(JWTSecret))
	assert.Empty(t, provider.Get(SMTPPassword))
}
