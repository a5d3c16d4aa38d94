package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v78"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/internal/repository"
	"github.com/lumoapp/billing-service/internal/secrets"
)

type billingFixture struct {
	billing *billingService
	subRepo *repository.InMemorySubscriptionRepository
	gateway *fakeGateway
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	log := testLogger()

	subRepo := repository.NewInMemorySubscriptionRepository(log)
	userRepo := repository.NewInMemoryUserRepository(log)
	ledgerRepo := repository.NewInMemoryLedgerRepository(log)
	gateway := newFakeGateway()

	ledgerSvc := NewLedgerService(ledgerRepo, nil, testMetrics(), log)
	rec := NewReconciler(
		subRepo, userRepo, ledgerSvc, gateway,
		secrets.NewStaticProvider(nil), nil, testMetrics(), false, log,
	)

	prices := PriceTable{
		"premium:monthly": "price_premium_monthly",
		"basic:yearly":    "price_basic_yearly",
	}

	billing := NewBillingService(
		subRepo, userRepo, ledgerSvc, rec, gateway,
		nil, testMetrics(), prices, log,
	).(*billingService)

	return &billingFixture{billing: billing, subRepo: subRepo, gateway: gateway}
}

func createInput() CreateSubscriptionInput {
	return CreateSubscriptionInput{
		UserID:       "user_1",
		Email:        "user_1@example.com",
		DisplayName:  "Test User",
		PlanType:     domain.PlanTypePremium,
		BillingCycle: domain.BillingCycleMonthly,
	}
}

func TestBillingService_CreateSubscription(t *testing.T) {
	f := newBillingFixture(t)

	result, err := f.billing.CreateSubscription(context.Background(), createInput())
	require.NoError(t, err)

	assert.Equal(t, "cs_secret", result.ClientSecret)
	assert.Equal(t, domain.MirrorID("sub_new"), result.Subscription.ID)
	assert.Equal(t, "user_1", result.Subscription.UserID)
	assert.Equal(t, domain.SubscriptionStatusIncomplete, result.Subscription.Status)

	stored, err := f.subRepo.GetByStripeSubscriptionID(context.Background(), "sub_new")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanTypePremium, stored.PlanType)
}

func TestBillingService_CreateSubscription_UnknownPlanRejected(t *testing.T) {
	f := newBillingFixture(t)

	input := createInput()
	input.PlanType = domain.PlanTypeFamily

	_, err := f.billing.CreateSubscription(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestBillingService_CreateSubscription_CancelsExistingActiveFirst(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.subRepo.Upsert(ctx, &domain.Subscription{
		ID:                   domain.MirrorID("sub_old"),
		UserID:               "user_1",
		Status:               domain.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_old",
		StripeCustomerID:     "cus_user_1",
	}))

	_, err := f.billing.CreateSubscription(ctx, createInput())
	require.NoError(t, err)

	old, err := f.subRepo.GetByStripeSubscriptionID(ctx, "sub_old")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, old.Status)
	assert.Equal(t, []string{"sub_old"}, f.gateway.scheduledCancellations)
}

func TestBillingService_CreateSubscription_GatewayErrorNotRetriedWhenPermanent(t *testing.T) {
	f := newBillingFixture(t)

	calls := 0
	f.gateway.createSubscriptionFn = func(ctx context.Context, customerID, priceID, idempotencyKey string) (string, string, error) {
		calls++
		return "", "", domain.NewGatewayError("CreateSubscription", "card_declined", "card was declined", nil)
	}

	_, err := f.billing.CreateSubscription(context.Background(), createInput())
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBillingService_CreateSubscription_RetriesTransientGatewayError(t *testing.T) {
	f := newBillingFixture(t)

	calls := 0
	f.gateway.createSubscriptionFn = func(ctx context.Context, customerID, priceID, idempotencyKey string) (string, string, error) {
		calls++
		if calls == 1 {
			transient := &stripego.Error{Type: stripego.ErrorTypeAPI, HTTPStatusCode: http.StatusServiceUnavailable}
			return "", "", domain.NewGatewayError("CreateSubscription", "api_error", "upstream unavailable", transient)
		}
		return "sub_new", "cs_secret", nil
	}

	result, err := f.billing.CreateSubscription(context.Background(), createInput())
	require.NoError(t, err)
	assert.Equal(t, "cs_secret", result.ClientSecret)
	assert.Equal(t, 2, calls)
}

func TestBillingService_CancelSubscription_AtPeriodEnd(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.subRepo.Upsert(ctx, &domain.Subscription{
		ID:                   domain.MirrorID("sub_1"),
		UserID:               "user_1",
		Status:               domain.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_1",
		StripeCustomerID:     "cus_1",
	}))

	require.NoError(t, f.billing.CancelSubscription(ctx, "user_1", domain.MirrorID("sub_1"), true))

	sub, err := f.subRepo.GetByID(ctx, domain.MirrorID("sub_1"))
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, []string{"sub_1"}, f.gateway.scheduledCancellations)
}

func TestBillingService_CancelSubscription_Immediate(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.subRepo.Upsert(ctx, &domain.Subscription{
		ID:                   domain.MirrorID("sub_1"),
		UserID:               "user_1",
		Status:               domain.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_1",
		StripeCustomerID:     "cus_1",
	}))

	require.NoError(t, f.billing.CancelSubscription(ctx, "user_1", domain.MirrorID("sub_1"), false))

	sub, err := f.subRepo.GetByID(ctx, domain.MirrorID("sub_1"))
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, sub.Status)
	assert.NotNil(t, sub.CanceledAt)
	assert.Equal(t, []string{"sub_1"}, f.gateway.immediateCancellations)
}

func TestBillingService_CancelSubscription_ForeignSubscriptionLooksMissing(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.subRepo.Upsert(ctx, &domain.Subscription{
		ID:                   domain.MirrorID("sub_1"),
		UserID:               "user_2",
		Status:               domain.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_1",
		StripeCustomerID:     "cus_2",
	}))

	err := f.billing.CancelSubscription(ctx, "user_1", domain.MirrorID("sub_1"), false)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// Подписка не тронута
	sub, err2 := f.subRepo.GetByID(ctx, domain.MirrorID("sub_1"))
	require.NoError(t, err2)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
}

func TestBillingService_CancelSubscription_AlreadyCanceledIsNoop(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.subRepo.Upsert(ctx, &domain.Subscription{
		ID:                   domain.MirrorID("sub_1"),
		UserID:               "user_1",
		Status:               domain.SubscriptionStatusCanceled,
		StripeSubscriptionID: "sub_1",
		StripeCustomerID:     "cus_1",
	}))

	require.NoError(t, f.billing.CancelSubscription(ctx, "user_1", domain.MirrorID("sub_1"), false))
	assert.Empty(t, f.gateway.immediateCancellations)
}

func TestBillingService_GetSubscriptionByID_OwnershipEnforced(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.subRepo.Upsert(ctx, &domain.Subscription{
		ID:                   domain.MirrorID("sub_1"),
		UserID:               "user_2",
		Status:               domain.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_1",
		StripeCustomerID:     "cus_2",
	}))

	_, err := f.billing.GetSubscriptionByID(ctx, "user_1", domain.MirrorID("sub_1"))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	sub, err := f.billing.GetSubscriptionByID(ctx, "user_2", domain.MirrorID("sub_1"))
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
}
