package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/pkg/logger"
)

func testLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

func newSub(subID, userID string, status domain.SubscriptionStatus) *domain.Subscription {
	return &domain.Subscription{
		ID:                   domain.MirrorID(subID),
		UserID:               userID,
		Status:               status,
		StripeSubscriptionID: subID,
		StripeCustomerID:     "cus_" + userID,
		PlanType:             domain.PlanTypePremium,
		BillingCycle:         domain.BillingCycleMonthly,
	}
}

func TestInMemorySubscriptionRepository_UpsertPreservesCreatedAt(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(testLogger())
	ctx := context.Background()

	sub := newSub("sub_1", "user_1", domain.SubscriptionStatusIncomplete)
	require.NoError(t, repo.Upsert(ctx, sub))
	createdAt := sub.CreatedAt
	require.False(t, createdAt.IsZero())

	time.Sleep(5 * time.Millisecond)

	updated := newSub("sub_1", "user_1", domain.SubscriptionStatusActive)
	require.NoError(t, repo.Upsert(ctx, updated))

	got, err := repo.GetByStripeSubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
	assert.Equal(t, createdAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(createdAt))
}

func TestInMemorySubscriptionRepository_GetActiveByUserID(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(testLogger())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, newSub("sub_a", "user_1", domain.SubscriptionStatusActive)))
	require.NoError(t, repo.Upsert(ctx, newSub("sub_b", "user_1", domain.SubscriptionStatusActive)))
	require.NoError(t, repo.Upsert(ctx, newSub("sub_c", "user_1", domain.SubscriptionStatusCanceled)))
	require.NoError(t, repo.Upsert(ctx, newSub("sub_d", "user_2", domain.SubscriptionStatusActive)))

	// Исключение по Stripe ID
	active, err := repo.GetActiveByUserID(ctx, "user_1", "sub_a")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "sub_b", active[0].StripeSubscriptionID)

	// Пустое исключение не исключает ничего
	active, err = repo.GetActiveByUserID(ctx, "user_1", "")
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestInMemorySubscriptionRepository_UpdateMissingRecord(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(testLogger())

	err := repo.Update(context.Background(), newSub("sub_x", "user_1", domain.SubscriptionStatusActive))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemorySubscriptionRepository_GetByStripeCustomerID(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(testLogger())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, newSub("sub_a", "user_1", domain.SubscriptionStatusActive)))
	require.NoError(t, repo.Upsert(ctx, newSub("sub_b", "user_1", domain.SubscriptionStatusCanceled)))

	subs, err := repo.GetByStripeCustomerID(ctx, "cus_user_1")
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	subs, err = repo.GetByStripeCustomerID(ctx, "cus_unknown")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestInMemoryUserRepository_Lookups(t *testing.T) {
	repo := NewInMemoryUserRepository(testLogger())
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, &domain.User{ID: "user_1", Email: "a@example.com"}))

	user, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user_1", user.ID)

	_, err = repo.GetByStripeCustomerID(ctx, "cus_1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SetStripeCustomerID(ctx, "user_1", "cus_1"))
	user, err = repo.GetByStripeCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "user_1", user.ID)
}
