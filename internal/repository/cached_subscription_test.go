package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumoapp/billing-service/internal/domain"
)

// fakeSubscriptionCache кеш в памяти для тестов декоратора
type fakeSubscriptionCache struct {
	subs      map[string]*domain.Subscription
	userLists map[string][]domain.Subscription
	getErr    error
}

func newFakeSubscriptionCache() *fakeSubscriptionCache {
	return &fakeSubscriptionCache{
		subs:      make(map[string]*domain.Subscription),
		userLists: make(map[string][]domain.Subscription),
	}
}

func (c *fakeSubscriptionCache) CacheSubscription(ctx context.Context, sub *domain.Subscription) error {
	copied := *sub
	c.subs[sub.StripeSubscriptionID] = &copied
	return nil
}

func (c *fakeSubscriptionCache) GetCachedSubscription(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	sub, ok := c.subs[stripeSubscriptionID]
	if !ok {
		return nil, nil
	}
	copied := *sub
	return &copied, nil
}

func (c *fakeSubscriptionCache) CacheUserSubscriptions(ctx context.Context, userID string, subs []domain.Subscription) error {
	c.userLists[userID] = append([]domain.Subscription(nil), subs...)
	return nil
}

func (c *fakeSubscriptionCache) GetCachedUserSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.userLists[userID], nil
}

func (c *fakeSubscriptionCache) InvalidateUserSubscriptionsCache(ctx context.Context, userID string) error {
	delete(c.userLists, userID)
	return nil
}

type cachedRepoFixture struct {
	cached SubscriptionRepository
	inner  *InMemorySubscriptionRepository
	cache  *fakeSubscriptionCache
}

func newCachedRepoFixture(t *testing.T) *cachedRepoFixture {
	t.Helper()
	log := testLogger()
	inner := NewInMemorySubscriptionRepository(log)
	cache := newFakeSubscriptionCache()
	return &cachedRepoFixture{
		cached: NewCachedSubscriptionRepository(inner, cache, log),
		inner:  inner,
		cache:  cache,
	}
}

func cachedSub(subID, userID string, status domain.SubscriptionStatus) *domain.Subscription {
	return &domain.Subscription{
		ID:                   domain.MirrorID(subID),
		UserID:               userID,
		Status:               status,
		StripeSubscriptionID: subID,
		StripeCustomerID:     "cus_" + userID,
	}
}

func TestCachedRepository_GetByStripeSubscriptionID_ServesFromCache(t *testing.T) {
	f := newCachedRepoFixture(t)
	ctx := context.Background()

	// Запись есть только в кеше, основное хранилище пусто
	require.NoError(t, f.cache.CacheSubscription(ctx, cachedSub("sub_1", "user_1", domain.SubscriptionStatusActive)))

	sub, err := f.cached.GetByStripeSubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "user_1", sub.UserID)
}

func TestCachedRepository_GetByStripeSubscriptionID_MissFillsCache(t *testing.T) {
	f := newCachedRepoFixture(t)
	ctx := context.Background()

	require.NoError(t, f.inner.Upsert(ctx, cachedSub("sub_1", "user_1", domain.SubscriptionStatusActive)))

	sub, err := f.cached.GetByStripeSubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "user_1", sub.UserID)

	// Промах заполнил кеш
	assert.Contains(t, f.cache.subs, "sub_1")
}

func TestCachedRepository_GetByStripeSubscriptionID_CacheErrorFallsThrough(t *testing.T) {
	f := newCachedRepoFixture(t)
	ctx := context.Background()

	require.NoError(t, f.inner.Upsert(ctx, cachedSub("sub_1", "user_1", domain.SubscriptionStatusActive)))
	f.cache.getErr = errors.New("connection refused")

	sub, err := f.cached.GetByStripeSubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "user_1", sub.UserID)
}

func TestCachedRepository_UpsertInvalidatesUserListCache(t *testing.T) {
	f := newCachedRepoFixture(t)
	ctx := context.Background()

	stale := []domain.Subscription{*cachedSub("sub_old", "user_1", domain.SubscriptionStatusActive)}
	require.NoError(t, f.cache.CacheUserSubscriptions(ctx, "user_1", stale))

	require.NoError(t, f.cached.Upsert(ctx, cachedSub("sub_1", "user_1", domain.SubscriptionStatusActive)))

	assert.NotContains(t, f.cache.userLists, "user_1")
	assert.Contains(t, f.cache.subs, "sub_1")
}

func TestCachedRepository_UpdateInvalidatesUserListCache(t *testing.T) {
	f := newCachedRepoFixture(t)
	ctx := context.Background()

	sub := cachedSub("sub_1", "user_1", domain.SubscriptionStatusActive)
	require.NoError(t, f.inner.Upsert(ctx, sub))
	require.NoError(t, f.cache.CacheUserSubscriptions(ctx, "user_1", []domain.Subscription{*sub}))

	sub.MarkCanceled(sub.UpdatedAt)
	require.NoError(t, f.cached.Update(ctx, sub))

	assert.NotContains(t, f.cache.userLists, "user_1")
	assert.Equal(t, domain.SubscriptionStatusCanceled, f.cache.subs["sub_1"].Status)
}

func TestCachedRepository_GetActiveByUserID_BypassesCache(t *testing.T) {
	f := newCachedRepoFixture(t)
	ctx := context.Background()

	// Кеш держит устаревшую активную версию, в хранилище подписка уже отменена
	require.NoError(t, f.cache.CacheSubscription(ctx, cachedSub("sub_1", "user_1", domain.SubscriptionStatusActive)))
	require.NoError(t, f.inner.Upsert(ctx, cachedSub("sub_1", "user_1", domain.SubscriptionStatusCanceled)))

	active, err := f.cached.GetActiveByUserID(ctx, "user_1", "")
	require.NoError(t, err)
	assert.Empty(t, active)
}
