package repository

import (
	"context"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// SubscriptionCache определяет интерфейс кеша зеркала подписок.
// Ошибки кеша никогда не считаются ошибками чтения: декоратор логирует их
// и проваливается в основное хранилище.
type SubscriptionCache interface {
	CacheSubscription(ctx context.Context, sub *domain.Subscription) error
	GetCachedSubscription(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error)
	CacheUserSubscriptions(ctx context.Context, userID string, subs []domain.Subscription) error
	GetCachedUserSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error)
	InvalidateUserSubscriptionsCache(ctx context.Context, userID string) error
}

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache SubscriptionCache
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием
func NewCachedSubscriptionRepository(
	repo SubscriptionRepository,
	cache SubscriptionCache,
	log *logger.Logger,
) SubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Upsert сохраняет подписку в основном хранилище и обновляет кеш
func (r *CachedSubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.Upsert(ctx, sub); err != nil {
		return err
	}

	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache subscription after upsert", "error", err, "subscriptionID", sub.StripeSubscriptionID)
		// Продолжаем выполнение, несмотря на ошибку кеширования
	}

	if err := r.cache.InvalidateUserSubscriptionsCache(ctx, sub.UserID); err != nil {
		r.log.Warnw("Failed to invalidate user subscriptions cache", "error", err, "userID", sub.UserID)
	}

	return nil
}

// GetByID получает подписку по локальному ID напрямую из основного хранилища
func (r *CachedSubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	return r.repo.GetByID(ctx, id)
}

// GetByStripeSubscriptionID получает подписку по Stripe ID (сначала из кеша, потом из хранилища)
func (r *CachedSubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	cachedSub, err := r.cache.GetCachedSubscription(ctx, stripeSubscriptionID)
	if err != nil {
		r.log.Warnw("Error getting subscription from cache", "error", err, "subscriptionID", stripeSubscriptionID)
		// Продолжаем выполнение при ошибке кеша
	}

	if cachedSub != nil {
		r.log.Debugw("Subscription found in cache", "subscriptionID", stripeSubscriptionID)
		return cachedSub, nil
	}

	sub, err := r.repo.GetByStripeSubscriptionID(ctx, stripeSubscriptionID)
	if err != nil {
		return nil, err
	}

	if sub != nil {
		if err := r.cache.CacheSubscription(ctx, sub); err != nil {
			r.log.Warnw("Failed to cache subscription after fetching", "error", err, "subscriptionID", stripeSubscriptionID)
		}
	}

	return sub, nil
}

// GetByStripeCustomerID возвращает подписки по Stripe ID клиента из основного хранилища
func (r *CachedSubscriptionRepository) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) ([]domain.Subscription, error) {
	return r.repo.GetByStripeCustomerID(ctx, stripeCustomerID)
}

// GetByUserID возвращает подписки пользователя (сначала из кеша, потом из хранилища)
func (r *CachedSubscriptionRepository) GetByUserID(ctx context.Context, userID string) ([]domain.Subscription, error) {
	cachedSubs, err := r.cache.GetCachedUserSubscriptions(ctx, userID)
	if err != nil {
		r.log.Warnw("Error getting user subscriptions from cache", "error", err, "userID", userID)
	}

	if len(cachedSubs) > 0 {
		r.log.Debugw("User subscriptions found in cache", "userID", userID, "count", len(cachedSubs))
		return cachedSubs, nil
	}

	subs, err := r.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(subs) > 0 {
		if err := r.cache.CacheUserSubscriptions(ctx, userID, subs); err != nil {
			r.log.Warnw("Failed to cache user subscriptions", "error", err, "userID", userID)
		}
	}

	return subs, nil
}

// GetActiveByUserID идет напрямую в основное хранилище: применение политики
// единственной активной подписки не должно опираться на устаревший кеш
func (r *CachedSubscriptionRepository) GetActiveByUserID(ctx context.Context, userID, excludeStripeSubID string) ([]domain.Subscription, error) {
	return r.repo.GetActiveByUserID(ctx, userID, excludeStripeSubID)
}

// Update обновляет подписку в основном хранилище и кеше
func (r *CachedSubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.Update(ctx, sub); err != nil {
		return err
	}

	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to update subscription in cache", "error", err, "subscriptionID", sub.StripeSubscriptionID)
	}

	if err := r.cache.InvalidateUserSubscriptionsCache(ctx, sub.UserID); err != nil {
		r.log.Warnw("Failed to invalidate user subscriptions cache after update", "error", err, "userID", sub.UserID)
	}

	return nil
}
