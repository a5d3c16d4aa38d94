package repository

import (
	"context"
	"sync"
	"time"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// InMemorySubscriptionRepository реализация репозитория подписок в памяти
type InMemorySubscriptionRepository struct {
	subscriptions map[string]domain.Subscription
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemorySubscriptionRepository создает новый репозиторий подписок в памяти
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subscriptions: make(map[string]domain.Subscription),
		log:           log,
	}
}

// Upsert сохраняет подписку, перезаписывая существующую запись с тем же ID
func (r *InMemorySubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	if existing, exists := r.subscriptions[sub.ID]; exists {
		sub.CreatedAt = existing.CreatedAt
	} else if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	r.subscriptions[sub.ID] = *sub

	return nil
}

// GetByID возвращает подписку по локальному ID
func (r *InMemorySubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sub, exists := r.subscriptions[id]
	if !exists {
		return nil, ErrNotFound
	}

	return &sub, nil
}

// GetByStripeSubscriptionID возвращает подписку по её Stripe ID
func (r *InMemorySubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, sub := range r.subscriptions {
		if sub.StripeSubscriptionID == stripeSubscriptionID {
			found := sub
			return &found, nil
		}
	}

	return nil, ErrNotFound
}

// GetByStripeCustomerID возвращает подписки по Stripe ID клиента
func (r *InMemorySubscriptionRepository) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var subscriptions []domain.Subscription
	for _, sub := range r.subscriptions {
		if sub.StripeCustomerID == stripeCustomerID {
			subscriptions = append(subscriptions, sub)
		}
	}

	return subscriptions, nil
}

// GetByUserID возвращает все подписки пользователя
func (r *InMemorySubscriptionRepository) GetByUserID(ctx context.Context, userID string) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var subscriptions []domain.Subscription
	for _, sub := range r.subscriptions {
		if sub.UserID == userID {
			subscriptions = append(subscriptions, sub)
		}
	}

	return subscriptions, nil
}

// GetActiveByUserID возвращает активные подписки пользователя, исключая
// подписку с указанным Stripe ID
func (r *InMemorySubscriptionRepository) GetActiveByUserID(ctx context.Context, userID, excludeStripeSubID string) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var subscriptions []domain.Subscription
	for _, sub := range r.subscriptions {
		if sub.UserID != userID || !sub.IsActive() {
			continue
		}
		if excludeStripeSubID != "" && sub.StripeSubscriptionID == excludeStripeSubID {
			continue
		}
		subscriptions = append(subscriptions, sub)
	}

	return subscriptions, nil
}

// Update обновляет данные существующей подписки
func (r *InMemorySubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.subscriptions[sub.ID]; !exists {
		return ErrNotFound
	}

	sub.UpdatedAt = time.Now()
	r.subscriptions[sub.ID] = *sub

	return nil
}
