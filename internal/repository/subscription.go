package repository

import (
	"context"

	"github.com/lumoapp/billing-service/internal/domain"
)

// SubscriptionRepository определяет методы для работы с зеркалом подписок.
type SubscriptionRepository interface {
	// Upsert сохраняет подписку, перезаписывая существующую запись с тем же ID.
	Upsert(ctx context.Context, sub *domain.Subscription) error

	// GetByID возвращает подписку по ее локальному ID.
	GetByID(ctx context.Context, id string) (*domain.Subscription, error)

	// GetByStripeSubscriptionID возвращает подписку по её Stripe ID.
	GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error)

	// GetByStripeCustomerID возвращает подписки по Stripe ID клиента.
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) ([]domain.Subscription, error)

	// GetByUserID возвращает все подписки пользователя.
	GetByUserID(ctx context.Context, userID string) ([]domain.Subscription, error)

	// GetActiveByUserID возвращает активные подписки пользователя, исключая
	// подписку с указанным Stripe ID. Пустой excludeStripeSubID ничего не исключает.
	GetActiveByUserID(ctx context.Context, userID, excludeStripeSubID string) ([]domain.Subscription, error)

	// Update обновляет данные существующей подписки.
	Update(ctx context.Context, sub *domain.Subscription) error
}
