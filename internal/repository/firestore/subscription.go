package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/internal/repository"
	"github.com/lumoapp/billing-service/pkg/logger"
)

const subscriptionsCollection = "subscriptions"

// Имена полей документов. Документы пишутся целиком через Set, поэтому имена
// в выборках и точечных обновлениях обязаны совпадать с firestore-тегами
// доменных структур.
const (
	fieldUserID               = "userId"
	fieldStripeSubscriptionID = "stripeSubscriptionId"
	fieldStripeCustomerID     = "stripeCustomerId"
	fieldEmail                = "email"
	fieldUpdatedAt            = "updatedAt"
)

// SubscriptionRepository реализация зеркала подписок в Firestore
type SubscriptionRepository struct {
	client *firestore.Client
	log    *logger.Logger
}

// NewSubscriptionRepository создает новый репозиторий подписок в Firestore
func NewSubscriptionRepository(client *firestore.Client, log *logger.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{
		client: client,
		log:    log,
	}
}

// Upsert сохраняет подписку, перезаписывая существующий документ с тем же ID
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	now := time.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	_, err := r.client.Collection(subscriptionsCollection).Doc(sub.ID).Set(ctx, sub)
	if err != nil {
		r.log.Errorw("Failed to upsert subscription", "error", err, "id", sub.ID)
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

// GetByID возвращает подписку по локальному ID
func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	doc, err := r.client.Collection(subscriptionsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	var sub domain.Subscription
	if err := doc.DataTo(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription: %w", err)
	}

	return &sub, nil
}

// GetByStripeSubscriptionID возвращает подписку по её Stripe ID
func (r *SubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	iter := r.client.Collection(subscriptionsCollection).
		Where(fieldStripeSubscriptionID, "==", stripeSubscriptionID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription by stripe ID: %w", err)
	}

	var sub domain.Subscription
	if err := doc.DataTo(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription: %w", err)
	}

	return &sub, nil
}

// GetByStripeCustomerID возвращает подписки по Stripe ID клиента
func (r *SubscriptionRepository) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) ([]domain.Subscription, error) {
	iter := r.client.Collection(subscriptionsCollection).
		Where(fieldStripeCustomerID, "==", stripeCustomerID).
		Documents(ctx)

	return r.collect(iter)
}

// GetByUserID возвращает все подписки пользователя
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) ([]domain.Subscription, error) {
	iter := r.client.Collection(subscriptionsCollection).
		Where(fieldUserID, "==", userID).
		Documents(ctx)

	return r.collect(iter)
}

// GetActiveByUserID возвращает активные подписки пользователя, исключая
// подписку с указанным Stripe ID. Фильтрация по статусу выполняется на
// стороне клиента, чтобы не требовать составного индекса.
func (r *SubscriptionRepository) GetActiveByUserID(ctx context.Context, userID, excludeStripeSubID string) ([]domain.Subscription, error) {
	all, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var subscriptions []domain.Subscription
	for _, sub := range all {
		if !sub.IsActive() {
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
func (r *SubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	docRef := r.client.Collection(subscriptionsCollection).Doc(sub.ID)

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to check subscription existence: %w", err)
	}

	sub.UpdatedAt = time.Now()
	if _, err := docRef.Set(ctx, sub); err != nil {
		r.log.Errorw("Failed to update subscription", "error", err, "id", sub.ID)
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	return nil
}

func (r *SubscriptionRepository) collect(iter *firestore.DocumentIterator) ([]domain.Subscription, error) {
	defer iter.Stop()

	var subscriptions []domain.Subscription
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
		}

		var sub domain.Subscription
		if err := doc.DataTo(&sub); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		subscriptions = append(subscriptions, sub)
	}

	return subscriptions, nil
}
