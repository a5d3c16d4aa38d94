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

const usersCollection = "users"

// UserRepository реализация справочника пользователей в Firestore
type UserRepository struct {
	client *firestore.Client
	log    *logger.Logger
}

// NewUserRepository создает новый справочник пользователей в Firestore
func NewUserRepository(client *firestore.Client, log *logger.Logger) *UserRepository {
	return &UserRepository{
		client: client,
		log:    log,
	}
}

// GetByID возвращает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	doc, err := r.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user domain.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	user.ID = doc.Ref.ID

	return &user, nil
}

// GetByEmail возвращает пользователя по email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	iter := r.client.Collection(usersCollection).
		Where(fieldEmail, "==", email).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}

	var user domain.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	user.ID = doc.Ref.ID

	return &user, nil
}

// GetByStripeCustomerID возвращает пользователя по его Stripe customer ID
func (r *UserRepository) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	iter := r.client.Collection(usersCollection).
		Where(fieldStripeCustomerID, "==", stripeCustomerID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by stripe customer ID: %w", err)
	}

	var user domain.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	user.ID = doc.Ref.ID

	return &user, nil
}

// SetStripeCustomerID привязывает Stripe customer ID к пользователю
func (r *UserRepository) SetStripeCustomerID(ctx context.Context, userID, stripeCustomerID string) error {
	docRef := r.client.Collection(usersCollection).Doc(userID)

	_, err := docRef.Update(ctx, []firestore.Update{
		{Path: fieldStripeCustomerID, Value: stripeCustomerID},
		{Path: fieldUpdatedAt, Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return repository.ErrNotFound
		}
		r.log.Errorw("Failed to set stripe customer ID", "error", err, "userID", userID)
		return fmt.Errorf("failed to set stripe customer ID: %w", err)
	}

	return nil
}
