package repository

import (
	"context"
	"sync"
	"time"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// UserRepository определяет методы для работы со справочником пользователей.
type UserRepository interface {
	// GetByID возвращает пользователя по ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail возвращает пользователя по email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByStripeCustomerID возвращает пользователя по его Stripe customer ID.
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error)

	// SetStripeCustomerID привязывает Stripe customer ID к пользователю.
	SetStripeCustomerID(ctx context.Context, userID, stripeCustomerID string) error
}

// InMemoryUserRepository реализация справочника пользователей в памяти
type InMemoryUserRepository struct {
	users map[string]domain.User
	mutex sync.RWMutex
	log   *logger.Logger
}

// NewInMemoryUserRepository создает новый справочник пользователей в памяти
func NewInMemoryUserRepository(log *logger.Logger) *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users: make(map[string]domain.User),
		log:   log,
	}
}

// Put сохраняет пользователя. Используется в тестах и при начальной загрузке.
func (r *InMemoryUserRepository) Put(ctx context.Context, user *domain.User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = time.Now()

	r.users[user.ID] = *user

	return nil
}

// GetByID возвращает пользователя по ID
func (r *InMemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, ErrNotFound
	}

	return &user, nil
}

// GetByEmail возвращает пользователя по email
func (r *InMemoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}

	return nil, ErrNotFound
}

// GetByStripeCustomerID возвращает пользователя по его Stripe customer ID
func (r *InMemoryUserRepository) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, user := range r.users {
		if user.StripeCustomerID == stripeCustomerID {
			found := user
			return &found, nil
		}
	}

	return nil, ErrNotFound
}

// SetStripeCustomerID привязывает Stripe customer ID к пользователю
func (r *InMemoryUserRepository) SetStripeCustomerID(ctx context.Context, userID, stripeCustomerID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user, exists := r.users[userID]
	if !exists {
		return ErrNotFound
	}

	user.StripeCustomerID = stripeCustomerID
	user.UpdatedAt = time.Now()
	r.users[userID] = user

	return nil
}
