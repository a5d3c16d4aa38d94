package repository

import (
	"context"
	"sync"
	"time"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// LedgerRepository определяет методы для работы с хранилищем финансовых записей.
type LedgerRepository interface {
	// Create сохраняет новую финансовую запись.
	Create(ctx context.Context, record *domain.LedgerRecord) error

	// GetByID возвращает финансовую запись по ID.
	GetByID(ctx context.Context, id string) (*domain.LedgerRecord, error)

	// GetByUserID возвращает все финансовые записи пользователя.
	GetByUserID(ctx context.Context, userID string) ([]domain.LedgerRecord, error)

	// AnonymizeByUserID обезличивает все записи пользователя.
	// Возвращает количество измененных записей.
	AnonymizeByUserID(ctx context.Context, userID string, now time.Time) (int, error)

	// DeleteExpired удаляет записи, чей срок хранения истек.
	// Возвращает количество удаленных записей.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// InMemoryLedgerRepository реализация хранилища финансовых записей в памяти
type InMemoryLedgerRepository struct {
	records map[string]domain.LedgerRecord
	mutex   sync.RWMutex
	log     *logger.Logger
}

// NewInMemoryLedgerRepository создает новое хранилище финансовых записей в памяти
func NewInMemoryLedgerRepository(log *logger.Logger) *InMemoryLedgerRepository {
	return &InMemoryLedgerRepository{
		records: make(map[string]domain.LedgerRecord),
		log:     log,
	}
}

// Create сохраняет новую финансовую запись
func (r *InMemoryLedgerRepository) Create(ctx context.Context, record *domain.LedgerRecord) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.records[record.ID]; exists {
		return ErrDuplicate
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	r.records[record.ID] = *record

	return nil
}

// GetByID возвращает финансовую запись по ID
func (r *InMemoryLedgerRepository) GetByID(ctx context.Context, id string) (*domain.LedgerRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return nil, ErrNotFound
	}

	return &record, nil
}

// GetByUserID возвращает все финансовые записи пользователя
func (r *InMemoryLedgerRepository) GetByUserID(ctx context.Context, userID string) ([]domain.LedgerRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var records []domain.LedgerRecord
	for _, record := range r.records {
		if record.UserID == userID {
			records = append(records, record)
		}
	}

	return records, nil
}

// AnonymizeByUserID обезличивает все записи пользователя
func (r *InMemoryLedgerRepository) AnonymizeByUserID(ctx context.Context, userID string, now time.Time) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	count := 0
	for id, record := range r.records {
		if record.UserID != userID || record.IsAnonymized {
			continue
		}
		record.Anonymize(now)
		r.records[id] = record
		count++
	}

	return count, nil
}

// DeleteExpired удаляет записи, чей срок хранения истек
func (r *InMemoryLedgerRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	count := 0
	for id, record := range r.records {
		if record.RetainUntil.Before(now) {
			delete(r.records, id)
			count++
		}
	}

	return count, nil
}
