package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/internal/repository"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// LedgerRepository реализация хранилища финансовых записей через PostgreSQL.
type LedgerRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewLedgerRepository создает новое хранилище финансовых записей через PostgreSQL.
func NewLedgerRepository(db *sqlx.DB, log *logger.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:  db,
		log: log,
	}
}

// Create сохраняет новую финансовую запись.
func (r *LedgerRepository) Create(ctx context.Context, record *domain.LedgerRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO ledger_records (
            id, user_id, user_email, user_name,
            stripe_subscription_id, stripe_customer_id,
            plan_type, billing_cycle, amount, currency,
            current_period_start, current_period_end,
            is_anonymized, anonymized_at, retain_until, created_at
        ) VALUES (
            :id, :user_id, :user_email, :user_name,
            :stripe_subscription_id, :stripe_customer_id,
            :plan_type, :billing_cycle, :amount, :currency,
            :current_period_start, :current_period_end,
            :is_anonymized, :anonymized_at, :retain_until, :created_at
        )`

	_, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		r.log.Errorw("Failed to create ledger record in DB", "error", err, "recordID", record.ID, "userID", record.UserID)
		return fmt.Errorf("repository: failed to create ledger record: %w", err)
	}

	r.log.Debugw("Successfully created ledger record in DB", "recordID", record.ID, "userID", record.UserID)
	return nil
}

// GetByID возвращает финансовую запись по ID.
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*domain.LedgerRecord, error) {
	var record domain.LedgerRecord
	query := `
        SELECT id, user_id, user_email, user_name,
               stripe_subscription_id, stripe_customer_id,
               plan_type, billing_cycle, amount, currency,
               current_period_start, current_period_end,
               is_anonymized, anonymized_at, retain_until, created_at
        FROM ledger_records
        WHERE id = $1`

	err := r.db.GetContext(ctx, &record, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		r.log.Errorw("Failed to get ledger record by ID from DB", "error", err, "recordID", id)
		return nil, fmt.Errorf("repository: failed to get ledger record by ID: %w", err)
	}

	return &record, nil
}

// GetByUserID возвращает все финансовые записи пользователя.
func (r *LedgerRepository) GetByUserID(ctx context.Context, userID string) ([]domain.LedgerRecord, error) {
	var records []domain.LedgerRecord
	query := `
        SELECT id, user_id, user_email, user_name,
               stripe_subscription_id, stripe_customer_id,
               plan_type, billing_cycle, amount, currency,
               current_period_start, current_period_end,
               is_anonymized, anonymized_at, retain_until, created_at
        FROM ledger_records
        WHERE user_id = $1
        ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &records, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []domain.LedgerRecord{}, nil
		}
		r.log.Errorw("Failed to get ledger records by user ID from DB", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to get ledger records by user ID: %w", err)
	}

	return records, nil
}

// AnonymizeByUserID обезличивает все записи пользователя одним запросом.
// Возвращает количество измененных записей.
func (r *LedgerRepository) AnonymizeByUserID(ctx context.Context, userID string, now time.Time) (int, error) {
	query := `
        UPDATE ledger_records SET
            user_id = $1,
            user_email = $1,
            user_name = $1,
            stripe_customer_id = $1,
            is_anonymized = TRUE,
            anonymized_at = $2
        WHERE user_id = $3 AND is_anonymized = FALSE`

	result, err := r.db.ExecContext(ctx, query, domain.AnonymizedValue, now, userID)
	if err != nil {
		r.log.Errorw("Failed to anonymize ledger records in DB", "error", err, "userID", userID)
		return 0, fmt.Errorf("repository: failed to anonymize ledger records: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.Errorw("Failed to get rows affected after anonymization", "error", err, "userID", userID)
		return 0, fmt.Errorf("repository: failed to get affected rows count: %w", err)
	}

	r.log.Debugw("Anonymized ledger records", "userID", userID, "count", rowsAffected)
	return int(rowsAffected), nil
}

// DeleteExpired удаляет записи, чей срок хранения истек.
// Возвращает количество удаленных записей.
func (r *LedgerRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query := `DELETE FROM ledger_records WHERE retain_until < $1`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		r.log.Errorw("Failed to delete expired ledger records from DB", "error", err)
		return 0, fmt.Errorf("repository: failed to delete expired ledger records: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.Errorw("Failed to get rows affected after retention sweep", "error", err)
		return 0, fmt.Errorf("repository: failed to get affected rows count: %w", err)
	}

	r.log.Debugw("Deleted expired ledger records", "count", rowsAffected)
	return int(rowsAffected), nil
}
