package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/lumoapp/billing-service/pkg/logger"
)

// maxConnectWait ограничивает ожидание готовности базы при старте.
const maxConnectWait = 30 * time.Second

// NewConnection создает новое подключение к PostgreSQL. База может подниматься
// параллельно с сервисом, поэтому подключение повторяется с экспоненциальной
// задержкой, но не дольше maxConnectWait.
func NewConnection(ctx context.Context, dsn string, log *logger.Logger) (*sqlx.DB, error) {
	log.Info("Connecting to PostgreSQL")

	var db *sqlx.DB
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = maxConnectWait

	err := backoff.Retry(func() error {
		var connErr error
		db, connErr = sqlx.ConnectContext(ctx, "pgx", dsn)
		if connErr != nil {
			log.Warnw("Database is not ready, retrying", "error", connErr)
		}
		return connErr
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		log.Errorw("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	log.Info("Successfully connected to PostgreSQL")
	return db, nil
}
