package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/internal/kafka/producer"
	"github.com/lumoapp/billing-service/internal/metrics"
	"github.com/lumoapp/billing-service/internal/repository"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// LedgerService управляет финансовыми записями: создание при оформлении
// подписки, обезличивание PII и периодическая зачистка по сроку хранения.
type LedgerService interface {
	// Record создает финансовую запись со сроком хранения 7 лет.
	Record(ctx context.Context, input domain.LedgerEntryInput) (*domain.LedgerRecord, error)

	// RecordAsync создает запись в режиме best-effort: любая ошибка
	// логируется и поглощается, вызывающий поток не прерывается.
	RecordAsync(ctx context.Context, input domain.LedgerEntryInput)

	// Anonymize обезличивает все записи пользователя. Идемпотентна.
	// Возвращает количество измененных записей.
	Anonymize(ctx context.Context, userID string) (int, error)

	// Sweep удаляет записи с истекшим сроком хранения.
	// Возвращает количество удаленных записей.
	Sweep(ctx context.Context) (int, error)
}

type ledgerService struct {
	repo     repository.LedgerRepository
	producer producer.LedgerProducer // Может быть nil, если Kafka недоступен
	metrics  metrics.BillingMetrics
	now      func() time.Time
	log      *logger.Logger
}

// NewLedgerService создает новый сервис финансовых записей.
func NewLedgerService(
	repo repository.LedgerRepository,
	ledgerProducer producer.LedgerProducer,
	billingMetrics metrics.BillingMetrics,
	log *logger.Logger,
) LedgerService {
	if ledgerProducer == nil {
		log.Warnw("Ledger Kafka producer is nil, financial record events will be skipped")
	}
	return &ledgerService{
		repo:     repo,
		producer: ledgerProducer,
		metrics:  billingMetrics,
		now:      time.Now,
		log:      log,
	}
}

// Record создает финансовую запись со сроком хранения 7 лет
func (s *ledgerService) Record(ctx context.Context, input domain.LedgerEntryInput) (*domain.LedgerRecord, error) {
	now := s.now()
	record := &domain.LedgerRecord{
		ID:                   uuid.NewString(),
		UserID:               input.UserID,
		UserEmail:            input.UserEmail,
		UserName:             input.UserName,
		StripeSubscriptionID: input.StripeSubscriptionID,
		StripeCustomerID:     input.StripeCustomerID,
		PlanType:             input.PlanType,
		BillingCycle:         input.BillingCycle,
		Amount:               input.Amount,
		Currency:             input.Currency,
		CurrentPeriodStart:   input.CurrentPeriodStart,
		CurrentPeriodEnd:     input.CurrentPeriodEnd,
		RetainUntil:          now.AddDate(domain.LedgerRetentionYears, 0, 0),
		CreatedAt:            now,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.log.Errorw("Failed to create ledger record", "error", err, "userID", input.UserID, "subscriptionID", input.StripeSubscriptionID)
		return nil, err
	}

	s.metrics.IncLedgerRecordCreated(record.Currency)
	s.log.Infow("Ledger record created", "recordID", record.ID, "userID", record.UserID, "retainUntil", record.RetainUntil)

	if s.producer != nil {
		go s.publishRecordCreated(context.WithoutCancel(ctx), *record)
	}

	return record, nil
}

// RecordAsync создает запись в режиме best-effort
func (s *ledgerService) RecordAsync(ctx context.Context, input domain.LedgerEntryInput) {
	if _, err := s.Record(ctx, input); err != nil {
		s.log.Warnw("Best-effort ledger record creation failed, continuing", "error", err, "userID", input.UserID, "subscriptionID", input.StripeSubscriptionID)
	}
}

// Anonymize обезличивает все записи пользователя
func (s *ledgerService) Anonymize(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.AnonymizeByUserID(ctx, userID, s.now())
	if err != nil {
		s.log.Errorw("Failed to anonymize ledger records", "error", err, "userID", userID)
		return 0, err
	}

	s.log.Infow("Ledger records anonymized", "userID", userID, "count", count)
	return count, nil
}

// Sweep удаляет записи с истекшим сроком хранения
func (s *ledgerService) Sweep(ctx context.Context) (int, error) {
	count, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		s.log.Errorw("Ledger retention sweep failed", "error", err)
		return 0, err
	}

	s.metrics.ObserveLedgerSweepRemoved(count)
	s.log.Infow("Ledger retention sweep completed", "removed", count)
	return count, nil
}

// publishRecordCreated отправляет событие о создании записи в Kafka
func (s *ledgerService) publishRecordCreated(ctx context.Context, record domain.LedgerRecord) {
	kafkaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.producer.PublishRecordCreated(kafkaCtx, record); err != nil {
		s.log.Errorw("Failed to publish financial record event", "error", err, "recordID", record.ID)
	}
}

// SweepJob периодически запускает зачистку финансовых записей.
type SweepJob struct {
	ledger   LedgerService
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	log      *logger.Logger
}

// NewSweepJob создает задачу периодической зачистки.
func NewSweepJob(ledger LedgerService, interval time.Duration, log *logger.Logger) *SweepJob {
	return &SweepJob{
		ledger:   ledger,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      log,
	}
}

// Start запускает задачу в отдельной горутине.
func (j *SweepJob) Start() {
	go j.run()
	j.log.Infow("Ledger sweep job started", "interval", j.interval)
}

// Stop останавливает задачу и дожидается завершения текущей итерации.
func (j *SweepJob) Stop() {
	close(j.stop)
	<-j.done
	j.log.Infow("Ledger sweep job stopped")
}

func (j *SweepJob) run() {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := j.ledger.Sweep(ctx); err != nil {
				j.log.Errorw("Scheduled ledger sweep failed", "error", err)
			}
			cancel()
		case <-j.stop:
			return
		}
	}
}
