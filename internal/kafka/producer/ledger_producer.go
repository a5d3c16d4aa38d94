package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/pkg/logger"
)

const (
	TopicFinancialRecords = "financial_records"
)

// LedgerProducer интерфейс для отправки событий финансовых записей
type LedgerProducer interface {
	PublishRecordCreated(ctx context.Context, record domain.LedgerRecord) error
	Close() error
}

type kafkaLedgerProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewKafkaLedgerProducer создает новый продюсер событий финансовых записей
func NewKafkaLedgerProducer(producer sarama.SyncProducer, log *logger.Logger) LedgerProducer {
	return &kafkaLedgerProducer{
		producer: producer,
		log:      log,
	}
}

// PublishRecordCreated публикует событие о создании финансовой записи
func (p *kafkaLedgerProducer) PublishRecordCreated(ctx context.Context, record domain.LedgerRecord) error {
	event := domain.FinancialRecordEvent{
		RecordID:             record.ID,
		UserID:               record.UserID,
		StripeSubscriptionID: record.StripeSubscriptionID,
		Amount:               record.Amount,
		Currency:             record.Currency,
		Timestamp:            time.Now(),
	}

	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal financial record event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: TopicFinancialRecords,
		Key:   sarama.StringEncoder(record.StripeSubscriptionID),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte("financial_record.created"),
			},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish financial record event: %w", err)
	}

	p.log.Info("Published financial record event to topic %s: partition=%d offset=%d",
		TopicFinancialRecords, partition, offset)

	return nil
}

// Close закрывает продюсер
func (p *kafkaLedgerProducer) Close() error {
	return p.producer.Close()
}
