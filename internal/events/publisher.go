// Package events publishes audit ledger events to Kafka so downstream
// consumers (compliance tooling, notification services) can react to new
// ledger entries without polling the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/finguard/finguard/internal/ledger"
	"github.com/finguard/finguard/internal/models"
	"github.com/segmentio/kafka-go"
)

var _ ledger.EventSink = (*Publisher)(nil)

// Publisher writes audit record events to a Kafka topic. Messages are keyed
// by subject ID so each subject's chain stays ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// RecordAppended publishes a newly committed audit record.
func (p *Publisher) RecordAppended(ctx context.Context, record models.AuditRecord) error {
	data, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.SubjectID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish audit record: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
