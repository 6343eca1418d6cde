// Package kafka holds the broker-facing producer for reservation lifecycle
// events.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer wraps kafka.Writer tuned for the outbox relay: small batches flushed
// quickly, full-ISR acks, and auto topic creation so a fresh broker works out
// of the box in dev.
type Writer struct {
	*kafka.Writer
}

func NewWriter(brokers []string) *Writer {
	return &Writer{
		Writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return w.Writer.WriteMessages(ctx, msgs...)
}
