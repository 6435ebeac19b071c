package notify

import (
	"github.com/segmentio/kafka-go"
)

// NewWriter returns the producer the outbox relay publishes notifications
// with. Messages are keyed by order id, so one order's notifications stay on
// one partition.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}
