package outbox

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/event-pos/pkg/tracing"
)

// Header keys stamped on every relayed notification, next to the event's own
// headers.
const (
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
	HeaderOutboxID      = "outbox_id"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

// DispatchBatch writes the events in one produce call, keyed by aggregate so
// the notifications of one order stay ordered. The result holds one error
// slot per event; nil means the event was written.
func (d *Dispatcher) DispatchBatch(ctx context.Context, events []Event) []error {
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		msgs[i] = d.message(ctx, e)
	}

	errs := make([]error, len(events))
	err := d.producer.WriteMessages(ctx, msgs...)
	if err == nil {
		return errs
	}
	var perMsg kafka.WriteErrors
	if errors.As(err, &perMsg) && len(perMsg) == len(events) {
		copy(errs, perMsg)
	} else {
		for i := range errs {
			errs[i] = err
		}
	}
	for i, e := range events {
		if errs[i] != nil {
			d.log.Error("outbox dispatch failed", "event_id", e.ID, "type", e.Type, "aggregate_id", e.AggregateID, "err", errs[i])
		}
	}
	return errs
}

func (d *Dispatcher) message(ctx context.Context, e Event) kafka.Message {
	headers := make([]kafka.Header, 0, len(e.Headers)+4)
	for _, k := range slices.Sorted(maps.Keys(e.Headers)) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(e.Headers[k])})
	}
	headers = append(headers,
		kafka.Header{Key: HeaderEventType, Value: []byte(e.Type)},
		kafka.Header{Key: HeaderAggregateType, Value: []byte(e.AggregateType)},
		kafka.Header{Key: HeaderOutboxID, Value: []byte(strconv.FormatInt(e.ID, 10))},
	)
	if e.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: tracing.TraceparentHeader, Value: []byte(e.Traceparent)})
	} else {
		headers = tracing.InjectKafkaHeaders(ctx, headers)
	}
	return kafka.Message{
		Topic:   d.topic,
		Key:     []byte(e.AggregateID),
		Value:   e.Payload,
		Headers: headers,
	}
}
