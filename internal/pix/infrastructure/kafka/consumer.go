package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/pkg/idempotency"
	"github.com/dmehra2102/event-pos/pkg/tracing"
)

// HeaderPSP names the PSP a relayed webhook body came from.
const HeaderPSP = "psp"

const defaultPSP = "kafka"

const (
	retryMin = 200 * time.Millisecond
	retryMax = 10 * time.Second
)

type Ingester interface {
	IngestRaw(ctx context.Context, psp string, body []byte) ([]domain.WebhookEvent, error)
}

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds webhook bodies relayed onto a topic into the reconciler.
type Consumer struct {
	log    *slog.Logger
	reader reader
	ingest Ingester
	idem   *idempotency.Store
	tracer trace.Tracer

	retryMin time.Duration
	retryMax time.Duration
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, ingest Ingester, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return newConsumer(log, r, ingest, idem)
}

func newConsumer(log *slog.Logger, r reader, ingest Ingester, idem *idempotency.Store) *Consumer {
	return &Consumer{
		log:    log,
		reader: r,
		ingest: ingest,
		idem:   idem,
		tracer: otel.Tracer("pix-webhook-consumer"),

		retryMin: retryMin,
		retryMax: retryMax,
	}
}

// Run consumes until ctx ends. A message whose webhook cannot be stored is
// retried in place; later offsets are not fetched meanwhile, so committing
// them can never skip it.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if err := c.deliver(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, msg kafka.Message) error {
	wait := c.retryMin
	for {
		err := c.handle(ctx, msg)
		if err == nil {
			return nil
		}
		c.log.Warn("webhook message retry scheduled", "offset", msg.Offset, "backoff", wait, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, c.retryMax)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Error("idempotency check failed", "err", err)
		return err
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		c.commit(ctx, msg)
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumePixWebhook")
	defer span.End()

	psp := tracing.HeaderValue(msg.Headers, HeaderPSP)
	if psp == "" {
		psp = defaultPSP
	}
	span.SetAttributes(attribute.String("pix.psp", psp), attribute.Int64("kafka.offset", msg.Offset))

	events, err := c.ingest.IngestRaw(msgCtx, psp, msg.Value)
	if err != nil {
		// Nothing was stored: release the key so the retry is not taken
		// for a duplicate.
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Error("webhook not stored", "offset", msg.Offset, "err", err)
		if ferr := c.idem.Forget(context.WithoutCancel(ctx), key); ferr != nil {
			c.log.Warn("idempotency key not released", "key", key, "err", ferr)
		}
		return err
	}
	for _, ev := range events {
		c.log.Info("webhook consumed", "webhook_id", ev.ID, "txid", ev.PSPTransactionID, "processed", ev.Processed)
	}
	c.commit(ctx, msg)
	return nil
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.log.Warn("offset commit failed", "offset", msg.Offset, "err", err)
	}
}
