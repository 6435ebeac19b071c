// Package worker runs the background loops of the POS service.
package worker

import (
	"context"
	"log/slog"
	"time"
)

type Replayer interface {
	ReplayPending(ctx context.Context, limit int) (int, error)
}

// WebhookReplay periodically re-applies stored webhook notifications that
// have not been processed yet.
type WebhookReplay struct {
	log       *slog.Logger
	replayer  Replayer
	interval  time.Duration
	batchSize int
}

func NewWebhookReplay(log *slog.Logger, replayer Replayer, interval time.Duration) *WebhookReplay {
	return &WebhookReplay{
		log:       log,
		replayer:  replayer,
		interval:  interval,
		batchSize: 50,
	}
}

func (w *WebhookReplay) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("webhook replay stopping")
			return nil
		case <-t.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *WebhookReplay) RunOnce(ctx context.Context) int {
	n, err := w.replayer.ReplayPending(ctx, w.batchSize)
	if err != nil {
		w.log.Error("webhook replay error", "err", err)
	}
	if n > 0 {
		w.log.Info("webhooks replayed", "processed", n)
	}
	return n
}
