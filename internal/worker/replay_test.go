package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pixdomain "github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/internal/testkit"
	"github.com/dmehra2102/event-pos/pkg/logging"
)

type replayFunc func(ctx context.Context, limit int) (int, error)

func (f replayFunc) ReplayPending(ctx context.Context, limit int) (int, error) { return f(ctx, limit) }

func TestRunOnceSurvivesErrors(t *testing.T) {
	w := NewWebhookReplay(logging.Discard(), replayFunc(func(context.Context, int) (int, error) {
		return 1, errors.New("db down")
	}), time.Second)
	assert.Equal(t, 1, w.RunOnce(context.Background()))
}

func TestRunStopsWithContext(t *testing.T) {
	calls := make(chan int, 10)
	w := NewWebhookReplay(logging.Discard(), replayFunc(func(_ context.Context, limit int) (int, error) {
		calls <- limit
		return 0, nil
	}), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case limit := <-calls:
		assert.Equal(t, 50, limit)
	case <-time.After(time.Second):
		t.Fatal("replay never ran")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestReplayLeavesUnknownTransactionPending(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()

	ev, err := k.Reconciler.Ingest(ctx, pixdomain.Notification{PSPTransactionID: "unknown"})
	require.NoError(t, err)
	require.False(t, ev.Processed)

	w := NewWebhookReplay(logging.Discard(), k.Reconciler, time.Second)
	assert.Zero(t, w.RunOnce(ctx))
}
