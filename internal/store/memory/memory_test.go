package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	pixdomain "github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/internal/store"
	"github.com/dmehra2102/event-pos/pkg/apperr"
	"github.com/dmehra2102/event-pos/pkg/outbox"
)

func seedOrder(t *testing.T, s *Store, id string, at time.Time) orderdomain.Order {
	t.Helper()
	o, err := orderdomain.New(id, "n-"+id, "ev1", "c1", []orderdomain.Line{
		{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
	}, "", at)
	require.NoError(t, err)
	require.NoError(t, s.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Orders().Add(ctx, o)
	}))
	return o
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := seedOrder(t, s, "o1", time.Now())

	boom := errors.New("boom")
	err := s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.Orders().GetForUpdate(ctx, o.ID)
		require.NoError(t, err)
		_, err = got.TransitionStatus(orderdomain.StatusPaid, time.Now())
		require.NoError(t, err)
		require.NoError(t, tx.Orders().Update(ctx, got))
		require.NoError(t, tx.Outbox().Enqueue(ctx, outbox.Event{Type: "x"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.Orders().Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, orderdomain.StatusAwaitingPayment, got.Status)
		return nil
	}))
	assert.Empty(t, s.OutboxEvents())
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := seedOrder(t, s, "o1", time.Now())

	require.NoError(t, s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.Orders().Get(ctx, o.ID)
		require.NoError(t, err)
		got.Items[0].Quantity = 99
		again, err := tx.Orders().Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, again.Items[0].Quantity)
		return nil
	}))
}

func TestListByEventOldestFirst(t *testing.T) {
	s := New()
	base := time.Now()
	seedOrder(t, s, "late", base.Add(time.Minute))
	seedOrder(t, s, "early", base)

	require.NoError(t, s.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		list, err := tx.Orders().ListByEvent(ctx, "ev1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "early", list[0].ID)

		taken, err := tx.Orders().NumberTaken(ctx, "ev1", "n-late")
		require.NoError(t, err)
		assert.True(t, taken)

		_, err = tx.Orders().GetByItemForUpdate(ctx, list[1].Items[0].ID)
		require.NoError(t, err)
		_, err = tx.Orders().Get(ctx, "missing")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		return nil
	}))
}

func TestListRetryable(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		done := pixdomain.NewWebhookEvent("done", pixdomain.Notification{}, now)
		done.MarkProcessed(now)
		spent := pixdomain.NewWebhookEvent("spent", pixdomain.Notification{}, now)
		spent.Attempts = 5
		retry := pixdomain.NewWebhookEvent("retry", pixdomain.Notification{}, now)
		for _, e := range []pixdomain.WebhookEvent{done, spent, retry} {
			if err := tx.Webhooks().Add(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		list, err := tx.Webhooks().ListRetryable(ctx, 5, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "retry", list[0].ID)
		return nil
	}))
}

func TestOutboxRelayCycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.Outbox().Enqueue(ctx, outbox.Event{Type: "a"}))
		return tx.Outbox().Enqueue(ctx, outbox.Event{Type: "b"})
	}))

	batch, err := s.LockBatch(ctx, "r1", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	again, err := s.LockBatch(ctx, "r1", 10, time.Second)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, s.MarkSent(ctx, []int64{batch[0].ID}))
	require.NoError(t, s.MarkFailed(ctx, batch[1].ID, "down"))

	retry, err := s.LockBatch(ctx, "r1", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, "b", retry[0].Type)
	assert.Equal(t, 1, retry[0].RetryCount)
}
