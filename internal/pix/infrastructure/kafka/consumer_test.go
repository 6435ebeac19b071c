package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/pkg/idempotency"
	"github.com/dmehra2102/event-pos/pkg/logging"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeIngester struct {
	psps   []string
	bodies []string
	err    error
	fails  int
	calls  int
}

func (f *fakeIngester) IngestRaw(_ context.Context, psp string, body []byte) ([]domain.WebhookEvent, error) {
	f.calls++
	if f.err != nil && f.calls <= f.fails {
		return nil, f.err
	}
	f.psps = append(f.psps, psp)
	f.bodies = append(f.bodies, string(body))
	return []domain.WebhookEvent{{ID: "w1", Processed: true}}, nil
}

func newIdem(t *testing.T) *idempotency.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return idempotency.NewStore(rdb, time.Minute)
}

func TestConsumerIngestsOncePerOffset(t *testing.T) {
	msg := kafka.Message{
		Topic:   "pix.webhooks",
		Offset:  7,
		Value:   []byte(`{"pix":[]}`),
		Headers: []kafka.Header{{Key: HeaderPSP, Value: []byte("bank")}},
	}
	r := &fakeReader{msgs: []kafka.Message{msg, msg, {Topic: "pix.webhooks", Offset: 8, Value: []byte("x")}}}
	ing := &fakeIngester{}
	c := newConsumer(logging.Discard(), r, ing, newIdem(t))

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []string{"bank", defaultPSP}, ing.psps)
	assert.Equal(t, []string{`{"pix":[]}`, "x"}, ing.bodies)
	assert.Equal(t, []int64{7, 7, 8}, r.committed)
}

func TestConsumerRetriesUntilStored(t *testing.T) {
	idem := newIdem(t)
	failing := kafka.Message{Topic: "pix.webhooks", Offset: 3, Value: []byte("first")}
	next := kafka.Message{Topic: "pix.webhooks", Offset: 4, Value: []byte("second")}
	r := &fakeReader{msgs: []kafka.Message{failing, next}}
	ing := &fakeIngester{err: errors.New("db down"), fails: 2}
	c := newConsumer(logging.Discard(), r, ing, idem)
	c.retryMin = time.Millisecond
	c.retryMax = 2 * time.Millisecond

	require.ErrorIs(t, c.Run(context.Background()), context.Canceled)

	assert.Equal(t, 4, ing.calls)
	assert.Equal(t, []string{"first", "second"}, ing.bodies)
	assert.Equal(t, []int64{3, 4}, r.committed)
}

func TestConsumerStopsRetryingWithContext(t *testing.T) {
	idem := newIdem(t)
	msg := kafka.Message{Topic: "pix.webhooks", Offset: 3, Value: []byte("{}")}
	r := &fakeReader{msgs: []kafka.Message{msg, {Topic: "pix.webhooks", Offset: 4}}}
	ing := &fakeIngester{err: errors.New("db down"), fails: 1 << 30}
	c := newConsumer(logging.Discard(), r, ing, idem)
	c.retryMin = time.Millisecond
	c.retryMax = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.Run(ctx), context.DeadlineExceeded)

	assert.Empty(t, r.committed)
	assert.Len(t, r.msgs, 1)
	seen, err := idem.Seen(context.Background(), idem.Key(msg.Topic, msg.Partition, msg.Offset))
	require.NoError(t, err)
	assert.False(t, seen)
}
