package memory

import (
	"context"
	"time"

	"github.com/dmehra2102/event-pos/pkg/outbox"
)

// The memory store doubles as an outbox.Store so the relay runs without
// Postgres. Leases are not tracked: in-progress events stay claimed until
// marked.

var _ outbox.Store = (*Store)(nil)

func (s *Store) LockBatch(_ context.Context, relayID string, batchSize int, _ time.Duration) ([]outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []outbox.Event
	for i := range s.st.outbox {
		if len(out) == batchSize {
			break
		}
		if !claimable(s.st.outbox[i]) {
			continue
		}
		s.st.outbox[i].Status = outbox.StatusInProgress
		s.st.outbox[i].RelayID = relayID
		out = append(out, s.st.outbox[i])
	}
	return out, nil
}

func claimable(e outbox.Event) bool {
	return e.Status == outbox.StatusPending ||
		e.Status == outbox.StatusFailed && e.RetryCount < outbox.MaxRetries
}

func (s *Store) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatus(ids, outbox.StatusSent, nil)
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatus([]int64{id}, outbox.StatusFailed, &errMsg)
	return nil
}

func (s *Store) setStatus(ids []int64, status outbox.Status, lastErr *string) {
	for i := range s.st.outbox {
		for _, id := range ids {
			if s.st.outbox[i].ID != id {
				continue
			}
			s.st.outbox[i].Status = status
			if lastErr != nil {
				s.st.outbox[i].LastError = lastErr
				s.st.outbox[i].RetryCount++
			}
		}
	}
}

// OutboxEvents returns a snapshot of every enqueued event.
func (s *Store) OutboxEvents() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]outbox.Event, len(s.st.outbox))
	copy(out, s.st.outbox)
	return out
}
