package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProducer struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	failOn string
}

func (p *memProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if p.failOn != "" && headerValue(m, "event_type") == p.failOn {
			return errors.New("broker unavailable")
		}
		p.msgs = append(p.msgs, m)
	}
	return nil
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type memStore struct {
	mu      sync.Mutex
	pending []Event
	sent    []int64
	failed  []int64
}

func (s *memStore) LockBatch(context.Context, string, int, time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch, nil
}

func (s *memStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

func (s *memStore) ExtendLease(context.Context, string, []int64, time.Duration) error { return nil }

func TestDispatcherRoutesByEventType(t *testing.T) {
	p := &memProducer{}
	d := NewDispatcher(slog.Default(), p, "notifications", map[string]string{"AuditEntry": "audit"})

	require.NoError(t, d.Dispatch(context.Background(), Event{ID: 1, AggregateID: "o1", Type: "OrderConfirmed", Payload: []byte(`{}`)}))
	require.NoError(t, d.Dispatch(context.Background(), Event{ID: 2, AggregateID: "o1", Type: "AuditEntry", Payload: []byte(`{}`)}))

	require.Len(t, p.msgs, 2)
	assert.Equal(t, "notifications", p.msgs[0].Topic)
	assert.Equal(t, "audit", p.msgs[1].Topic)
	assert.Equal(t, "OrderConfirmed", headerValue(p.msgs[0], "event_type"))
}

func TestDispatcherCarriesTraceparent(t *testing.T) {
	p := &memProducer{}
	d := NewDispatcher(slog.Default(), p, "notifications", nil)

	ev := Event{ID: 1, AggregateID: "o1", Type: "OrderConfirmed", Payload: []byte(`{}`), Traceparent: "00-abc-def-01"}
	require.NoError(t, d.Dispatch(context.Background(), ev))
	assert.Equal(t, "00-abc-def-01", headerValue(p.msgs[0], "traceparent"))
}

func TestRelayMarksSentAndFailed(t *testing.T) {
	p := &memProducer{failOn: "AuditEntry"}
	d := NewDispatcher(slog.Default(), p, "notifications", nil)
	store := &memStore{pending: []Event{
		{ID: 1, AggregateID: "o1", Type: "OrderConfirmed", Payload: []byte(`{}`)},
		{ID: 2, AggregateID: "o1", Type: "AuditEntry", Payload: []byte(`{}`)},
	}}

	relay := NewRelay(slog.Default(), store, d, "test-relay")
	relay.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, relay.Run(ctx))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, []int64{1}, store.sent)
	assert.Equal(t, []int64{2}, store.failed)
}
