package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"vcon/pkg/platform/circuit"
)

var at = time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(New(TypeSigned, "u-1", at))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"vcon.signed","uuid":"u-1","occurred_at":"2024-03-01T11:00:00Z"}`, string(data))
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.records = append(f.records, rs...)
	var out kgo.ProduceResults
	for _, r := range rs {
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}

func TestKafkaPublisher(t *testing.T) {
	t.Run("writes a keyed json record", func(t *testing.T) {
		p := &fakeProducer{}
		require.NoError(t, NewKafkaPublisher(p, "vcon.events").Publish(context.Background(), New(TypeCreated, "u-1", at)))

		require.Len(t, p.records, 1)
		r := p.records[0]
		assert.Equal(t, "vcon.events", r.Topic)
		assert.Equal(t, []byte("u-1"), r.Key)
		assert.Equal(t, []kgo.RecordHeader{{Key: "type", Value: []byte("vcon.created")}}, r.Headers)

		var got Event
		require.NoError(t, json.Unmarshal(r.Value, &got))
		assert.Equal(t, TypeCreated, got.Type)
		assert.True(t, got.OccurredAt.Equal(at))
	})

	t.Run("surfaces produce errors", func(t *testing.T) {
		p := &fakeProducer{err: errors.New("broker down")}
		err := NewKafkaPublisher(p, "vcon.events").Publish(context.Background(), New(TypeTagged, "u-1", at))
		assert.ErrorContains(t, err, "broker down")
	})
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, p.Publish(context.Background(), New(TypeTagged, "u-1", at)))
	assert.Contains(t, buf.String(), "type=vcon.tagged")
	assert.Contains(t, buf.String(), "uuid=u-1")
}

type blockingPublisher struct {
	Recorder
	release chan struct{}
}

func (b *blockingPublisher) Publish(ctx context.Context, e Event) error {
	<-b.release
	return b.Recorder.Publish(ctx, e)
}

type failingPublisher struct {
	mu    sync.Mutex
	calls int
}

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("nope")
}

func TestAsync(t *testing.T) {
	t.Run("drains on close", func(t *testing.T) {
		rec := &Recorder{}
		a := NewAsync(rec, 100)
		for range 10 {
			require.NoError(t, a.Publish(context.Background(), New(TypeCreated, "u", at)))
		}
		a.Close()
		assert.Len(t, rec.Events(), 10)
		assert.ErrorIs(t, a.Publish(context.Background(), New(TypeCreated, "u", at)), ErrClosed)
		a.Close()
	})

	t.Run("rejects when the buffer is full", func(t *testing.T) {
		b := &blockingPublisher{release: make(chan struct{})}
		a := NewAsync(b, 1)

		var full bool
		for range 5 {
			if errors.Is(a.Publish(context.Background(), New(TypeCreated, "u", at)), ErrBufferFull) {
				full = true
				break
			}
		}
		assert.True(t, full)
		close(b.release)
		a.Close()
	})

	t.Run("downstream errors are logged and skipped", func(t *testing.T) {
		var buf bytes.Buffer
		f := &failingPublisher{}
		a := NewAsync(f, 10, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
		require.NoError(t, a.Publish(context.Background(), New(TypeSigned, "u", at)))
		require.NoError(t, a.Publish(context.Background(), New(TypeSigned, "u", at)))
		a.Close()
		assert.Equal(t, 2, f.calls)
		assert.Contains(t, buf.String(), "failed to publish vcon event")
	})

	t.Run("repeated failures degrade health", func(t *testing.T) {
		var buf bytes.Buffer
		a := NewAsync(&failingPublisher{}, 10,
			WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
			WithBreaker(circuit.New("kafka", circuit.WithFailureThreshold(2))),
		)
		assert.NoError(t, a.Health(context.Background()))
		for range 2 {
			require.NoError(t, a.Publish(context.Background(), New(TypeTagged, "u", at)))
		}
		a.Close()
		assert.ErrorIs(t, a.Health(context.Background()), ErrDegraded)
		assert.Contains(t, buf.String(), "event delivery degraded")
	})
}
