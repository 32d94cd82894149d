package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu         sync.Mutex
	events     []string
	exceptions []string
	err        error
	block      chan struct{}
}

func (s *recordingSink) TrackEvent(ctx context.Context, name string, _ map[string]string, _ map[string]float64) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
	return s.err
}

func (s *recordingSink) TrackException(_ context.Context, err error, _ map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptions = append(s.exceptions, err.Error())
	return s.err
}

func (s *recordingSink) snapshot() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...), append([]string(nil), s.exceptions...)
}

func TestDispatcher_DeliversAllOnClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, DispatcherConfig{QueueSize: 16, Workers: 2}, zap.NewNop(), nil)

	d.Emit(
		NewEvent("ProductsRequested", map[string]string{"operation": "getAllProducts"}),
		NewException(errors.New("Product not found: 7"), nil),
		NewEvent("ProductCreated", nil),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	events, exceptions := sink.snapshot()
	assert.ElementsMatch(t, []string{"ProductsRequested", "ProductCreated"}, events)
	assert.Equal(t, []string{"Product not found: 7"}, exceptions)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	sink := &recordingSink{block: block}
	reg := prometheus.NewRegistry()
	d := NewDispatcher(sink, DispatcherConfig{QueueSize: 1, Workers: 1, SendTimeout: 5 * time.Second}, zap.NewNop(), reg)

	// First event occupies the worker, second fills the queue.
	d.Emit(NewEvent("a", nil))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	d.Emit(NewEvent("b", nil))

	start := time.Now()
	d.Emit(NewEvent("c", nil), NewEvent("d", nil))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, float64(2), testutil.ToFloat64(d.dropped))

	close(block)
	require.NoError(t, d.Close(context.Background()))

	events, _ := sink.snapshot()
	assert.Equal(t, []string{"a", "b"}, events)
}

func TestDispatcher_EmitAfterCloseIsDropped(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, DispatcherConfig{}, zap.NewNop(), nil)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	d.Emit(NewEvent("late", nil))

	events, _ := sink.snapshot()
	assert.Empty(t, events)
	assert.Equal(t, float64(1), testutil.ToFloat64(d.dropped))
}

func TestDispatcher_SinkFailureIsCounted(t *testing.T) {
	sink := &recordingSink{err: errors.New("ingestion down")}
	d := NewDispatcher(sink, DispatcherConfig{Workers: 1}, zap.NewNop(), nil)

	d.Emit(NewEvent("x", nil), NewEvent("y", nil))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, float64(2), testutil.ToFloat64(d.failed))
}

func TestMulti_JoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: errors.New("boom")}

	err := Multi{ok, bad}.TrackEvent(context.Background(), "ProductViewed", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	events, _ := ok.snapshot()
	assert.Equal(t, []string{"ProductViewed"}, events)
}

func TestMetricsSink_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewMetricsSink(reg)

	ctx := context.Background()
	require.NoError(t, Deliver(ctx, s, NewEvent("ProductViewed", nil)))
	require.NoError(t, Deliver(ctx, s, NewEvent("ProductViewed", nil)))
	require.NoError(t, Deliver(ctx, s, NewException(errors.New("x"), nil)))

	assert.Equal(t, float64(2), testutil.ToFloat64(s.Events.WithLabelValues("ProductViewed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.Exceptions))
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSink_PublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	s := &KafkaSink{w: w, topic: "product-events"}

	ctx := context.Background()
	require.NoError(t, s.TrackEvent(ctx, "ProductCreated", map[string]string{"productId": "3"}, map[string]float64{"n": 1}))
	require.NoError(t, s.TrackException(ctx, errors.New("Product not found: 9"), nil))
	require.Len(t, w.msgs, 2)

	var ev Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, KindEvent, ev.Kind)
	assert.Equal(t, "ProductCreated", ev.Name)
	assert.Equal(t, "3", ev.Properties["productId"])
	assert.Equal(t, ev.ID, string(w.msgs[0].Key))

	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &ev))
	assert.Equal(t, KindException, ev.Kind)
	assert.Equal(t, "Product not found: 9", ev.Error)
}

func TestDispatcher_KafkaKeepsEventID(t *testing.T) {
	sinks := map[string]func(w *fakeWriter) Sink{
		"direct": func(w *fakeWriter) Sink { return &KafkaSink{w: w, topic: "t"} },
		"multi": func(w *fakeWriter) Sink {
			return Multi{&recordingSink{}, &KafkaSink{w: w, topic: "t"}}
		},
	}
	for name, build := range sinks {
		t.Run(name, func(t *testing.T) {
			w := &fakeWriter{}
			d := NewDispatcher(build(w), DispatcherConfig{Workers: 1}, zap.NewNop(), nil)

			sent := NewEvent("ProductViewed", map[string]string{"productId": "1"})
			notFound := NewException(errors.New("Product not found: 7"), nil)
			d.Emit(sent, notFound)
			require.NoError(t, d.Close(context.Background()))

			require.Len(t, w.msgs, 2)
			for i, want := range []Event{sent, notFound} {
				assert.Equal(t, want.ID, string(w.msgs[i].Key))

				var got Event
				require.NoError(t, json.Unmarshal(w.msgs[i].Value, &got))
				assert.Equal(t, want.ID, got.ID)
				assert.True(t, want.Time.Equal(got.Time), "time %v != %v", got.Time, want.Time)
				assert.Equal(t, want.Kind, got.Kind)
			}
		})
	}
}

func TestKafkaSink_WrapsWriteError(t *testing.T) {
	cause := errors.New("no brokers")
	s := &KafkaSink{w: &fakeWriter{err: cause}, topic: "t"}

	err := s.TrackEvent(context.Background(), "e", nil, nil)
	assert.ErrorIs(t, err, cause)
}
