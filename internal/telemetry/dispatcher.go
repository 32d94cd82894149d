package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 2 * time.Second
	}
	return c
}

// Dispatcher delivers events to a Sink from a fixed worker pool. Emit never
// blocks: when the queue is full the event is dropped and counted.
type Dispatcher struct {
	sink Sink
	cfg  DispatcherConfig
	log  *zap.Logger

	queue chan Event
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	dropped prometheus.Counter
	failed  prometheus.Counter
}

// NewDispatcher starts the workers. reg may be nil.
func NewDispatcher(sink Sink, cfg DispatcherConfig, log *zap.Logger, reg prometheus.Registerer) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	d := &Dispatcher{
		sink:  sink,
		cfg:   cfg,
		log:   log,
		queue: make(chan Event, cfg.QueueSize),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_events_dropped_total",
			Help: "Events dropped because the dispatch queue was full or closed",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_events_failed_total",
			Help: "Events the sink failed to accept",
		}),
	}
	if reg != nil {
		reg.MustRegister(d.dropped, d.failed)
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) Emit(events ...Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, ev := range events {
		if d.closed {
			d.drop(ev, "closed")
			continue
		}
		select {
		case d.queue <- ev:
		default:
			d.drop(ev, "queue full")
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.send(ev)
	}
}

func (d *Dispatcher) send(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if err := Deliver(ctx, d.sink, ev); err != nil {
		d.failed.Inc()
		d.log.Warn("telemetry delivery failed",
			zap.Error(err),
			zap.String("event_id", ev.ID),
			zap.String("kind", string(ev.Kind)),
			zap.String("name", ev.Name),
		)
	}
}

func (d *Dispatcher) drop(ev Event, reason string) {
	d.dropped.Inc()
	d.log.Warn("telemetry event dropped",
		zap.String("reason", reason),
		zap.String("event_id", ev.ID),
		zap.String("name", ev.Name),
	)
}
