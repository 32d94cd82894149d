package product

import (
	"context"
	"sync"
	"sync/atomic"

	"MonitoringLab/internal/telemetry"
)

type countingStore struct {
	Store
	findAll  atomic.Int32
	findByID atomic.Int32
	saves    atomic.Int32
	err      error
}

func (s *countingStore) FindAll(ctx context.Context) ([]Product, error) {
	s.findAll.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.Store.FindAll(ctx)
}

func (s *countingStore) FindByID(ctx context.Context, id int64) (Product, bool, error) {
	s.findByID.Add(1)
	if s.err != nil {
		return Product{}, false, s.err
	}
	return s.Store.FindByID(ctx, id)
}

func (s *countingStore) Save(ctx context.Context, p Product) (Product, error) {
	s.saves.Add(1)
	if s.err != nil {
		return Product{}, s.err
	}
	return s.Store.Save(ctx, p)
}

type recorder struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (r *recorder) Emit(events ...telemetry.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) all() []telemetry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telemetry.Event(nil), r.events...)
}

func (r *recorder) named(name string) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Kind == telemetry.KindEvent && ev.Name == name {
			n++
		}
	}
	return n
}

func (r *recorder) exceptions() []telemetry.Event {
	var out []telemetry.Event
	for _, ev := range r.all() {
		if ev.Kind == telemetry.KindException {
			out = append(out, ev)
		}
	}
	return out
}

type failingCache struct{ err error }

func (c failingCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, c.err }
func (c failingCache) Set(context.Context, string, []byte) error         { return c.err }
func (c failingCache) Delete(context.Context, ...string) error           { return c.err }
