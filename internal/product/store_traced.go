package product

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracedStore wraps a Store with one span per call.
type TracedStore struct {
	inner  Store
	tracer trace.Tracer
}

func NewTracedStore(inner Store, tracer trace.Tracer) *TracedStore {
	return &TracedStore{inner: inner, tracer: tracer}
}

func (s *TracedStore) FindAll(ctx context.Context) ([]Product, error) {
	ctx, span := s.tracer.Start(ctx, "store.FindAll")
	defer span.End()

	out, err := s.inner.FindAll(ctx)
	record(span, err)
	span.SetAttributes(attribute.Int("product.count", len(out)))
	return out, err
}

func (s *TracedStore) FindByID(ctx context.Context, id int64) (Product, bool, error) {
	ctx, span := s.tracer.Start(ctx, "store.FindByID",
		trace.WithAttributes(attribute.Int64("product.id", id)),
	)
	defer span.End()

	p, ok, err := s.inner.FindByID(ctx, id)
	record(span, err)
	span.SetAttributes(attribute.Bool("product.found", ok))
	return p, ok, err
}

func (s *TracedStore) Save(ctx context.Context, p Product) (Product, error) {
	ctx, span := s.tracer.Start(ctx, "store.Save")
	defer span.End()

	saved, err := s.inner.Save(ctx, p)
	record(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int64("product.id", saved.ID))
	}
	return saved, err
}

func (s *TracedStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func record(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
