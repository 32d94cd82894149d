package product

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracedStore_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	inner := &countingStore{Store: NewMemStore(Product{ID: 1, Name: "Widget"})}
	s := NewTracedStore(inner, tp.Tracer("test"))
	ctx := context.Background()

	_, err := s.FindAll(ctx)
	require.NoError(t, err)
	_, _, err = s.FindByID(ctx, 1)
	require.NoError(t, err)
	_, err = s.Save(ctx, Product{Name: "Gadget"})
	require.NoError(t, err)

	inner.err = errors.New("timeout")
	_, _, err = s.FindByID(ctx, 2)
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 4)
	assert.Equal(t, "store.FindAll", spans[0].Name())
	assert.Equal(t, "store.FindByID", spans[1].Name())
	assert.Equal(t, "store.Save", spans[2].Name())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.Equal(t, codes.Error, spans[3].Status().Code)
}
