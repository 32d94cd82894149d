package product

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"MonitoringLab/internal/telemetry"
)

const (
	EventProductsRequested = "ProductsRequested"
	EventProductViewed     = "ProductViewed"
	EventProductCreated    = "ProductCreated"

	opGetAllProducts = "getAllProducts"
)

// Result is the outcome of a service call together with the telemetry it
// produced. Events are returned rather than sent so the caller decides how
// they are delivered.
type Result[T any] struct {
	Value  T
	Found  bool
	Cached bool
	Events []telemetry.Event
}

type CachePolicy struct {
	// InvalidateOnWrite drops the cached product list after a create.
	InvalidateOnWrite bool
}

type Service struct {
	store  Store
	cache  Cache
	policy CachePolicy
	log    *zap.Logger

	cacheRequests *prometheus.CounterVec
}

// NewService wires the business logic. cache and reg may be nil.
func NewService(store Store, cache Cache, policy CachePolicy, log *zap.Logger, reg prometheus.Registerer) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Service{
		store:  store,
		cache:  cache,
		policy: policy,
		log:    log,
		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "product_cache_requests_total",
				Help: "Response cache lookups by operation and result",
			},
			[]string{"op", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(s.cacheRequests)
	}
	return s
}

// List returns every product. The ProductsRequested event is produced before
// the store is queried, so it is part of the result even when the query fails.
func (s *Service) List(ctx context.Context) (Result[[]Product], error) {
	var cached []Product
	if s.lookup(ctx, "list", ListKey(), &cached) {
		return Result[[]Product]{Value: cached, Found: true, Cached: true}, nil
	}

	events := []telemetry.Event{
		telemetry.NewEvent(EventProductsRequested, map[string]string{"operation": opGetAllProducts}),
	}

	products, err := s.store.FindAll(ctx)
	if err != nil {
		return Result[[]Product]{Events: events}, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []Product{}
	}
	s.log.Info("found products", zap.Int("count", len(products)))

	s.put(ctx, ListKey(), products)
	return Result[[]Product]{Value: products, Found: true, Events: events}, nil
}

// Get looks up one product. A miss is not an error: it yields Found=false and
// an exception report naming the id.
func (s *Service) Get(ctx context.Context, id int64) (Result[Product], error) {
	var cached Product
	if s.lookup(ctx, "item", ItemKey(id), &cached) {
		return Result[Product]{Value: cached, Found: true, Cached: true}, nil
	}

	p, ok, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Result[Product]{}, fmt.Errorf("get product %d: %w", id, err)
	}
	if !ok {
		s.log.Warn("product not found", zap.Int64("id", id))
		return Result[Product]{
			Events: []telemetry.Event{
				telemetry.NewException(&NotFoundError{ID: id}, map[string]string{"productId": strconv.FormatInt(id, 10)}),
			},
		}, nil
	}

	s.put(ctx, ItemKey(id), p)
	return Result[Product]{
		Value:  p,
		Found:  true,
		Events: []telemetry.Event{productEvent(EventProductViewed, p)},
	}, nil
}

// Create stores in as a new product. Any identifier on the input is ignored.
func (s *Service) Create(ctx context.Context, in Product) (Result[Product], error) {
	in.ID = 0
	s.log.Info("creating product", zap.String("name", in.Name))

	saved, err := s.store.Save(ctx, in)
	if err != nil {
		return Result[Product]{}, fmt.Errorf("create product: %w", err)
	}

	if s.policy.InvalidateOnWrite {
		if err := s.cache.Delete(ctx, ListKey()); err != nil {
			s.log.Warn("cache invalidate failed", zap.Error(err))
		}
	}

	return Result[Product]{
		Value:  saved,
		Found:  true,
		Events: []telemetry.Event{productEvent(EventProductCreated, saved)},
	}, nil
}

func productEvent(name string, p Product) telemetry.Event {
	return telemetry.NewEvent(name, map[string]string{
		"productId":   strconv.FormatInt(p.ID, 10),
		"productName": p.Name,
	})
}

// lookup reports a hit only when the entry exists and decodes into dst.
// Cache failures degrade to a miss.
func (s *Service) lookup(ctx context.Context, op, key string, dst any) bool {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.cacheRequests.WithLabelValues(op, "error").Inc()
		s.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		s.cacheRequests.WithLabelValues(op, "miss").Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.cacheRequests.WithLabelValues(op, "error").Inc()
		s.log.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return false
	}
	s.cacheRequests.WithLabelValues(op, "hit").Inc()
	return true
}

func (s *Service) put(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		s.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}
