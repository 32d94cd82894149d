package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"MonitoringLab/internal/config"
	"MonitoringLab/internal/product"
	"MonitoringLab/internal/telemetry"
	"MonitoringLab/pkg/kit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := kit.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tracer, shutdownTracing, err := kit.InitTracing(ctx, kit.TracingConfig{
		Service:  cfg.ServiceName,
		Version:  cfg.ServiceVersion,
		Endpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}

	var closers []io.Closer
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		closeAll(logger, closers)
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	store, err := newStore(ctx, cfg, logger, &closers)
	if err != nil {
		return err
	}
	store = product.NewTracedStore(store, tracer)

	cache, err := newCache(ctx, cfg, logger, &closers)
	if err != nil {
		return err
	}

	sink, err := newSink(cfg, logger, reg, &closers)
	if err != nil {
		return err
	}
	dispatcher := telemetry.NewDispatcher(sink, telemetry.DispatcherConfig{
		QueueSize:   cfg.Event.QueueSize,
		Workers:     cfg.Event.Workers,
		SendTimeout: cfg.Event.SendTimeout,
	}, logger, reg)
	// drains before the sinks it writes to are closed
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := dispatcher.Close(sctx); err != nil {
			logger.Warn("telemetry drain incomplete", zap.Error(err))
		}
	}()

	svc := product.NewService(store, cache, product.CachePolicy{
		InvalidateOnWrite: cfg.Cache.InvalidateOnWrite,
	}, logger, reg)

	s := &product.Server{
		Service: svc,
		Store:   store,
		Events:  dispatcher,
		Log:     logger,
		Info:    product.Info{Name: cfg.ServiceName, Version: cfg.ServiceVersion},
	}
	if cfg.WriteRateLimitPerMin > 0 {
		limiter := kit.NewIPRateLimiter(cfg.WriteRateLimitPerMin, time.Minute)
		s.WriteMiddlewares = append(s.WriteMiddlewares, limiter.Middleware)
	}

	h := product.NewHandler(s, product.HTTPDeps{
		Log:            logger,
		Service:        cfg.ServiceName,
		Registry:       reg,
		Tracer:         tracer,
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,
	})

	return kit.RunHTTPServer(ctx, ":"+cfg.Port, h, logger, cfg.ShutdownTimeout)
}

// closeAll closes in reverse order of acquisition and logs failures.
func closeAll(logger *zap.Logger, closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
}

func newStore(ctx context.Context, cfg config.Config, logger *zap.Logger, closers *[]io.Closer) (product.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory product store")
		return product.NewMemStore(), nil
	}

	db, err := product.OpenPostgres(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, db)

	ps := product.NewPostgresStore(db)
	if err := ps.Migrate(ctx); err != nil {
		return nil, err
	}
	logger.Info("using postgres product store")
	return ps, nil
}

func newCache(ctx context.Context, cfg config.Config, logger *zap.Logger, closers *[]io.Closer) (product.Cache, error) {
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return product.NopCache{}, nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		*closers = append(*closers, client)

		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("using redis response cache", zap.String("addr", cfg.Cache.RedisAddr))
		return product.NewRedisCache(client, cfg.Cache.Prefix, cfg.Cache.TTL), nil
	default:
		return product.NewMemCache(cfg.Cache.TTL), nil
	}
}

func newSink(cfg config.Config, logger *zap.Logger, reg prometheus.Registerer, closers *[]io.Closer) (telemetry.Sink, error) {
	var sinks telemetry.Multi
	for _, name := range cfg.Event.Sinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, telemetry.NewLogSink(logger.Named("telemetry")))
		case config.SinkMetrics:
			sinks = append(sinks, telemetry.NewMetricsSink(reg))
		case config.SinkKafka:
			ks := telemetry.NewKafkaSink(cfg.Event.KafkaBrokers, cfg.Event.KafkaTopic)
			*closers = append(*closers, ks)
			sinks = append(sinks, ks)
		default:
			return nil, fmt.Errorf("unknown event sink %q", name)
		}
	}
	return sinks, nil
}
