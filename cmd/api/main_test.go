package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"MonitoringLab/internal/config"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseAll_ReverseOrderAndKeepsGoing(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	var order []string
	closers := []io.Closer{
		closerFunc(func() error { order = append(order, "db"); return nil }),
		closerFunc(func() error { order = append(order, "redis"); return errors.New("already closed") }),
		closerFunc(func() error { order = append(order, "kafka"); return nil }),
	}

	closeAll(zap.New(core), closers)

	assert.Equal(t, []string{"kafka", "redis", "db"}, order)
	require.Equal(t, 1, logs.FilterMessage("close failed").Len())
}

func TestRun_StartupFailureReturnsError(t *testing.T) {
	cfg := config.Config{
		Port:            "0",
		ServiceName:     "monitoring-lab-api",
		ShutdownTimeout: time.Second,
		Cache: config.CacheConfig{
			Backend:   config.CacheRedis,
			RedisAddr: "127.0.0.1:1",
		},
		Event: config.EventConfig{
			Sinks:     []string{config.SinkLog},
			QueueSize: 8,
			Workers:   1,
		},
	}
	core, logs := observer.New(zapcore.InfoLevel)

	done := make(chan error, 1)
	go func() { done <- run(context.Background(), cfg, zap.New(core)) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorContains(t, err, "redis ping")
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after a failed redis ping")
	}
	assert.Equal(t, 1, logs.FilterMessage("using in-memory product store").Len())
	assert.Zero(t, logs.FilterMessage("tracing shutdown failed").Len())
}
