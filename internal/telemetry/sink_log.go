package telemetry

import (
	"context"

	"go.uber.org/zap"
)

type LogSink struct {
	Log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSink{Log: log}
}

func (s *LogSink) TrackEvent(_ context.Context, name string, props map[string]string, metrics map[string]float64) error {
	s.Log.Info("telemetry event",
		zap.String("event", name),
		zap.Any("properties", props),
		zap.Any("metrics", metrics),
	)
	return nil
}

func (s *LogSink) TrackException(_ context.Context, err error, props map[string]string) error {
	s.Log.Warn("telemetry exception",
		zap.Error(err),
		zap.Any("properties", props),
	)
	return nil
}
