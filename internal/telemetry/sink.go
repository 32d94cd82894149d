package telemetry

import (
	"context"
	"errors"
	"fmt"
)

// Sink is the external event ingestion endpoint.
type Sink interface {
	TrackEvent(ctx context.Context, name string, props map[string]string, metrics map[string]float64) error
	TrackException(ctx context.Context, err error, props map[string]string) error
}

// Publisher is implemented by sinks that record the Event as queued, keeping
// its id and time, instead of the decomposed Track* call.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Deliver hands ev to s, preferring Publish when s implements it.
func Deliver(ctx context.Context, s Sink, ev Event) error {
	if p, ok := s.(Publisher); ok {
		return p.Publish(ctx, ev)
	}
	switch ev.Kind {
	case KindEvent:
		return s.TrackEvent(ctx, ev.Name, ev.Properties, ev.Metrics)
	case KindException:
		return s.TrackException(ctx, ev.Err(), ev.Properties)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

// Multi fans every call out to all sinks and joins their errors.
type Multi []Sink

func (m Multi) TrackEvent(ctx context.Context, name string, props map[string]string, metrics map[string]float64) error {
	var errs []error
	for _, s := range m {
		if err := s.TrackEvent(ctx, name, props, metrics); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) TrackException(ctx context.Context, err error, props map[string]string) error {
	var errs []error
	for _, s := range m {
		if e := s.TrackException(ctx, err, props); e != nil {
			errs = append(errs, e)
		}
	}
	return errors.Join(errs...)
}

// Publish delivers ev to every sink so Publisher members see the original
// event.
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := Deliver(ctx, s, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
