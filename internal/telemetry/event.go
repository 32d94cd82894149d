// Package telemetry carries analytics events from request handling to an
// external event sink. Business code produces Event values; a Dispatcher
// delivers them asynchronously so sink latency or failure never reaches the
// response path.
package telemetry

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindEvent     Kind = "event"
	KindException Kind = "exception"
)

type Event struct {
	ID         string             `json:"id"`
	Kind       Kind               `json:"kind"`
	Name       string             `json:"name,omitempty"`
	Properties map[string]string  `json:"properties,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Error      string             `json:"error,omitempty"`
	Time       time.Time          `json:"time"`
}

// NewEvent builds a named custom event.
func NewEvent(name string, props map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       KindEvent,
		Name:       name,
		Properties: props,
		Time:       time.Now().UTC(),
	}
}

// NewException builds an exception report for err.
func NewException(err error, props map[string]string) Event {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Event{
		ID:         uuid.NewString(),
		Kind:       KindException,
		Properties: props,
		Error:      msg,
		Time:       time.Now().UTC(),
	}
}

// Err returns the reported error of an exception event.
func (e Event) Err() error {
	if e.Kind != KindException {
		return nil
	}
	return errors.New(e.Error)
}
