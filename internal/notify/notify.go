// Package notify fans monitor observations out to external consumers:
// webhook, Redis pub/sub, the WebSocket hub and the history recorder.
// Every sink consumes the same two signals and must never block or
// fail the read loop that feeds it.
package notify

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

// EventType identifies the outbound event family.
type EventType string

const (
	EventSlaveUpdated EventType = "slave.updated"
	EventAvailability EventType = "slave.availability"
)

// Event is the wire shape shared by all outbound channels.
type Event struct {
	EventID   string         `json:"event_id"`
	EventType EventType      `json:"event_type"`
	SlaveID   byte           `json:"slave_id"`
	Timestamp int64          `json:"timestamp"`
	Nonce     string         `json:"nonce"`
	Data      map[string]any `json:"data"`
}

func NewEvent(eventType EventType, slaveID byte, data map[string]any) Event {
	return Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		SlaveID:   slaveID,
		Timestamp: time.Now().Unix(),
		Nonce:     fmt.Sprintf("%08x", rand.Uint32()),
		Data:      data,
	}
}

func updatedEvent(slaveID byte, snap registry.Snapshot) Event {
	return NewEvent(EventSlaveUpdated, slaveID, map[string]any{"snapshot": snap})
}

func availabilityEvent(slaveID byte, available bool) Event {
	return NewEvent(EventAvailability, slaveID, map[string]any{"available": available})
}

// Sink receives state changes from the monitor. The monitor delivers
// synchronously from its read loop, so implementations hand off to
// their own workers and drop rather than block when saturated.
type Sink interface {
	OnSlaveUpdated(slaveID byte, snap registry.Snapshot)
	OnAvailabilityChanged(slaveID byte, available bool)
}

// Observer records per-sink delivery outcomes (delivered, dropped,
// failed). The default is a no-op; the application wires it to metrics.
type Observer interface {
	Record(sink, outcome string)
}

type ObserverFunc func(sink, outcome string)

func (f ObserverFunc) Record(sink, outcome string) {
	if f != nil {
		f(sink, outcome)
	}
}

func NopObserver() Observer {
	return ObserverFunc(func(string, string) {})
}

// Fanout delivers every signal to all child sinks. A panicking sink is
// contained so its siblings and the caller keep running.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{sinks: sinks, logger: logger}
}

func (f *Fanout) OnSlaveUpdated(slaveID byte, snap registry.Snapshot) {
	for _, s := range f.sinks {
		f.dispatch(func() { s.OnSlaveUpdated(slaveID, snap) })
	}
}

func (f *Fanout) OnAvailabilityChanged(slaveID byte, available bool) {
	for _, s := range f.sinks {
		f.dispatch(func() { s.OnAvailabilityChanged(slaveID, available) })
	}
}

func (f *Fanout) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("notification sink panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
