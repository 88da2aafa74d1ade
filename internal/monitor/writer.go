package monitor

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/costea32/rdz-thermostats-monitor/internal/config"
	"github.com/costea32/rdz-thermostats-monitor/internal/metrics"
	"github.com/costea32/rdz-thermostats-monitor/internal/modbus"
	"github.com/costea32/rdz-thermostats-monitor/internal/notify"
	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

const (
	DefaultWriteAttempts    = 5
	DefaultEchoWait         = 1300 * time.Millisecond
	DefaultSetpointRegister = 144
)

var ErrSetpointRange = errors.New("setpoint out of range")

// sender is what the commander needs from the transport.
type sender interface {
	send(frame []byte) error
}

type echoWant struct {
	slave byte
	addr  uint16
	value uint16
	doneC chan struct{}
}

// WriteCommander performs the one active operation on the bus: write a
// setpoint register and wait for the slave's echo, which is the only
// proof the write reached the wire. One write owns the connection at a
// time; everything else on the socket stays passive.
type WriteCommander struct {
	sender sender
	reg    *registry.Registry
	sink   notify.Sink
	m      *metrics.AppMetrics
	logger *zap.Logger

	attempts    int
	echoWait    time.Duration
	setpointReg uint16

	writeMu sync.Mutex // serializes whole write cycles

	mu   sync.Mutex // guards want
	want *echoWant
}

func newWriteCommander(s sender, cfg cfgpkg.WriteConfig, reg *registry.Registry, sink notify.Sink, m *metrics.AppMetrics, logger *zap.Logger) *WriteCommander {
	if cfg.Attempts < 1 {
		cfg.Attempts = DefaultWriteAttempts
	}
	if cfg.EchoWait <= 0 {
		cfg.EchoWait = DefaultEchoWait
	}
	if cfg.SetpointRegister == 0 {
		cfg.SetpointRegister = DefaultSetpointRegister
	}
	return &WriteCommander{
		sender:      s,
		reg:         reg,
		sink:        sink,
		m:           m,
		logger:      logger,
		attempts:    cfg.Attempts,
		echoWait:    cfg.EchoWait,
		setpointReg: cfg.SetpointRegister,
	}
}

// WriteSetpoint writes temperature (degrees C) to the slave's setpoint
// register. The wire value is the temperature scaled by 10.
func (w *WriteCommander) WriteSetpoint(ctx context.Context, slave byte, temperature float64) error {
	scaled := math.Round(temperature * 10)
	if scaled < 0 || scaled > math.MaxUint16 {
		return ErrSetpointRange
	}
	return w.WriteRegister(ctx, slave, w.setpointReg, uint16(scaled))
}

// WriteRegister writes value to one holding register with echo
// confirmation. The frame is sent up to the configured attempt count;
// each attempt waits out the echo window, which doubles as the retry
// spacing. The registry is updated the moment the echo lands.
func (w *WriteCommander) WriteRegister(ctx context.Context, slave byte, addr, value uint16) error {
	frame, err := modbus.BuildWriteSingle(slave, addr, value)
	if err != nil {
		return err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	for attempt := 1; attempt <= w.attempts; attempt++ {
		doneC := w.arm(slave, addr, value)
		if err := w.sender.send(frame); err != nil {
			w.disarm()
			w.m.SetpointWrites.WithLabelValues("error").Inc()
			w.logger.Error("setpoint write send failed",
				zap.Uint8("slave", slave),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		w.m.WriteAttempts.Inc()

		select {
		case <-doneC:
			snap, became := w.reg.ApplyWrite(slave, addr, modbus.Signed(value), time.Now())
			w.m.SetpointWrites.WithLabelValues("ok").Inc()
			w.logger.Info("setpoint write confirmed",
				zap.Uint8("slave", slave),
				zap.Uint16("addr", addr),
				zap.Uint16("value", value),
				zap.Int("attempt", attempt))
			if became {
				w.m.AvailabilityTransitions.WithLabelValues("available").Inc()
				w.m.SlavesAvailable.Set(float64(w.reg.AvailableCount()))
				w.sink.OnAvailabilityChanged(slave, true)
			}
			w.sink.OnSlaveUpdated(slave, snap)
			return nil
		case <-ctx.Done():
			w.disarm()
			w.m.SetpointWrites.WithLabelValues("canceled").Inc()
			return ctx.Err()
		case <-time.After(w.echoWait):
			w.disarm()
			w.logger.Warn("setpoint echo timeout",
				zap.Uint8("slave", slave),
				zap.Int("attempt", attempt))
		}
	}

	w.m.SetpointWrites.WithLabelValues("timeout").Inc()
	return ErrWriteTimeout
}

// claimEcho is called from the read loop for every write frame seen on
// the bus. It reports whether the frame matches the armed expectation.
func (w *WriteCommander) claimEcho(slave byte, addr, value uint16) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.want == nil {
		return false
	}
	if w.want.slave != slave || w.want.addr != addr || w.want.value != value {
		return false
	}
	close(w.want.doneC)
	w.want = nil
	return true
}

func (w *WriteCommander) arm(slave byte, addr, value uint16) chan struct{} {
	doneC := make(chan struct{})
	w.mu.Lock()
	w.want = &echoWant{slave: slave, addr: addr, value: value, doneC: doneC}
	w.mu.Unlock()
	return doneC
}

func (w *WriteCommander) disarm() {
	w.mu.Lock()
	w.want = nil
	w.mu.Unlock()
}
