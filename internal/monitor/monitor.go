// Package monitor owns the bridge connection. It dials the RS485/TCP
// bridge, walks the byte stream through the frame scanner into the
// correlator, sweeps slave availability, and carries setpoint writes
// over the same socket.
package monitor

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/costea32/rdz-thermostats-monitor/internal/config"
	"github.com/costea32/rdz-thermostats-monitor/internal/metrics"
	"github.com/costea32/rdz-thermostats-monitor/internal/modbus"
	"github.com/costea32/rdz-thermostats-monitor/internal/notify"
	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

var (
	ErrNotConnected = errors.New("bridge not connected")
	ErrWriteTimeout = errors.New("write not confirmed by echo")
)

const (
	DefaultDialTimeout   = 30 * time.Second
	DefaultReadTimeout   = 30 * time.Second
	DefaultRetryDelay    = 30 * time.Second
	DefaultSweepInterval = 15 * time.Second

	readChunkSize = 4096
	writeDeadline = 5 * time.Second
)

// ConnState is the bridge connection lifecycle, exported on the
// connection-state gauge.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Monitor supervises one bridge connection for its whole life: dial,
// read, resynchronize, redial. There is no give-up path; the PLC side
// keeps polling whether we listen or not.
type Monitor struct {
	cfg    cfgpkg.MonitorConfig
	reg    *registry.Registry
	sink   notify.Sink
	m      *metrics.AppMetrics
	logger *zap.Logger

	scanner    *modbus.Scanner
	correlator *Correlator
	writer     *WriteCommander

	dial func(ctx context.Context, addr string) (net.Conn, error)

	mu    sync.Mutex // guards conn
	conn  net.Conn
	state atomic.Int32

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg cfgpkg.MonitorConfig, reg *registry.Registry, sink notify.Sink, m *metrics.AppMetrics, logger *zap.Logger) *Monitor {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if reg == nil {
		reg = registry.New(cfg.AvailabilityTimeout)
	}
	if sink == nil {
		sink = notify.NewFanout(nil)
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mon := &Monitor{
		cfg:     cfg,
		reg:     reg,
		sink:    sink,
		m:       m,
		logger:  logger,
		scanner: modbus.NewScanner(),
	}
	mon.correlator = NewCorrelator(NewRangeSet(cfg), reg, sink, m, logger, cfg.PendingTTL)
	mon.writer = newWriteCommander(mon, cfg.Write, reg, sink, m, logger)
	mon.correlator.onEcho = mon.writer.claimEcho
	mon.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: cfg.DialTimeout}
		return d.DialContext(ctx, "tcp", addr)
	}
	return mon
}

// Registry returns the slave registry the monitor feeds.
func (mon *Monitor) Registry() *registry.Registry { return mon.reg }

// Start launches the supervisor and sweep goroutines and returns
// immediately; the first dial happens on the supervisor goroutine.
func (mon *Monitor) Start(ctx context.Context) {
	ctx, mon.cancel = context.WithCancel(ctx)
	mon.wg.Add(2)
	go mon.run(ctx)
	go mon.sweepLoop(ctx)
}

// Stop cancels both loops and waits for them to exit. Cancellation
// closes the socket, which unblocks any in-flight read.
func (mon *Monitor) Stop() {
	if mon.cancel != nil {
		mon.cancel()
	}
	mon.wg.Wait()
}

// State reports the current connection state.
func (mon *Monitor) State() ConnState {
	return ConnState(mon.state.Load())
}

// Connected reports whether the bridge socket is up.
func (mon *Monitor) Connected() bool {
	return mon.State() == StateConnected
}

// WriteSetpoint writes temperature to the slave's setpoint register
// and waits for the bus echo. See WriteCommander.
func (mon *Monitor) WriteSetpoint(ctx context.Context, slave byte, temperature float64) error {
	return mon.writer.WriteSetpoint(ctx, slave, temperature)
}

// run dials and reads until the context ends. The first attempt is
// immediate; every later one waits out the retry delay first.
func (mon *Monitor) run(ctx context.Context) {
	defer mon.wg.Done()
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			mon.setState(StateReconnecting)
			mon.m.Reconnects.Inc()
			select {
			case <-ctx.Done():
				mon.setState(StateDisconnected)
				return
			case <-time.After(mon.cfg.RetryDelay):
			}
		}
		if ctx.Err() != nil {
			mon.setState(StateDisconnected)
			return
		}

		mon.setState(StateConnecting)
		conn, err := mon.dial(ctx, mon.cfg.Addr)
		if err != nil {
			mon.logger.Warn("bridge dial failed",
				zap.String("addr", mon.cfg.Addr),
				zap.Error(err))
			continue
		}

		// A partial frame must never bridge two connections.
		mon.scanner.Reset()
		mon.setConn(conn)
		mon.setState(StateConnected)
		mon.logger.Info("bridge connected",
			zap.String("addr", mon.cfg.Addr),
			zap.String("remote", conn.RemoteAddr().String()))

		// Close the socket on cancellation so the blocking read ends.
		readDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-readDone:
			}
		}()

		err = mon.readLoop(ctx, conn)
		close(readDone)
		mon.setConn(nil)
		_ = conn.Close()
		if ctx.Err() != nil {
			mon.setState(StateDisconnected)
			return
		}
		mon.logger.Warn("bridge connection lost", zap.Error(err))
	}
}

// readLoop pulls chunks off the socket and processes them. Any read
// error ends the connection, the deadline included: a healthy PLC
// polls continuously, so half a minute of silence means the path to
// the bus is gone.
func (mon *Monitor) readLoop(ctx context.Context, conn net.Conn) error {
	buf := make([]byte, readChunkSize)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(mon.cfg.ReadTimeout)); err != nil {
			return err
		}
		n, err := conn.Read(buf)
		if n > 0 {
			mon.m.BytesReceived.Add(float64(n))
			mon.process(buf[:n])
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// process feeds one chunk through the scanner and handles every frame
// it completes. A panic while applying a frame is contained and
// treated like stream noise.
func (mon *Monitor) process(chunk []byte) {
	defer func() {
		if r := recover(); r != nil {
			mon.logger.Error("frame processing panicked", zap.Any("panic", r))
		}
	}()
	frames, discarded := mon.scanner.Feed(chunk)
	if discarded > 0 {
		mon.m.ResyncDiscards.Add(float64(discarded))
		mon.logger.Debug("stream resync", zap.Int("discarded", discarded))
	}
	for _, f := range frames {
		mon.m.FramesTotal.WithLabelValues(functionLabel(f.Function)).Inc()
		mon.correlator.Handle(f)
	}
}

// sweepLoop drives the availability timeout.
func (mon *Monitor) sweepLoop(ctx context.Context) {
	defer mon.wg.Done()
	ticker := time.NewTicker(mon.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, id := range mon.reg.Sweep(now) {
				mon.m.AvailabilityTransitions.WithLabelValues("unavailable").Inc()
				mon.logger.Info("slave unavailable", zap.Uint8("slave", id))
				mon.sink.OnAvailabilityChanged(id, false)
			}
			mon.m.SlavesAvailable.Set(float64(mon.reg.AvailableCount()))
		}
	}
}

// send writes one frame to the bridge socket.
func (mon *Monitor) send(frame []byte) error {
	mon.mu.Lock()
	conn := mon.conn
	mon.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	_, err := conn.Write(frame)
	return err
}

func (mon *Monitor) setConn(conn net.Conn) {
	mon.mu.Lock()
	mon.conn = conn
	mon.mu.Unlock()
}

func (mon *Monitor) setState(s ConnState) {
	mon.state.Store(int32(s))
	mon.m.ConnectionState.Set(float64(s))
}

func functionLabel(fn byte) string {
	switch fn {
	case modbus.FuncReadCoils:
		return "read_coils"
	case modbus.FuncReadHolding:
		return "read_holding"
	case modbus.FuncWriteSingle:
		return "write_single"
	}
	return "other"
}
