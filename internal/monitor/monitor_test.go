package monitor

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/costea32/rdz-thermostats-monitor/internal/config"
	"github.com/costea32/rdz-thermostats-monitor/internal/metrics"
	"github.com/costea32/rdz-thermostats-monitor/internal/modbus"
	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func rawReadReq(t *testing.T, slave, function byte, start, count uint16) []byte {
	t.Helper()
	raw, err := modbus.BuildReadRequest(slave, function, start, count)
	require.NoError(t, err)
	return raw
}

func rawHoldingResp(t *testing.T, slave byte, words ...uint16) []byte {
	t.Helper()
	raw := []byte{slave, modbus.FuncReadHolding, byte(len(words) * 2)}
	for _, w := range words {
		raw = binary.BigEndian.AppendUint16(raw, w)
	}
	return modbus.AppendChecksum(raw)
}

// holdConn keeps the bridge side of a connection alive until the test
// ends, so the monitor sees an idle socket rather than a close.
func holdConn(t *testing.T) chan net.Conn {
	t.Helper()
	connC := make(chan net.Conn, 1)
	t.Cleanup(func() {
		select {
		case c := <-connC:
			_ = c.Close()
		default:
		}
	})
	return connC
}

func TestMonitor_ObservesScriptedTraffic(t *testing.T) {
	ln := listen(t)
	connC := holdConn(t)

	words := make([]uint16, 20)
	for i := range words {
		words[i] = uint16(i)
	}
	words[0] = 7
	payload := append(rawReadReq(t, 3, modbus.FuncReadHolding, 165, 20), rawHoldingResp(t, 3, words...)...)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write(payload)
		connC <- conn
	}()

	reg := registry.New(0)
	sink := &recordingSink{}
	cfg := testMonitorConfig()
	cfg.Addr = ln.Addr().String()
	mon := New(cfg, reg, sink, metrics.NewNop(), zap.NewNop())
	mon.Start(context.Background())
	defer mon.Stop()

	waitFor(t, 2*time.Second, func() bool { return sink.updateCount() >= 1 })

	snap, ok := reg.Snapshot(3)
	require.True(t, ok)
	require.True(t, snap.Available)
	require.Equal(t, int16(7), snap.Registers[165])
	require.Equal(t, int16(19), snap.Registers[184])
	require.Equal(t, 1, sink.updateCount())
	av := sink.availEvents()
	require.Len(t, av, 1)
	require.Equal(t, availEvent{slave: 3, available: true}, av[0])
}

func TestMonitor_WriteSetpointEchoedOverBridge(t *testing.T) {
	ln := listen(t)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// echo everything back, as the addressed slave would
		buf := make([]byte, 64)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				if _, werr := conn.Write(buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	reg := registry.New(0)
	sink := &recordingSink{}
	cfg := testMonitorConfig()
	cfg.Addr = ln.Addr().String()
	cfg.Write = cfgpkg.WriteConfig{Attempts: 5, EchoWait: 2 * time.Second, SetpointRegister: 144}
	mon := New(cfg, reg, sink, metrics.NewNop(), zap.NewNop())
	mon.Start(context.Background())
	defer mon.Stop()

	waitFor(t, 2*time.Second, func() bool { return mon.Connected() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, mon.WriteSetpoint(ctx, 2, 21.5))

	snap, ok := reg.Snapshot(2)
	require.True(t, ok)
	require.Equal(t, int16(215), snap.Registers[144])
	require.True(t, snap.Available)
}

func TestMonitor_ReconnectsAfterConnectionLoss(t *testing.T) {
	ln := listen(t)
	connC := holdConn(t)

	payload := append(rawReadReq(t, 3, modbus.FuncReadHolding, 210, 8), rawHoldingResp(t, 3, 0, 0, 0, 0, 0, 0, 0, 1)...)

	go func() {
		// first connection dies immediately
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = conn.Close()
		// second one carries the traffic
		conn, err = ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write(payload)
		connC <- conn
	}()

	reg := registry.New(0)
	sink := &recordingSink{}
	cfg := testMonitorConfig()
	cfg.Addr = ln.Addr().String()
	cfg.RetryDelay = 30 * time.Millisecond
	m := metrics.NewNop()
	mon := New(cfg, reg, sink, m, zap.NewNop())
	mon.Start(context.Background())
	defer mon.Stop()

	waitFor(t, 3*time.Second, func() bool { return sink.updateCount() >= 1 })

	require.GreaterOrEqual(t, testutil.ToFloat64(m.Reconnects), 1.0)
	snap, ok := reg.Snapshot(3)
	require.True(t, ok)
	require.Equal(t, int16(1), snap.Registers[217])
}

func TestMonitor_AvailabilityTimeoutSweep(t *testing.T) {
	ln := listen(t)
	connC := holdConn(t)

	payload := append(rawReadReq(t, 3, modbus.FuncReadHolding, 210, 8), rawHoldingResp(t, 3, make([]uint16, 8)...)...)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write(payload)
		connC <- conn // traffic stops, the socket stays up
	}()

	reg := registry.New(60 * time.Millisecond)
	sink := &recordingSink{}
	cfg := testMonitorConfig()
	cfg.Addr = ln.Addr().String()
	cfg.SweepInterval = 20 * time.Millisecond
	mon := New(cfg, reg, sink, metrics.NewNop(), zap.NewNop())
	mon.Start(context.Background())
	defer mon.Stop()

	waitFor(t, 2*time.Second, func() bool { return sink.updateCount() >= 1 })
	waitFor(t, 2*time.Second, func() bool {
		for _, ev := range sink.availEvents() {
			if !ev.available {
				return true
			}
		}
		return false
	})

	av := sink.availEvents()
	require.Len(t, av, 2)
	require.Equal(t, availEvent{slave: 3, available: true}, av[0])
	require.Equal(t, availEvent{slave: 3, available: false}, av[1])
	snap, _ := reg.Snapshot(3)
	require.False(t, snap.Available)
}

func TestMonitor_WriteWithoutConnection(t *testing.T) {
	cfg := testMonitorConfig()
	mon := New(cfg, registry.New(0), &recordingSink{}, metrics.NewNop(), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := mon.WriteSetpoint(ctx, 2, 21.5)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestMonitor_StopClosesConnection(t *testing.T) {
	ln := listen(t)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// hold the connection silently until the monitor drops it
		buf := make([]byte, 16)
		_, _ = conn.Read(buf)
		_ = conn.Close()
	}()

	cfg := testMonitorConfig()
	cfg.Addr = ln.Addr().String()
	mon := New(cfg, registry.New(0), &recordingSink{}, metrics.NewNop(), zap.NewNop())
	mon.Start(context.Background())

	waitFor(t, 2*time.Second, func() bool { return mon.Connected() })

	done := make(chan struct{})
	go func() {
		mon.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return")
	}
	require.Equal(t, StateDisconnected, mon.State())
}
