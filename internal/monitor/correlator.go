package monitor

import (
	"time"

	"go.uber.org/zap"

	"github.com/costea32/rdz-thermostats-monitor/internal/metrics"
	"github.com/costea32/rdz-thermostats-monitor/internal/modbus"
	"github.com/costea32/rdz-thermostats-monitor/internal/notify"
	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

const DefaultPendingTTL = 5 * time.Second

// Climate block word positions. Values are signed and scaled by 10.
const (
	climateTemperatureWord = 2
	climateHumidityWord    = 3
)

// Label values on the correlation miss counter.
const (
	missUnknownRange   = "unknown_range"
	missNoRequest      = "no_request"
	missLengthMismatch = "length_mismatch"
	missUnarmedWrite   = "unarmed_write"
)

// pendingKey identifies an outstanding read request. The PLC polls
// each block serially, so slave, function and start address name one
// request; a repeated poll simply replaces the entry.
type pendingKey struct {
	slave    byte
	function byte
	start    uint16
}

type pendingRequest struct {
	rng    Range
	expect int // response data byte count implied by the request
	at     time.Time
}

// Correlator pairs observed responses with the requests that caused
// them and applies decoded payloads to the registry. It runs on the
// read loop goroutine only, so the pending table needs no lock.
type Correlator struct {
	ranges *RangeSet
	reg    *registry.Registry
	sink   notify.Sink
	m      *metrics.AppMetrics
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time

	// onEcho lets an armed setpoint write claim a write echo. Write
	// frames nobody armed are counted and dropped: passive state
	// never changes on a write frame alone.
	onEcho func(slave byte, addr, value uint16) bool

	pending map[pendingKey]*pendingRequest
}

func NewCorrelator(ranges *RangeSet, reg *registry.Registry, sink notify.Sink, m *metrics.AppMetrics, logger *zap.Logger, ttl time.Duration) *Correlator {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
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
	return &Correlator{
		ranges:  ranges,
		reg:     reg,
		sink:    sink,
		m:       m,
		logger:  logger,
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[pendingKey]*pendingRequest),
	}
}

// Handle routes one decoded frame.
func (c *Correlator) Handle(f modbus.Frame) {
	switch f.Kind {
	case modbus.KindReadRequest:
		c.handleRequest(f)
	case modbus.KindReadResponse:
		c.handleResponse(f)
	case modbus.KindWriteSingle:
		c.handleWrite(f)
	}
}

func (c *Correlator) handleRequest(f modbus.Frame) {
	start, count, err := f.ReadParams()
	if err != nil {
		return
	}
	rng, ok := c.ranges.Match(f.Function, start, count)
	if !ok {
		c.m.CorrelationMisses.WithLabelValues(missUnknownRange).Inc()
		c.logger.Debug("request outside monitored ranges",
			zap.Uint8("slave", f.Slave),
			zap.Uint8("function", f.Function),
			zap.Uint16("start", start),
			zap.Uint16("count", count))
		return
	}
	now := c.now()
	c.expire(now)
	key := pendingKey{slave: f.Slave, function: f.Function, start: start}
	c.pending[key] = &pendingRequest{rng: rng, expect: rng.expectBytes(), at: now}
}

func (c *Correlator) handleResponse(f modbus.Frame) {
	bc, err := f.ByteCount()
	if err != nil {
		return
	}
	now := c.now()
	c.expire(now)

	// Responses carry no start address. Recover it from the oldest
	// live request for this slave and function whose expected size
	// matches the byte count.
	var bestKey pendingKey
	var best *pendingRequest
	sawPair := false
	for k, p := range c.pending {
		if k.slave != f.Slave || k.function != f.Function {
			continue
		}
		sawPair = true
		if p.expect != bc {
			continue
		}
		if best == nil || p.at.Before(best.at) {
			best, bestKey = p, k
		}
	}
	if best == nil {
		reason := missNoRequest
		if sawPair {
			reason = missLengthMismatch
		}
		c.m.CorrelationMisses.WithLabelValues(reason).Inc()
		c.logger.Debug("uncorrelated response",
			zap.Uint8("slave", f.Slave),
			zap.Uint8("function", f.Function),
			zap.Int("byte_count", bc),
			zap.String("reason", reason))
		return
	}
	delete(c.pending, bestKey)
	c.apply(f, best.rng, now)
}

func (c *Correlator) handleWrite(f modbus.Frame) {
	addr, value, err := f.WriteParams()
	if err != nil {
		return
	}
	if c.onEcho != nil && c.onEcho(f.Slave, addr, value) {
		return
	}
	c.m.CorrelationMisses.WithLabelValues(missUnarmedWrite).Inc()
	c.logger.Debug("write frame without armed command",
		zap.Uint8("slave", f.Slave),
		zap.Uint16("addr", addr),
		zap.Uint16("value", value))
}

// apply decodes the matched response per its range kind, stores it and
// emits the update signals. Availability comes first so consumers see
// a slave appear before its first data event.
func (c *Correlator) apply(f modbus.Frame, rng Range, now time.Time) {
	var snap registry.Snapshot
	var became bool
	switch rng.Kind {
	case TargetClimate:
		words, err := f.Words()
		if err != nil || len(words) <= climateHumidityWord {
			return
		}
		t := float64(modbus.Signed(words[climateTemperatureWord])) / 10
		h := float64(modbus.Signed(words[climateHumidityWord])) / 10
		snap, became = c.reg.ApplyClimate(f.Slave, t, h, now)
	case TargetRegisters:
		words, err := f.Words()
		if err != nil {
			return
		}
		values := make([]int16, len(words))
		for i, w := range words {
			values[i] = modbus.Signed(w)
		}
		snap, became = c.reg.ApplyRegisters(f.Slave, rng.Start, values, now)
	case TargetCoils:
		bits, err := f.Bits()
		if err != nil {
			return
		}
		if len(bits) > int(rng.Count) {
			bits = bits[:rng.Count]
		}
		snap, became = c.reg.ApplyCoils(f.Slave, rng.Start, bits, now)
	default:
		return
	}

	c.m.Correlations.WithLabelValues(rng.Kind.String()).Inc()
	if became {
		c.m.AvailabilityTransitions.WithLabelValues("available").Inc()
		c.m.SlavesAvailable.Set(float64(c.reg.AvailableCount()))
		c.sink.OnAvailabilityChanged(f.Slave, true)
	}
	c.sink.OnSlaveUpdated(f.Slave, snap)
}

func (c *Correlator) expire(now time.Time) {
	for k, p := range c.pending {
		if now.Sub(p.at) > c.ttl {
			delete(c.pending, k)
		}
	}
}
