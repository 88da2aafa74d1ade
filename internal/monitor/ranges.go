package monitor

import (
	cfgpkg "github.com/costea32/rdz-thermostats-monitor/internal/config"
	"github.com/costea32/rdz-thermostats-monitor/internal/modbus"
)

// TargetKind says how a correlated response is decoded and stored.
type TargetKind uint8

const (
	TargetClimate TargetKind = iota + 1
	TargetRegisters
	TargetCoils
)

func (k TargetKind) String() string {
	switch k {
	case TargetClimate:
		return "climate"
	case TargetRegisters:
		return "registers"
	case TargetCoils:
		return "coils"
	}
	return "unknown"
}

// Range is one monitored block of the bus: the PLC polls it with a
// fixed read request, and only exact matches of that request arm a
// pending entry.
type Range struct {
	Kind  TargetKind
	Start uint16
	Count uint16
}

// Function returns the function code the PLC reads this block with.
func (r Range) Function() byte {
	if r.Kind == TargetCoils {
		return modbus.FuncReadCoils
	}
	return modbus.FuncReadHolding
}

// expectBytes is the data byte count of the response this block's
// request produces.
func (r Range) expectBytes() int {
	if r.Kind == TargetCoils {
		return (int(r.Count) + 7) / 8
	}
	return int(r.Count) * 2
}

// RangeSet is the monitored bus geometry: the climate block, up to
// three holding-register ranges and one coil block.
type RangeSet struct {
	ranges []Range
}

func NewRangeSet(cfg cfgpkg.MonitorConfig) *RangeSet {
	rs := &RangeSet{ranges: make([]Range, 0, len(cfg.Registers)+2)}
	rs.ranges = append(rs.ranges, Range{Kind: TargetClimate, Start: cfg.Climate.Start, Count: cfg.Climate.Count})
	for _, r := range cfg.Registers {
		rs.ranges = append(rs.ranges, Range{Kind: TargetRegisters, Start: r.Start, Count: r.Count})
	}
	rs.ranges = append(rs.ranges, Range{Kind: TargetCoils, Start: cfg.Coils.Start, Count: cfg.Coils.Count})
	return rs
}

// Match finds the monitored range a read request addresses. Start and
// count must both match: a partial overlap is not the PLC's poll.
func (rs *RangeSet) Match(function byte, start, count uint16) (Range, bool) {
	for _, r := range rs.ranges {
		if r.Function() == function && r.Start == start && r.Count == count {
			return r, true
		}
	}
	return Range{}, false
}
