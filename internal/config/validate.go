package config

import (
	"fmt"
)

// At most three holding-register ranges beside the climate block, and
// read sizes that still fit a single RTU response frame.
const (
	maxRegisterRanges = 3
	maxRegisterCount  = 125
	maxCoilCount      = 2000
)

// Validate rejects configurations the monitor cannot run with. It
// only inspects; defaulting happens in Load and the constructors.
func Validate(cfg *Config) error {
	m := cfg.Monitor

	if m.Addr == "" {
		return fmt.Errorf("monitor.addr must not be empty")
	}

	if m.Climate.Count < 4 {
		return fmt.Errorf(
			"monitor.climate.count must be at least 4 (temperature and humidity words), got %d",
			m.Climate.Count,
		)
	}
	if m.Climate.Count > maxRegisterCount {
		return fmt.Errorf(
			"monitor.climate.count must be at most %d, got %d",
			maxRegisterCount, m.Climate.Count,
		)
	}

	if len(m.Registers) > maxRegisterRanges {
		return fmt.Errorf(
			"monitor.registers: at most %d register ranges are supported, got %d",
			maxRegisterRanges, len(m.Registers),
		)
	}

	// Holding-register reads share one pending-request keyspace keyed by
	// start address, so starts must be distinct across climate and ranges.
	starts := map[uint16]string{m.Climate.Start: "monitor.climate"}

	for i, r := range m.Registers {
		name := fmt.Sprintf("monitor.registers[%d]", i)
		if r.Count == 0 {
			return fmt.Errorf("%s.count must not be zero", name)
		}
		if r.Count > maxRegisterCount {
			return fmt.Errorf(
				"%s.count must be at most %d, got %d",
				name, maxRegisterCount, r.Count,
			)
		}
		if prev, exists := starts[r.Start]; exists {
			return fmt.Errorf(
				"register range collision: start=%d used by %s and %s",
				r.Start, prev, name,
			)
		}
		starts[r.Start] = name
	}

	if m.Coils.Count == 0 {
		return fmt.Errorf("monitor.coils.count must not be zero")
	}
	if m.Coils.Count > maxCoilCount {
		return fmt.Errorf(
			"monitor.coils.count must be at most %d, got %d",
			maxCoilCount, m.Coils.Count,
		)
	}

	if m.Write.Attempts < 1 {
		return fmt.Errorf("monitor.write.attempts must be at least 1, got %d", m.Write.Attempts)
	}
	if m.Write.EchoWait <= 0 {
		return fmt.Errorf("monitor.write.echoWait must be positive, got %s", m.Write.EchoWait)
	}

	return nil
}
