// Package regmap maps holding-register addresses to the labels the RDZ
// documentation gives them. The map is configuration data loaded from a
// YAML file; unknown addresses simply have no label.
package regmap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Map holds register address -> label.
type Map struct {
	Registers map[uint16]string `yaml:"registers"`
}

// Default returns the register labels of the RDZ thermostat line.
func Default() *Map {
	return &Map{
		Registers: map[uint16]string{
			144: "Setpoint",
			145: "Max Setpoint",
			146: "Min Setpoint",
			154: "Hour",
			155: "Minute",
			156: "Day of week",
			157: "Current temperature",
			179: "Outside temperature",
			211: "Heating status",
		},
	}
}

// Load reads a register map file. An empty path yields the defaults.
func Load(path string) (*Map, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read register map: %w", err)
	}
	var m Map
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal register map: %w", err)
	}
	if m.Registers == nil {
		m.Registers = make(map[uint16]string)
	}
	return &m, nil
}

// Name returns the label of a register address, if it has one.
func (m *Map) Name(addr uint16) (string, bool) {
	if m == nil || m.Registers == nil {
		return "", false
	}
	v, ok := m.Registers[addr]
	return v, ok
}

// Merge overlays another map's labels onto this one.
func (m *Map) Merge(other *Map) {
	if m == nil || m.Registers == nil || other == nil || other.Registers == nil {
		return
	}
	for k, v := range other.Registers {
		m.Registers[k] = v
	}
}
