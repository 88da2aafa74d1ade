// Package registry holds the last observed state of every thermostat
// slave seen on the bus: decoded holding registers, coil states, the
// derived climate readings and an availability flag driven by traffic.
package registry

import (
	"sort"
	"sync"
	"time"
)

const DefaultTimeout = 5 * time.Minute

// Snapshot is a deep copy of one slave's state, safe to hand to
// consumers while the registry keeps mutating.
type Snapshot struct {
	SlaveID     byte             `json:"slaveId"`
	Registers   map[uint16]int16 `json:"registers"`
	Coils       map[uint16]bool  `json:"coils"`
	Temperature *float64         `json:"temperature,omitempty"`
	Humidity    *float64         `json:"humidity,omitempty"`
	LastSeen    time.Time        `json:"lastSeen"`
	Available   bool             `json:"available"`
}

type slaveState struct {
	registers   map[uint16]int16
	coils       map[uint16]bool
	temperature *float64
	humidity    *float64
	lastSeen    time.Time
	available   bool
}

// Registry tracks slave state under one lock so that every applied
// frame lands atomically and readers always see a consistent snapshot.
type Registry struct {
	mu      sync.RWMutex
	slaves  map[byte]*slaveState
	timeout time.Duration
}

func New(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{slaves: make(map[byte]*slaveState), timeout: timeout}
}

func (r *Registry) state(slave byte) *slaveState {
	st, ok := r.slaves[slave]
	if !ok {
		st = &slaveState{
			registers: make(map[uint16]int16),
			coils:     make(map[uint16]bool),
		}
		r.slaves[slave] = st
	}
	return st
}

// touch refreshes lastSeen and reports whether the slave just became
// available. A slave seen for the first time counts as a transition.
func (st *slaveState) touch(at time.Time) bool {
	st.lastSeen = at
	if st.available {
		return false
	}
	st.available = true
	return true
}

// ApplyRegisters stores a decoded holding-register block starting at
// start. The whole block lands under one lock acquisition.
func (r *Registry) ApplyRegisters(slave byte, start uint16, values []int16, at time.Time) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state(slave)
	for i, v := range values {
		st.registers[start+uint16(i)] = v
	}
	became := st.touch(at)
	return st.snapshot(slave), became
}

// ApplyCoils stores a decoded coil block starting at start.
func (r *Registry) ApplyCoils(slave byte, start uint16, bits []bool, at time.Time) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state(slave)
	for i, b := range bits {
		st.coils[start+uint16(i)] = b
	}
	became := st.touch(at)
	return st.snapshot(slave), became
}

// ApplyClimate stores the scaled temperature and humidity readings.
func (r *Registry) ApplyClimate(slave byte, temperature, humidity float64, at time.Time) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state(slave)
	t, h := temperature, humidity
	st.temperature = &t
	st.humidity = &h
	became := st.touch(at)
	return st.snapshot(slave), became
}

// ApplyWrite stores a single register observed in a write frame.
func (r *Registry) ApplyWrite(slave byte, addr uint16, value int16, at time.Time) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state(slave)
	st.registers[addr] = value
	became := st.touch(at)
	return st.snapshot(slave), became
}

// Snapshot returns a deep copy of one slave's state.
func (r *Registry) Snapshot(slave byte) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.slaves[slave]
	if !ok {
		return Snapshot{}, false
	}
	return st.snapshot(slave), true
}

// Snapshots returns all known slaves ordered by slave id.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.slaves))
	for id, st := range r.slaves {
		out = append(out, st.snapshot(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlaveID < out[j].SlaveID })
	return out
}

// Sweep marks every slave silent for longer than the timeout as
// unavailable and returns the ids that transitioned on this call.
func (r *Registry) Sweep(now time.Time) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var gone []byte
	for id, st := range r.slaves {
		if st.available && now.Sub(st.lastSeen) > r.timeout {
			st.available = false
			gone = append(gone, id)
		}
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i] < gone[j] })
	return gone
}

// AvailableCount reports how many slaves are currently available.
func (r *Registry) AvailableCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, st := range r.slaves {
		if st.available {
			n++
		}
	}
	return n
}

func (st *slaveState) snapshot(id byte) Snapshot {
	snap := Snapshot{
		SlaveID:   id,
		Registers: make(map[uint16]int16, len(st.registers)),
		Coils:     make(map[uint16]bool, len(st.coils)),
		LastSeen:  st.lastSeen,
		Available: st.available,
	}
	for k, v := range st.registers {
		snap.Registers[k] = v
	}
	for k, v := range st.coils {
		snap.Coils[k] = v
	}
	if st.temperature != nil {
		t := *st.temperature
		snap.Temperature = &t
	}
	if st.humidity != nil {
		h := *st.humidity
		snap.Humidity = &h
	}
	return snap
}
