package notify

import (
	"testing"

	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

type recordingSink struct {
	updates       []byte
	availability  []byte
	lastAvailable bool
}

func (r *recordingSink) OnSlaveUpdated(slaveID byte, _ registry.Snapshot) {
	r.updates = append(r.updates, slaveID)
}

func (r *recordingSink) OnAvailabilityChanged(slaveID byte, available bool) {
	r.availability = append(r.availability, slaveID)
	r.lastAvailable = available
}

type panickingSink struct{}

func (panickingSink) OnSlaveUpdated(byte, registry.Snapshot) { panic("boom") }
func (panickingSink) OnAvailabilityChanged(byte, bool)       { panic("boom") }

func TestFanout_DeliversToAll(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	f := NewFanout(nil, a, b)

	f.OnSlaveUpdated(3, registry.Snapshot{SlaveID: 3})
	f.OnAvailabilityChanged(5, false)

	for _, s := range []*recordingSink{a, b} {
		if len(s.updates) != 1 || s.updates[0] != 3 {
			t.Fatalf("updates not delivered: %v", s.updates)
		}
		if len(s.availability) != 1 || s.availability[0] != 5 || s.lastAvailable {
			t.Fatalf("availability not delivered: %v", s.availability)
		}
	}
}

func TestFanout_ContainsPanickingSink(t *testing.T) {
	a := &recordingSink{}
	f := NewFanout(nil, panickingSink{}, a)

	f.OnSlaveUpdated(1, registry.Snapshot{})
	f.OnAvailabilityChanged(1, true)

	if len(a.updates) != 1 || len(a.availability) != 1 {
		t.Fatalf("sibling sink starved: %+v", a)
	}
}
