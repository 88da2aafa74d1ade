package registry

import (
	"testing"
	"time"
)

func TestApplyRegisters_Lands(t *testing.T) {
	r := New(0)
	now := time.Now()
	snap, became := r.ApplyRegisters(3, 165, []int16{10, 20, 30}, now)
	if !became {
		t.Fatalf("first sighting should transition to available")
	}
	if !snap.Available || !snap.LastSeen.Equal(now) {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Registers[165] != 10 || snap.Registers[166] != 20 || snap.Registers[167] != 30 {
		t.Fatalf("registers misplaced: %v", snap.Registers)
	}
	if _, became = r.ApplyRegisters(3, 165, []int16{11}, now.Add(time.Second)); became {
		t.Fatalf("second apply reported a transition")
	}
}

func TestApplyWrite_SingleRegister(t *testing.T) {
	r := New(0)
	now := time.Now()
	r.ApplyRegisters(1, 140, []int16{0, 0, 0, 0, 0}, now)
	snap, _ := r.ApplyWrite(1, 144, 215, now.Add(time.Second))
	if snap.Registers[144] != 215 {
		t.Fatalf("write not applied: %v", snap.Registers[144])
	}
	if snap.Registers[140] != 0 {
		t.Fatalf("unrelated register touched")
	}
}

func TestApplyCoils_Addressed(t *testing.T) {
	r := New(0)
	snap, _ := r.ApplyCoils(2, 1, []bool{true, false, true}, time.Now())
	if !snap.Coils[1] || snap.Coils[2] || !snap.Coils[3] {
		t.Fatalf("coils misplaced: %v", snap.Coils)
	}
}

func TestApplyClimate_Readings(t *testing.T) {
	r := New(0)
	snap, _ := r.ApplyClimate(2, 21.5, 45.0, time.Now())
	if snap.Temperature == nil || *snap.Temperature != 21.5 {
		t.Fatalf("temperature: %v", snap.Temperature)
	}
	if snap.Humidity == nil || *snap.Humidity != 45.0 {
		t.Fatalf("humidity: %v", snap.Humidity)
	}
}

func TestSweep_ExactlyOnePerTransition(t *testing.T) {
	r := New(5 * time.Minute)
	t0 := time.Now()
	r.ApplyRegisters(1, 165, []int16{1}, t0)
	r.ApplyRegisters(2, 165, []int16{2}, t0.Add(4*time.Minute))

	gone := r.Sweep(t0.Add(5*time.Minute + time.Second))
	if len(gone) != 1 || gone[0] != 1 {
		t.Fatalf("unexpected sweep result: %v", gone)
	}
	if gone = r.Sweep(t0.Add(6 * time.Minute)); len(gone) != 0 {
		t.Fatalf("second sweep repeated the transition: %v", gone)
	}

	// traffic brings the slave back, and the transition fires again
	if _, became := r.ApplyRegisters(1, 165, []int16{1}, t0.Add(7*time.Minute)); !became {
		t.Fatalf("reappearing slave should transition to available")
	}
	gone = r.Sweep(t0.Add(13 * time.Minute))
	if len(gone) != 2 {
		t.Fatalf("expected both slaves to expire: %v", gone)
	}
}

func TestSnapshot_DeepCopy(t *testing.T) {
	r := New(0)
	now := time.Now()
	r.ApplyRegisters(1, 165, []int16{7}, now)
	r.ApplyClimate(1, 20.0, 40.0, now)

	snap, ok := r.Snapshot(1)
	if !ok {
		t.Fatalf("slave missing")
	}
	snap.Registers[165] = 99
	*snap.Temperature = -1

	again, _ := r.Snapshot(1)
	if again.Registers[165] != 7 || *again.Temperature != 20.0 {
		t.Fatalf("snapshot aliases registry state: %+v", again)
	}
}

func TestSnapshots_SortedBySlave(t *testing.T) {
	r := New(0)
	now := time.Now()
	for _, id := range []byte{9, 3, 7} {
		r.ApplyRegisters(id, 165, []int16{1}, now)
	}
	snaps := r.Snapshots()
	if len(snaps) != 3 || snaps[0].SlaveID != 3 || snaps[1].SlaveID != 7 || snaps[2].SlaveID != 9 {
		t.Fatalf("unexpected order: %+v", snaps)
	}
}

func TestAvailableCount(t *testing.T) {
	r := New(time.Minute)
	t0 := time.Now()
	r.ApplyRegisters(1, 165, []int16{1}, t0)
	r.ApplyRegisters(2, 165, []int16{1}, t0)
	if n := r.AvailableCount(); n != 2 {
		t.Fatalf("count=%d", n)
	}
	r.Sweep(t0.Add(2 * time.Minute))
	if n := r.AvailableCount(); n != 0 {
		t.Fatalf("count after sweep=%d", n)
	}
}
