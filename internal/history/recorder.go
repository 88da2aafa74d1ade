package history

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/costea32/rdz-thermostats-monitor/internal/notify"
	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

const (
	recorderSinkName = "history"
	insertTimeout    = 10 * time.Second
)

type jobKind uint8

const (
	jobSnapshot jobKind = iota + 1
	jobAvailability
	jobSetpoint
)

type job struct {
	kind      jobKind
	snap      registry.Snapshot
	slave     byte
	available bool
	write     SetpointWrite
	at        time.Time
}

// recorded is the last state written for one slave; the worker diffs
// incoming snapshots against it so only changes become rows.
type recorded struct {
	registers   map[uint16]int16
	coils       map[uint16]bool
	temperature *float64
	humidity    *float64
}

// Recorder consumes monitor notifications and appends them to the
// history tables from its own worker goroutine. The monitor's read
// loop never touches the database.
type Recorder struct {
	store    *Store
	queue    chan job
	observer notify.Observer
	logger   *zap.Logger

	last map[byte]*recorded // worker goroutine only

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRecorder(store *Store, queueSize int, observer notify.Observer, logger *zap.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = 512
	}
	if observer == nil {
		observer = notify.NopObserver()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:    store,
		queue:    make(chan job, queueSize),
		observer: observer,
		logger:   logger,
		last:     make(map[byte]*recorded),
	}
}

// Start launches the insert worker. Close stops it and waits.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.worker(ctx)
}

func (r *Recorder) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Recorder) OnSlaveUpdated(slaveID byte, snap registry.Snapshot) {
	r.enqueue(job{kind: jobSnapshot, snap: snap})
}

func (r *Recorder) OnAvailabilityChanged(slaveID byte, available bool) {
	r.enqueue(job{kind: jobAvailability, slave: slaveID, available: available, at: time.Now()})
}

// RecordSetpoint appends one setpoint write attempt outcome. Called by
// the API layer after the commander reports.
func (r *Recorder) RecordSetpoint(slave byte, addr uint16, value int16, confirmed bool) {
	r.enqueue(job{kind: jobSetpoint, write: SetpointWrite{
		SlaveID:    int16(slave),
		Address:    int32(addr),
		Value:      value,
		Confirmed:  confirmed,
		RecordedAt: time.Now(),
	}})
}

func (r *Recorder) enqueue(j job) {
	select {
	case r.queue <- j:
	default:
		r.observer.Record(recorderSinkName, "dropped")
		r.logger.Warn("history queue full, observation dropped")
	}
}

func (r *Recorder) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.queue:
			r.handle(ctx, j)
		}
	}
}

func (r *Recorder) handle(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	var err error
	switch j.kind {
	case jobSnapshot:
		err = r.recordSnapshot(ctx, j.snap)
	case jobAvailability:
		err = r.store.insertAvailability(ctx, AvailabilityEvent{
			SlaveID:    int16(j.slave),
			Available:  j.available,
			RecordedAt: j.at,
		})
	case jobSetpoint:
		err = r.store.insertSetpointWrite(ctx, j.write)
	}
	if err != nil {
		r.observer.Record(recorderSinkName, "failed")
		r.logger.Warn("history insert failed", zap.Error(err))
		return
	}
	r.observer.Record(recorderSinkName, "delivered")
}

func (r *Recorder) recordSnapshot(ctx context.Context, snap registry.Snapshot) error {
	prev := r.last[snap.SlaveID]
	rows := diffReadings(prev, snap)
	if len(rows) > 0 {
		if err := r.store.copyReadings(ctx, rows); err != nil {
			return err
		}
	}
	if climateChanged(prev, snap) {
		err := r.store.insertClimate(ctx, ClimateReading{
			SlaveID:     int16(snap.SlaveID),
			Temperature: *snap.Temperature,
			Humidity:    *snap.Humidity,
			RecordedAt:  snap.LastSeen,
		})
		if err != nil {
			return err
		}
	}
	r.last[snap.SlaveID] = remember(snap)
	return nil
}

// diffReadings lists the register and coil values in snap that differ
// from prev. A nil prev yields every value, ordered registers first.
func diffReadings(prev *recorded, snap registry.Snapshot) []Reading {
	var rows []Reading
	for addr, v := range snap.Registers {
		if prev != nil {
			if old, ok := prev.registers[addr]; ok && old == v {
				continue
			}
		}
		rows = append(rows, Reading{
			SlaveID:    int16(snap.SlaveID),
			Address:    int32(addr),
			Value:      v,
			RecordedAt: snap.LastSeen,
		})
	}
	for addr, b := range snap.Coils {
		if prev != nil {
			if old, ok := prev.coils[addr]; ok && old == b {
				continue
			}
		}
		v := int16(0)
		if b {
			v = 1
		}
		rows = append(rows, Reading{
			SlaveID:    int16(snap.SlaveID),
			Address:    int32(addr),
			Value:      v,
			Coil:       true,
			RecordedAt: snap.LastSeen,
		})
	}
	return rows
}

func climateChanged(prev *recorded, snap registry.Snapshot) bool {
	if snap.Temperature == nil || snap.Humidity == nil {
		return false
	}
	if prev == nil || prev.temperature == nil || prev.humidity == nil {
		return true
	}
	return *prev.temperature != *snap.Temperature || *prev.humidity != *snap.Humidity
}

func remember(snap registry.Snapshot) *recorded {
	st := &recorded{
		registers:   make(map[uint16]int16, len(snap.Registers)),
		coils:       make(map[uint16]bool, len(snap.Coils)),
		temperature: snap.Temperature,
		humidity:    snap.Humidity,
	}
	for k, v := range snap.Registers {
		st.registers[k] = v
	}
	for k, v := range snap.Coils {
		st.coils[k] = v
	}
	return st
}

// copyReadings batch-inserts reading rows with the COPY protocol.
func (s *Store) copyReadings(ctx context.Context, rows []Reading) error {
	src := make([][]any, len(rows))
	for i, r := range rows {
		src[i] = []any{r.SlaveID, r.Address, r.Value, r.Coil, r.RecordedAt}
	}
	_, err := s.Pool.CopyFrom(ctx,
		pgx.Identifier{"readings"},
		[]string{"slave_id", "address", "value", "coil", "recorded_at"},
		pgx.CopyFromRows(src),
	)
	return err
}

func (s *Store) insertClimate(ctx context.Context, c ClimateReading) error {
	const q = `INSERT INTO climate_readings (slave_id, temperature, humidity, recorded_at)
               VALUES ($1,$2,$3,$4)`
	_, err := s.Pool.Exec(ctx, q, c.SlaveID, c.Temperature, c.Humidity, c.RecordedAt)
	return err
}

func (s *Store) insertAvailability(ctx context.Context, ev AvailabilityEvent) error {
	const q = `INSERT INTO availability_log (slave_id, available, recorded_at)
               VALUES ($1,$2,$3)`
	_, err := s.Pool.Exec(ctx, q, ev.SlaveID, ev.Available, ev.RecordedAt)
	return err
}

func (s *Store) insertSetpointWrite(ctx context.Context, w SetpointWrite) error {
	const q = `INSERT INTO setpoint_writes (slave_id, address, value, confirmed, recorded_at)
               VALUES ($1,$2,$3,$4,$5)`
	_, err := s.Pool.Exec(ctx, q, w.SlaveID, w.Address, w.Value, w.Confirmed, w.RecordedAt)
	return err
}
