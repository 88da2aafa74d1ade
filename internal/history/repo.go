package history

import (
	"context"
)

// RecentReadings returns the newest register/coil changes for a slave,
// most recent first.
func (s *Store) RecentReadings(ctx context.Context, slave byte, limit int) ([]Reading, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	const q = `SELECT id, slave_id, address, value, coil, recorded_at
               FROM readings WHERE slave_id=$1
               ORDER BY recorded_at DESC, id DESC LIMIT $2`
	rows, err := s.Pool.Query(ctx, q, int16(slave), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Reading{}
	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.ID, &r.SlaveID, &r.Address, &r.Value, &r.Coil, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentClimate returns the newest climate readings for a slave, most
// recent first.
func (s *Store) RecentClimate(ctx context.Context, slave byte, limit int) ([]ClimateReading, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	const q = `SELECT id, slave_id, temperature, humidity, recorded_at
               FROM climate_readings WHERE slave_id=$1
               ORDER BY recorded_at DESC, id DESC LIMIT $2`
	rows, err := s.Pool.Query(ctx, q, int16(slave), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ClimateReading{}
	for rows.Next() {
		var c ClimateReading
		if err := rows.Scan(&c.ID, &c.SlaveID, &c.Temperature, &c.Humidity, &c.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
