// Package history persists monitor observations in PostgreSQL: register
// changes, climate readings, availability transitions and setpoint
// writes. The schema is owned by the gorm models below; the hot insert
// path runs on pgx directly.
package history

import (
	"time"
)

// Models declare every column explicitly so AutoMigrate and the pgx
// statements stay aligned. No gorm.Model, no implicit DeletedAt.

// Reading is one observed change of a holding register or coil.
// Coils are stored as 0/1 values at their coil address.
type Reading struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SlaveID    int16     `gorm:"column:slave_id;not null;index:idx_readings_slave_time,priority:1" json:"slaveId"`
	Address    int32     `gorm:"column:address;not null" json:"address"`
	Value      int16     `gorm:"column:value;not null" json:"value"`
	Coil       bool      `gorm:"column:coil;not null;default:false" json:"coil"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null;index:idx_readings_slave_time,priority:2,sort:desc" json:"recordedAt"`
}

func (Reading) TableName() string { return "readings" }

// ClimateReading is one observed temperature/humidity pair, already
// scaled to physical units.
type ClimateReading struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SlaveID     int16     `gorm:"column:slave_id;not null;index:idx_climate_slave_time,priority:1" json:"slaveId"`
	Temperature float64   `gorm:"column:temperature;not null" json:"temperature"`
	Humidity    float64   `gorm:"column:humidity;not null" json:"humidity"`
	RecordedAt  time.Time `gorm:"column:recorded_at;not null;index:idx_climate_slave_time,priority:2,sort:desc" json:"recordedAt"`
}

func (ClimateReading) TableName() string { return "climate_readings" }

// AvailabilityEvent is one availability transition.
type AvailabilityEvent struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SlaveID    int16     `gorm:"column:slave_id;not null;index" json:"slaveId"`
	Available  bool      `gorm:"column:available;not null" json:"available"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null" json:"recordedAt"`
}

func (AvailabilityEvent) TableName() string { return "availability_log" }

// SetpointWrite is one setpoint write command, confirmed or not.
type SetpointWrite struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SlaveID    int16     `gorm:"column:slave_id;not null;index" json:"slaveId"`
	Address    int32     `gorm:"column:address;not null" json:"address"`
	Value      int16     `gorm:"column:value;not null" json:"value"`
	Confirmed  bool      `gorm:"column:confirmed;not null" json:"confirmed"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null" json:"recordedAt"`
}

func (SetpointWrite) TableName() string { return "setpoint_writes" }
