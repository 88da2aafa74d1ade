package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/costea32/rdz-thermostats-monitor/internal/history"
	"github.com/costea32/rdz-thermostats-monitor/internal/monitor"
	"github.com/costea32/rdz-thermostats-monitor/internal/regmap"
	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

// Setpoint bounds accepted by the API, degrees C. The commander only
// rejects values that cannot be scaled onto the wire; the API is
// stricter so a typo cannot ask a room for 300 degrees.
const (
	minSetpointC = 0
	maxSetpointC = 50
)

// heatingRegister holds 1 while the thermostat calls for heat.
const heatingRegister = 211

// SetpointWriter is the one active operation the API may perform on
// the bus. Satisfied by the monitor.
type SetpointWriter interface {
	WriteSetpoint(ctx context.Context, slave byte, temperature float64) error
}

// Handler answers read queries from the slave registry and forwards
// setpoint writes to the commander.
type Handler struct {
	reg         *registry.Registry
	writer      SetpointWriter
	names       *regmap.Map
	store       *history.Store
	recorder    *history.Recorder
	setpointReg uint16
	logger      *zap.Logger
}

func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	names := deps.Names
	if names == nil {
		names = regmap.Default()
	}
	setpointReg := deps.SetpointRegister
	if setpointReg == 0 {
		setpointReg = monitor.DefaultSetpointRegister
	}
	return &Handler{
		reg:         deps.Registry,
		writer:      deps.Writer,
		names:       names,
		store:       deps.History,
		recorder:    deps.Recorder,
		setpointReg: setpointReg,
		logger:      logger,
	}
}

// slaveView is a snapshot with the climate semantics decoded: the
// setpoint register scaled back to degrees and the heating flag.
type slaveView struct {
	registry.Snapshot
	Setpoint *float64 `json:"setpoint,omitempty"`
	Heating  *bool    `json:"heating,omitempty"`
}

func (h *Handler) view(snap registry.Snapshot) slaveView {
	v := slaveView{Snapshot: snap}
	if raw, ok := snap.Registers[h.setpointReg]; ok {
		sp := float64(raw) / 10
		v.Setpoint = &sp
	}
	if raw, ok := snap.Registers[heatingRegister]; ok {
		heating := raw == 1
		v.Heating = &heating
	}
	return v
}

// ListSlaves returns every slave seen on the bus.
func (h *Handler) ListSlaves(c *gin.Context) {
	snaps := h.reg.Snapshots()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].SlaveID < snaps[j].SlaveID })

	views := make([]slaveView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, h.view(snap))
	}
	c.JSON(http.StatusOK, gin.H{"slaves": views, "count": len(views)})
}

// GetSlave returns one slave snapshot.
func (h *Handler) GetSlave(c *gin.Context) {
	slave, ok := h.slaveParam(c)
	if !ok {
		return
	}
	snap, ok := h.reg.Snapshot(slave)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown slave"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slave": h.view(snap)})
}

type registerView struct {
	Address uint16 `json:"address"`
	Value   int16  `json:"value"`
	Name    string `json:"name,omitempty"`
}

// GetSlaveRegisters returns the holding registers observed for one
// slave, annotated with their configured labels.
func (h *Handler) GetSlaveRegisters(c *gin.Context) {
	slave, ok := h.slaveParam(c)
	if !ok {
		return
	}
	snap, ok := h.reg.Snapshot(slave)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown slave"})
		return
	}

	views := make([]registerView, 0, len(snap.Registers))
	for addr, value := range snap.Registers {
		rv := registerView{Address: addr, Value: value}
		if name, ok := h.names.Name(addr); ok {
			rv.Name = name
		}
		views = append(views, rv)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Address < views[j].Address })

	c.JSON(http.StatusOK, gin.H{"slaveId": slave, "registers": views, "count": len(views)})
}

type coilView struct {
	Address uint16 `json:"address"`
	Value   bool   `json:"value"`
}

// GetSlaveCoils returns the coil states observed for one slave.
func (h *Handler) GetSlaveCoils(c *gin.Context) {
	slave, ok := h.slaveParam(c)
	if !ok {
		return
	}
	snap, ok := h.reg.Snapshot(slave)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown slave"})
		return
	}

	views := make([]coilView, 0, len(snap.Coils))
	for addr, value := range snap.Coils {
		views = append(views, coilView{Address: addr, Value: value})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Address < views[j].Address })

	c.JSON(http.StatusOK, gin.H{"slaveId": slave, "coils": views, "count": len(views)})
}

type setpointRequest struct {
	Temperature *float64 `json:"temperature" binding:"required"`
}

// WriteSetpoint drives the single active operation: write the setpoint
// register and wait for the bus echo. The commander's outcome maps to
// the status code; an unconfirmed write is a gateway timeout because
// the value may still have been applied.
func (h *Handler) WriteSetpoint(c *gin.Context) {
	slave, ok := h.slaveParam(c)
	if !ok {
		return
	}

	var req setpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"temperature\": <number>}"})
		return
	}
	temperature := *req.Temperature
	if math.IsNaN(temperature) || temperature < minSetpointC || temperature > maxSetpointC {
		c.JSON(http.StatusBadRequest, gin.H{"error": "temperature out of range"})
		return
	}

	err := h.writer.WriteSetpoint(c.Request.Context(), slave, temperature)
	scaled := int16(math.Round(temperature * 10))

	switch {
	case err == nil:
		h.recordSetpoint(slave, scaled, true)
		h.logger.Info("setpoint write confirmed",
			zap.Uint8("slave", slave),
			zap.Float64("temperature", temperature),
		)
		c.JSON(http.StatusOK, gin.H{
			"status":      "confirmed",
			"slaveId":     slave,
			"temperature": temperature,
		})
	case errors.Is(err, monitor.ErrSetpointRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "temperature out of range"})
	case errors.Is(err, monitor.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bridge not connected"})
	case errors.Is(err, monitor.ErrWriteTimeout):
		h.recordSetpoint(slave, scaled, false)
		h.logger.Warn("setpoint write unconfirmed",
			zap.Uint8("slave", slave),
			zap.Float64("temperature", temperature),
		)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "write not confirmed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) recordSetpoint(slave byte, value int16, confirmed bool) {
	if h.recorder == nil {
		return
	}
	h.recorder.RecordSetpoint(slave, h.setpointReg, value, confirmed)
}

// GetSlaveHistory returns the recent recorded readings for one slave.
// Answers 404 while history is disabled.
func (h *Handler) GetSlaveHistory(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}
	slave, ok := h.slaveParam(c)
	if !ok {
		return
	}

	limit := 100
	if v := c.Query("limit"); v != "" {
		if vv, e := strconv.Atoi(v); e == nil {
			limit = vv
		}
	}

	ctx := c.Request.Context()
	readings, err := h.store.RecentReadings(ctx, slave, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	climate, err := h.store.RecentClimate(ctx, slave, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"slaveId":  slave,
		"readings": readings,
		"climate":  climate,
	})
}

// slaveParam parses the :id path segment. Slave ids live in 1..247;
// zero is the broadcast address and never a real slave.
func (h *Handler) slaveParam(c *gin.Context) (byte, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 8)
	if err != nil || id == 0 || id > 247 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slave id"})
		return 0, false
	}
	return byte(id), true
}
