package health

import (
	"context"
	"time"

	"github.com/costea32/rdz-thermostats-monitor/internal/monitor"
)

// BridgeChecker reports the serial bridge connection.
type BridgeChecker struct {
	mon *monitor.Monitor
}

func NewBridgeChecker(mon *monitor.Monitor) *BridgeChecker {
	return &BridgeChecker{mon: mon}
}

func (c *BridgeChecker) Name() string {
	return "bridge"
}

// Check maps the connection state: connected is healthy, a dial or
// redial in progress is degraded (the supervisor retries forever, so
// this usually heals itself), disconnected is unhealthy.
func (c *BridgeChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	state := c.mon.State()

	status := StatusHealthy
	message := "ok"

	switch state {
	case monitor.StateConnected:
		// healthy
	case monitor.StateConnecting, monitor.StateReconnecting:
		status = StatusDegraded
		message = "bridge connection in progress"
	default:
		status = StatusUnhealthy
		message = "bridge disconnected"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]interface{}{
			"state":            state.String(),
			"slaves_available": c.mon.Registry().AvailableCount(),
		},
		Latency: time.Since(start),
	}
}
