package health

import (
	"context"
	"time"
)

// Status is a component health level.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"  // impaired but still serving
	StatusUnhealthy Status = "unhealthy" // cannot serve
)

// CheckResult is the outcome of one component probe.
type CheckResult struct {
	Status  Status                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Latency time.Duration          `json:"latency"`
}

// Checker probes one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}
