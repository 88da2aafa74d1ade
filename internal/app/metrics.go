package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/costea32/rdz-thermostats-monitor/internal/metrics"
)

// NewMetrics builds the registry and the application metric set.
func NewMetrics() (*prometheus.Registry, *metrics.AppMetrics) {
	reg := metrics.NewRegistry()
	appm := metrics.NewAppMetrics(reg)
	return reg, appm
}
