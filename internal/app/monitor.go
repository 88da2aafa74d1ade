package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/costea32/rdz-thermostats-monitor/internal/config"
	"github.com/costea32/rdz-thermostats-monitor/internal/metrics"
	"github.com/costea32/rdz-thermostats-monitor/internal/monitor"
	"github.com/costea32/rdz-thermostats-monitor/internal/notify"
	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

// NewRegistry builds the slave registry with the configured
// availability timeout.
func NewRegistry(cfg cfgpkg.MonitorConfig) *registry.Registry {
	return registry.New(cfg.AvailabilityTimeout)
}

// NewMonitor builds the bridge supervisor. Not started.
func NewMonitor(
	cfg cfgpkg.MonitorConfig,
	reg *registry.Registry,
	sink notify.Sink,
	appm *metrics.AppMetrics,
	logger *zap.Logger,
) *monitor.Monitor {
	return monitor.New(cfg, reg, sink, appm, logger)
}
