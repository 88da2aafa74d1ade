package app

import (
	"net/http"

	cfgpkg "github.com/costea32/rdz-thermostats-monitor/internal/config"
	"github.com/costea32/rdz-thermostats-monitor/internal/httpserver"
)

// NewHTTPServer builds the API server from configuration.
func NewHTTPServer(cfg cfgpkg.HTTPConfig, metricsPath string, metricsHandler http.Handler, readyFn func() bool) *httpserver.Server {
	return httpserver.New(cfg, metricsPath, metricsHandler, readyFn)
}
