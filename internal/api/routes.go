package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/costea32/rdz-thermostats-monitor/internal/api/middleware"
	"github.com/costea32/rdz-thermostats-monitor/internal/history"
	"github.com/costea32/rdz-thermostats-monitor/internal/notify"
	"github.com/costea32/rdz-thermostats-monitor/internal/regmap"
	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

// Deps collects everything the API routes read from or write to.
// History, Recorder and Hub are optional; nil disables their routes.
type Deps struct {
	Registry         *registry.Registry
	Writer           SetpointWriter
	Names            *regmap.Map
	History          *history.Store
	Recorder         *history.Recorder
	Hub              *notify.Hub
	SetpointRegister uint16
}

// RegisterRoutes mounts the slave API under /api and the event stream
// under /ws.
func RegisterRoutes(r *gin.Engine, deps Deps, authCfg middleware.AuthConfig, logger *zap.Logger) {
	if r == nil || deps.Registry == nil {
		return
	}

	handler := NewHandler(deps, logger)

	api := r.Group("/api")
	api.Use(middleware.CORS())
	if authCfg.Enabled {
		api.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	api.GET("/slaves", handler.ListSlaves)
	api.GET("/slaves/:id", handler.GetSlave)
	api.GET("/slaves/:id/registers", handler.GetSlaveRegisters)
	api.GET("/slaves/:id/coils", handler.GetSlaveCoils)
	api.POST("/slaves/:id/setpoint", handler.WriteSetpoint)
	api.GET("/slaves/:id/history", handler.GetSlaveHistory)

	if deps.Hub != nil {
		r.GET("/ws", gin.WrapH(deps.Hub))
	}

	logger.Info("api routes registered", zap.Int("endpoints", 6))
}
