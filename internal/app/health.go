package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/costea32/rdz-thermostats-monitor/internal/health"
	"github.com/costea32/rdz-thermostats-monitor/internal/monitor"
)

// NewHealthAggregator starts with the bridge checker; the optional
// stores add theirs as they come up.
func NewHealthAggregator(mon *monitor.Monitor) *health.Aggregator {
	return health.NewAggregator(
		health.NewBridgeChecker(mon),
	)
}

// RegisterHealthRoutes mounts the probe endpoints.
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}

// AddDatabaseChecker hooks the history pool into the aggregator.
func AddDatabaseChecker(aggregator *health.Aggregator, pool *pgxpool.Pool) {
	if pool != nil {
		aggregator.AddChecker(health.NewDatabaseChecker(pool))
	}
}
