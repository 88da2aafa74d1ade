package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/costea32/rdz-thermostats-monitor/internal/config"
	"github.com/costea32/rdz-thermostats-monitor/internal/history"
	"github.com/costea32/rdz-thermostats-monitor/internal/notify"
)

// NewHistoryIfEnabled connects the history store and its recorder.
// Returns nils when the history section is disabled; a connection
// failure is a hard error because the operator asked for persistence.
func NewHistoryIfEnabled(
	ctx context.Context,
	cfg cfgpkg.HistoryConfig,
	observer notify.Observer,
	logger *zap.Logger,
) (*history.Store, *history.Recorder, error) {
	if !cfg.Enable {
		logger.Info("history is disabled, skipping initialization")
		return nil, nil, nil
	}

	store, err := history.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}

	recorder := history.NewRecorder(store, cfg.QueueSize, observer, logger)
	logger.Info("history store initialized")
	return store, recorder, nil
}
