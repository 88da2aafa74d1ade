package main

import (
	"flag"

	"go.uber.org/zap"

	"github.com/costea32/rdz-thermostats-monitor/internal/app/bootstrap"
	cfgpkg "github.com/costea32/rdz-thermostats-monitor/internal/config"
	"github.com/costea32/rdz-thermostats-monitor/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (falls back to $RDZ_CONFIG, then configs/example.yaml)")
	flag.Parse()

	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	if err := bootstrap.Run(cfg, log); err != nil {
		log.Fatal("monitor exited", zap.Error(err))
	}
}
