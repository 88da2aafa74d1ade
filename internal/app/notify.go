package app

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	cfgpkg "github.com/costea32/rdz-thermostats-monitor/internal/config"
	"github.com/costea32/rdz-thermostats-monitor/internal/metrics"
	"github.com/costea32/rdz-thermostats-monitor/internal/notify"
)

// NewNotifyObserver counts dropped sink events on the metric set.
func NewNotifyObserver(appm *metrics.AppMetrics) notify.Observer {
	return notify.ObserverFunc(func(sink, outcome string) {
		if outcome == "dropped" {
			appm.NotifyDropped.WithLabelValues(sink).Inc()
		}
	})
}

// NewWebhookSinkIfEnabled builds the signed webhook sink, or nil when
// the webhook section is disabled.
func NewWebhookSinkIfEnabled(cfg cfgpkg.WebhookConfig, observer notify.Observer, logger *zap.Logger) *notify.WebhookSink {
	if !cfg.Enable || cfg.URL == "" {
		logger.Info("webhook sink disabled (url empty or enable=false)")
		return nil
	}
	sink := notify.NewWebhookSink(notify.WebhookConfig{
		URL:       cfg.URL,
		APIKey:    cfg.APIKey,
		Secret:    cfg.Secret,
		Timeout:   cfg.Timeout,
		QueueSize: cfg.QueueSize,
		RateLimit: cfg.RateLimit,
	}, observer, logger)
	logger.Info("webhook sink initialized", zap.String("url", cfg.URL))
	return sink
}

// NewRedisSinkIfEnabled builds the redis publish sink, or nil when no
// client or channel is configured.
func NewRedisSinkIfEnabled(
	client *redis.Client,
	cfg cfgpkg.NotifyConfig,
	observer notify.Observer,
	logger *zap.Logger,
) *notify.RedisSink {
	if client == nil || cfg.RedisChannel == "" {
		logger.Info("redis sink disabled (no client or channel)")
		return nil
	}
	sink := notify.NewRedisSink(client, cfg.RedisChannel, cfg.QueueSize, observer, logger)
	logger.Info("redis sink initialized", zap.String("channel", cfg.RedisChannel))
	return sink
}
