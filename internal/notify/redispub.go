package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

const (
	redisSinkName       = "redis"
	defaultRedisChannel = "rdz:events"
	publishTimeout      = 5 * time.Second
)

// RedisSink publishes events as JSON on a pub/sub channel. Like the
// webhook sink it decouples callers from Redis through a bounded queue.
type RedisSink struct {
	client   *redis.Client
	channel  string
	queue    chan Event
	observer Observer
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisSink(client *redis.Client, channel string, queueSize int, observer Observer, logger *zap.Logger) *RedisSink {
	if channel == "" {
		channel = defaultRedisChannel
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if observer == nil {
		observer = NopObserver()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{
		client:   client,
		channel:  channel,
		queue:    make(chan Event, queueSize),
		observer: observer,
		logger:   logger,
	}
}

func (s *RedisSink) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.worker(ctx)
}

func (s *RedisSink) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *RedisSink) OnSlaveUpdated(slaveID byte, snap registry.Snapshot) {
	s.enqueue(updatedEvent(slaveID, snap))
}

func (s *RedisSink) OnAvailabilityChanged(slaveID byte, available bool) {
	s.enqueue(availabilityEvent(slaveID, available))
}

func (s *RedisSink) enqueue(ev Event) {
	select {
	case s.queue <- ev:
	default:
		s.observer.Record(redisSinkName, "dropped")
	}
}

func (s *RedisSink) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			s.publish(ctx, ev)
		}
	}
}

func (s *RedisSink) publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(&ev)
	if err != nil {
		s.observer.Record(redisSinkName, "failed")
		s.logger.Error("marshal event", zap.String("event_id", ev.EventID), zap.Error(err))
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.client.Publish(pubCtx, s.channel, data).Err(); err != nil {
		s.observer.Record(redisSinkName, "failed")
		s.logger.Warn("redis publish failed",
			zap.String("event_id", ev.EventID),
			zap.String("channel", s.channel),
			zap.Error(err))
		return
	}
	s.observer.Record(redisSinkName, "delivered")
}
