package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

// Pusher delivers signed JSON payloads to a webhook endpoint with
// bounded retries on 5xx and network errors.
type Pusher struct {
	Client  *http.Client
	APIKey  string
	Secret  string
	Retries int
	Backoff []time.Duration
}

func NewPusher(client *http.Client, apiKey, secret string) *Pusher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Pusher{
		Client:  client,
		APIKey:  apiKey,
		Secret:  secret,
		Retries: 5,
		Backoff: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second},
	}
}

// SendJSON posts payload to endpoint with the signature headers. Each
// attempt rebuilds the request so retries carry a fresh body.
func (p *Pusher) SendJSON(ctx context.Context, endpoint string, payload any) (int, []byte, error) {
	if p == nil || p.Client == nil {
		return 0, nil, errors.New("nil pusher")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return 0, nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	ts := time.Now().Unix()
	nonce := fmt.Sprintf("%08x", rand.Uint32())
	canonical := buildCanonical(http.MethodPost, u.Path, ts, nonce, hashHex(body))
	sig := SignHMAC(p.Secret, canonical)

	var respBody []byte
	var code int
	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", p.APIKey)
		req.Header.Set("X-Signature", sig)
		req.Header.Set("X-Timestamp", fmt.Sprintf("%d", ts))
		req.Header.Set("X-Nonce", nonce)

		resp, err := p.Client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			code = resp.StatusCode
			rb, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			respBody = rb
			if code >= 200 && code < 300 {
				return code, respBody, nil
			}
			// retry only on 5xx
			if code < 500 {
				return code, respBody, nil
			}
		}
		if attempt == p.Retries {
			break
		}
		backoff := p.Backoff[min(attempt, len(p.Backoff)-1)]
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	if lastErr != nil {
		return 0, nil, lastErr
	}
	return code, respBody, fmt.Errorf("http %d", code)
}

const webhookSinkName = "webhook"

// WebhookSink queues events and delivers them from a worker goroutine,
// paced by a rate limiter, so callers never wait on HTTP.
type WebhookSink struct {
	pusher   *Pusher
	endpoint string
	limiter  *rate.Limiter
	queue    chan Event
	observer Observer
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	URL       string
	APIKey    string
	Secret    string
	Timeout   time.Duration
	QueueSize int
	RateLimit float64 // deliveries per second, 0 = unlimited
}

func NewWebhookSink(cfg WebhookConfig, observer Observer, logger *zap.Logger) *WebhookSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if observer == nil {
		observer = NopObserver()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookSink{
		pusher:   NewPusher(&http.Client{Timeout: cfg.Timeout}, cfg.APIKey, cfg.Secret),
		endpoint: cfg.URL,
		limiter:  rate.NewLimiter(limit, 1),
		queue:    make(chan Event, cfg.QueueSize),
		observer: observer,
		logger:   logger,
	}
}

// Start launches the delivery worker. Close stops it and waits.
func (s *WebhookSink) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.worker(ctx)
}

func (s *WebhookSink) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *WebhookSink) OnSlaveUpdated(slaveID byte, snap registry.Snapshot) {
	s.enqueue(updatedEvent(slaveID, snap))
}

func (s *WebhookSink) OnAvailabilityChanged(slaveID byte, available bool) {
	s.enqueue(availabilityEvent(slaveID, available))
}

func (s *WebhookSink) enqueue(ev Event) {
	select {
	case s.queue <- ev:
	default:
		s.observer.Record(webhookSinkName, "dropped")
		s.logger.Warn("webhook queue full, event dropped",
			zap.String("event_type", string(ev.EventType)),
			zap.Uint8("slave_id", ev.SlaveID))
	}
}

func (s *WebhookSink) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			s.deliver(ctx, ev)
		}
	}
}

func (s *WebhookSink) deliver(ctx context.Context, ev Event) {
	code, _, err := s.pusher.SendJSON(ctx, s.endpoint, &ev)
	if err != nil || code >= 300 {
		s.observer.Record(webhookSinkName, "failed")
		s.logger.Warn("webhook delivery failed",
			zap.String("event_id", ev.EventID),
			zap.Int("status_code", code),
			zap.Error(err))
		return
	}
	s.observer.Record(webhookSinkName, "delivered")
	s.logger.Debug("webhook delivered",
		zap.String("event_id", ev.EventID),
		zap.String("event_type", string(ev.EventType)))
}
