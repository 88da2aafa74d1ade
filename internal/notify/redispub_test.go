package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
		return nil
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisSink_Publishes(t *testing.T) {
	client := setupTestRedis(t)
	if client == nil {
		return
	}
	ctx := context.Background()

	sub := client.Subscribe(ctx, "rdz:test:events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	sink := NewRedisSink(client, "rdz:test:events", 16, nil, nil)
	sink.Start(ctx)
	defer sink.Close()

	sink.OnAvailabilityChanged(4, true)

	select {
	case msg := <-sub.Channel():
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, EventAvailability, ev.EventType)
		assert.Equal(t, byte(4), ev.SlaveID)
		assert.Equal(t, true, ev.Data["available"])
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}

func TestRedisSink_UpdateCarriesSnapshot(t *testing.T) {
	client := setupTestRedis(t)
	if client == nil {
		return
	}
	ctx := context.Background()

	sub := client.Subscribe(ctx, "rdz:test:snapshots")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	sink := NewRedisSink(client, "rdz:test:snapshots", 16, nil, nil)
	sink.Start(ctx)
	defer sink.Close()

	temp := -5.0
	sink.OnSlaveUpdated(2, registry.Snapshot{SlaveID: 2, Temperature: &temp})

	select {
	case msg := <-sub.Channel():
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		snap, ok := ev.Data["snapshot"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, -5.0, snap["temperature"])
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}
