package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare/internal/shared/eventbus"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPublishSubscribe(t *testing.T) {
	client := testClient(t)
	topic := "mindcare:test:" + time.Now().Format("150405.000000")
	pub := NewStoreFromClient(client).WithTopic(topic)
	sub := NewStoreFromClient(client).WithTopic(topic)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := sub.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, &eventbus.ChannelEvent{
		Channel: "room:abc",
		Type:    "newMessage",
		Data:    json.RawMessage(`{"content":"hello"}`),
	}))

	select {
	case ev := <-ch:
		assert.Equal(t, "room:abc", ev.Channel)
		assert.Equal(t, "newMessage", ev.Type)
		assert.JSONEq(t, `{"content":"hello"}`, string(ev.Data))
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(3 * time.Second):
		t.Fatal("event not received")
	}
}
