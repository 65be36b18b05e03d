package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/labreport/pkg/messaging"
)

func TestRedisBroker_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := zerolog.Nop()
	broker := NewWithClient(client, &logger)
	defer broker.Close()

	ctx := context.Background()
	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()}).Subscribe(ctx, "report.exported")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	msg := messaging.Message{
		Type:       "report.exported",
		OccurredAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Payload:    map[string]interface{}{"pages": 2},
	}
	require.NoError(t, broker.Publish(ctx, "report.exported", msg))

	select {
	case got := <-sub.Channel():
		var decoded messaging.Message
		require.NoError(t, json.Unmarshal([]byte(got.Payload), &decoded))
		assert.Equal(t, "report.exported", decoded.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestNewRedisBroker_BadURL(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewRedisBroker(Config{URL: "://nope"}, &logger)
	assert.Error(t, err)
}
