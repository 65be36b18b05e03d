package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}

// Message is the envelope every published event travels in.
type Message struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// LogBroker writes messages to the log instead of a broker. It is the
// default when no Redis URL is configured.
type LogBroker struct {
	logger *zerolog.Logger
}

func NewLogBroker(logger *zerolog.Logger) *LogBroker {
	return &LogBroker{logger: logger}
}

func (b *LogBroker) Publish(_ context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	b.logger.Info().Str("channel", channel).RawJSON("message", payload).Msg("event published")
	return nil
}

func (b *LogBroker) Close() error {
	return nil
}
