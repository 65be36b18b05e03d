package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/labreport/pkg/logger"
	"github.com/jwalitptl/labreport/pkg/messaging"
	"github.com/jwalitptl/labreport/pkg/metrics"
)

type EventPublisherConfig struct {
	QueueSize     int
	RetryAttempts int
	RetryDelay    time.Duration
}

// Event is one queued broker message.
type Event struct {
	Channel string
	Message messaging.Message
}

// EventPublisher decouples request handling from the broker: producers
// enqueue without blocking and a single goroutine publishes with retries.
type EventPublisher struct {
	broker  messaging.Broker
	config  EventPublisherConfig
	queue   chan Event
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewEventPublisher(
	broker messaging.Broker,
	config EventPublisherConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *EventPublisher {
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 500 * time.Millisecond
	}

	return &EventPublisher{
		broker:  broker,
		config:  config,
		queue:   make(chan Event, config.QueueSize),
		logger:  logger,
		metrics: metrics,
	}
}

// Enqueue never blocks; a full queue drops the event.
func (p *EventPublisher) Enqueue(channel string, msg messaging.Message) bool {
	select {
	case p.queue <- Event{Channel: channel, Message: msg}:
		p.metrics.EventQueueSize.Set(float64(len(p.queue)))
		return true
	default:
		p.metrics.EventsDropped.Inc()
		p.logger.Warn("event queue full, dropping event", "channel", channel, "type", msg.Type)
		return false
	}
}

// Start publishes queued events until ctx is cancelled, then drains what is
// left with a short deadline.
func (p *EventPublisher) Start(ctx context.Context) {
	p.logger.Info("Starting event publisher")

	for {
		select {
		case <-ctx.Done():
			p.drain()
			p.logger.Info("Shutting down event publisher")
			return
		case ev := <-p.queue:
			p.metrics.EventQueueSize.Set(float64(len(p.queue)))
			p.publish(ctx, ev)
		}
	}
}

func (p *EventPublisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-p.queue:
			p.publish(ctx, ev)
		default:
			return
		}
	}
}

func (p *EventPublisher) publish(ctx context.Context, ev Event) {
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, ev.Channel, ev.Message)
	})
	if err != nil {
		p.metrics.EventsFailed.Inc()
		p.logger.Error(err, "Failed to publish event", "channel", ev.Channel, "type", ev.Message.Type)
		return
	}
	p.metrics.EventsSent.Inc()
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(delay):
			}
		}
	}
	return err
}
