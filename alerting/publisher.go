package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/giantswarm/sentinel/instrumentation"
	"github.com/giantswarm/sentinel/threat"
)

const (
	// DefaultTopic is the topic threats are published on
	DefaultTopic = "sentinel.threats"

	// DefaultBufferSize is the per-subscriber output buffer
	DefaultBufferSize = 100

	// Metadata keys set on every published message
	MetadataThreatType  = "threat_type"
	MetadataThreatLevel = "threat_level"
)

// ErrClosed is returned when publishing or subscribing after Close.
var ErrClosed = errors.New("alerting: publisher closed")

// Config holds the alerting configuration.
type Config struct {
	// Enabled wires the publisher into the detector.
	Enabled bool `yaml:"enabled"`

	// Topic to publish on (default: sentinel.threats).
	Topic string `yaml:"topic"`

	// BufferSize is the output buffer of each subscription (default: 100).
	BufferSize int `yaml:"bufferSize"`
}

// Publisher publishes threat events to Watermill subscribers.
type Publisher struct {
	pubSub *gochannel.GoChannel
	topic  string
	logger *slog.Logger

	instrumentation *instrumentation.Instrumentation
}

// New creates a publisher backed by an in-memory gochannel.
func New(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            int64(cfg.BufferSize),
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewSlogLogger(logger.With("component", "alerting")),
	)

	return &Publisher{
		pubSub: pubSub,
		topic:  cfg.Topic,
		logger: logger,
	}
}

// SetInstrumentation enables the publication counter.
func (p *Publisher) SetInstrumentation(inst *instrumentation.Instrumentation) {
	p.instrumentation = inst
}

// Topic returns the topic threats are published on.
func (p *Publisher) Topic() string {
	return p.topic
}

// Alert publishes e. It satisfies security.Alerter.
func (p *Publisher) Alert(ctx context.Context, e threat.Event) error {
	err := p.publish(ctx, e)
	if p.instrumentation != nil {
		if m := p.instrumentation.Metrics(); m != nil {
			m.RecordAlertPublished(ctx, err == nil)
		}
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, e threat.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode threat %s: %w", e.ID, err)
	}

	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set(MetadataThreatType, string(e.Type))
	msg.Metadata.Set(MetadataThreatLevel, e.Level.String())
	msg.SetContext(ctx)

	if err := p.pubSub.Publish(p.topic, msg); err != nil {
		if p.pubSub.IsClosed() {
			return ErrClosed
		}
		return fmt.Errorf("failed to publish threat %s: %w", e.ID, err)
	}

	p.logger.Debug("Published threat alert",
		"threat_id", e.ID,
		"threat_type", e.Type,
		"threat_level", e.Level.String())
	return nil
}

// Subscribe returns the threats published after the call. The channel is
// closed when ctx is cancelled or the publisher is closed. Messages that
// cannot be decoded are logged and dropped.
func (p *Publisher) Subscribe(ctx context.Context) (<-chan threat.Event, error) {
	if p.pubSub.IsClosed() {
		return nil, ErrClosed
	}
	messages, err := p.pubSub.Subscribe(ctx, p.topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", p.topic, err)
	}

	out := make(chan threat.Event)
	go func() {
		defer close(out)

		for msg := range messages {
			var e threat.Event
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				p.logger.Warn("Dropping undecodable threat alert", "message_uuid", msg.UUID, "error", err)
				msg.Ack()
				continue
			}

			select {
			case out <- e:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()

	return out, nil
}

// Close stops the pub/sub and closes every subscription.
func (p *Publisher) Close() error {
	return p.pubSub.Close()
}
