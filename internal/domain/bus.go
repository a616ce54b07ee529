package domain

import (
	"context"
)

// EventBus publishes pipeline lifecycle events for downstream
// consumers. The bus is an optional boundary adapter crossed only at
// stage exit; the pipeline never blocks its core computation on it.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Driver is the bus type: "channel", "nats", or empty to disable
	// publishing.
	Driver string `env:"DRIVER"`

	// Channel settings
	ChannelBufferSize int `env:"CHANNEL_BUFFER" envDefault:"1000"`

	// NATS settings
	NATSUrl           string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSToken         string `env:"NATS_TOKEN"`
	NATSMaxReconnects int    `env:"NATS_MAX_RECONNECTS" envDefault:"10"`
	NATSReconnectWait int    `env:"NATS_RECONNECT_WAIT" envDefault:"5"` // seconds
}

// Enabled reports whether run events should be published.
func (c EventBusConfig) Enabled() bool {
	return c.Driver != ""
}

// Standard topic names for pipeline run events.
const (
	TopicRunCompleted  = "pipeline.run.completed"
	TopicAlertsCreated = "pipeline.alerts.created"
	TopicCasesCreated  = "pipeline.cases.created"
)
