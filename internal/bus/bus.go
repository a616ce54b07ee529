package bus

import (
	"fmt"

	"github.com/opensource-finance/sentinel/internal/domain"
)

// New creates an event bus based on configuration: "channel" for the
// in-process bus, "nats" for a NATS connection.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Driver {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus driver: %s", cfg.Driver)
	}
}
