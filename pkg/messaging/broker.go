package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Event channels published by the case pipeline.
const (
	ChannelCaseTransitioned = "case.transitioned"
	ChannelCaseBreached     = "case.breached"
	ChannelCaseEscalated    = "case.escalated"
)

// Noop is a Broker that drops everything. Used when no broker is
// configured and in tests.
type Noop struct{}

func (Noop) Publish(ctx context.Context, channel string, message interface{}) error {
	return nil
}

func (Noop) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (Noop) Close() error { return nil }
