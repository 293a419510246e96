// Package events publishes booking lifecycle events for notification and
// earnings collaborators. Delivery is best-effort: the engine never fails a
// transition because a subscriber is down.
package events

import "context"

// Publisher sends a JSON payload under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// Nop discards all events. Used when no broker is configured and in tests.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }
