package events

import "context"

// EventPublisher is the interface for publishing invocation outcome events.
type EventPublisher interface {
	PublishOutcome(ctx context.Context, event *OutcomeEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// PublishOutcome is a no-op.
func (p *NoOpPublisher) PublishOutcome(_ context.Context, _ *OutcomeEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *OutcomeEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *OutcomeEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishOutcome calls the callback.
func (p *CallbackPublisher) PublishOutcome(ctx context.Context, event *OutcomeEvent) error {
	return p.callback(ctx, event)
}
