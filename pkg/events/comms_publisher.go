package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/invocation-gateway/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// ResponseSubject overrides the global response event subject (e.g. from GATEWAY_EVENT_SUBJECT).
	// Granular subjects are built under it.
	ResponseSubject string
}

// CommsPublisher publishes invocation outcome events to COMMS subjects.
type CommsPublisher struct {
	nc              *comms.Conn
	responseSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	subject := commsutil.SubjectResponseEvent
	if opts != nil && opts.ResponseSubject != "" {
		subject = opts.ResponseSubject
	}
	return &CommsPublisher{nc: nc, responseSubject: subject}
}

// PublishOutcome publishes an OutcomeEvent to both the granular
// and global response event subjects.
func (p *CommsPublisher) PublishOutcome(_ context.Context, event *OutcomeEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	granularSubject := commsutil.BuildResponseSubject(p.responseSubject, event.Client, event.Method)
	if err := p.nc.Publish(granularSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, granularSubject, err))
		return err
	}

	if err := p.nc.Publish(p.responseSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.responseSubject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published response event for %s.%s correlation_id=%s",
		commsPublisherLogPrefix, event.Client, event.Method, event.CorrelationID))
	return nil
}
