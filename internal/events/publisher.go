package events

import (
	"context"

	"github.com/birbparty/shelf/sdk"
)

// Publisher sends session lifecycle events to NATS
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher over client
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends event on shelf.session.<type>
func (p *Publisher) Publish(ctx context.Context, event sdk.SessionEvent) error {
	return p.client.PublishSession(ctx, NewSessionMessage(event))
}

// SessionObserver forwards session events of a client to NATS. Publish
// failures are logged and never reach the caller of the client.
type SessionObserver struct {
	sdk.NoopObserver
	publisher *Publisher
}

var _ sdk.Observer = (*SessionObserver)(nil)

// NewSessionObserver creates an observer publishing through publisher
func NewSessionObserver(publisher *Publisher) *SessionObserver {
	return &SessionObserver{publisher: publisher}
}

// OnSessionEvent publishes event within the configured publish timeout
func (o *SessionObserver) OnSessionEvent(event sdk.SessionEvent) {
	client := o.publisher.client
	ctx, cancel := context.WithTimeout(context.Background(), client.config.PublishTimeout)
	defer cancel()

	if err := o.publisher.Publish(ctx, event); err != nil {
		client.logger.WithError(err).WithField("event", event.Type).Warn("Failed to publish session event")
	}
}
