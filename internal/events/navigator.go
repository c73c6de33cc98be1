package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/birbparty/shelf/sdk"
	"github.com/nats-io/nats.go"
)

// Navigator drives a UI over NATS. Navigate publishes the target on
// shelf.ui.navigate; the UI reports where it is on shelf.ui.location.
type Navigator struct {
	client *Client
	sub    *nats.Subscription

	mu       sync.RWMutex
	location string
}

var _ sdk.Navigator = (*Navigator)(nil)

// NewNavigator creates a navigator positioned at initial and starts
// tracking location reports.
func NewNavigator(client *Client, initial string) (*Navigator, error) {
	n := &Navigator{client: client, location: initial}

	sub, err := client.nc.Subscribe(SubjectLocation, n.onLocation)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", SubjectLocation, err)
	}
	n.sub = sub
	return n, nil
}

func (n *Navigator) onLocation(m *nats.Msg) {
	var msg LocationMessage
	if err := json.Unmarshal(m.Data, &msg); err != nil || msg.Location == "" {
		n.client.logger.WithField("payload", string(m.Data)).Warn("Ignoring malformed location report")
		return
	}
	n.mu.Lock()
	n.location = msg.Location
	n.mu.Unlock()
}

// Location returns the last location reported by the UI or navigated to
func (n *Navigator) Location() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.location
}

// Navigate publishes {"target": target} and assumes the UI follows
func (n *Navigator) Navigate(ctx context.Context, target string) error {
	data, err := json.Marshal(NavigateMessage{Target: target})
	if err != nil {
		return fmt.Errorf("failed to marshal navigate message: %w", err)
	}
	if err := n.client.nc.Publish(SubjectNavigate, data); err != nil {
		return fmt.Errorf("failed to publish navigate message: %w", err)
	}
	if err := n.client.flush(ctx); err != nil {
		return fmt.Errorf("failed to flush navigate message: %w", err)
	}

	n.mu.Lock()
	n.location = target
	n.mu.Unlock()
	return nil
}

// Close stops tracking location reports
func (n *Navigator) Close() error {
	if n.sub == nil {
		return nil
	}
	return n.sub.Unsubscribe()
}
