package sdk

import (
	"context"
	"sync"
)

// Navigator is the host application's navigation capability. The pipeline
// consults Location to avoid redirecting to the page the user is already on.
type Navigator interface {
	Location() string
	Navigate(ctx context.Context, target string) error
}

// HistoryNavigator is an in-process Navigator that records every navigation.
// OnNavigate, if set, is called after the location changes.
type HistoryNavigator struct {
	OnNavigate func(target string)

	mu       sync.Mutex
	location string
	history  []string
}

// NewHistoryNavigator creates a navigator positioned at initial
func NewHistoryNavigator(initial string) *HistoryNavigator {
	return &HistoryNavigator{location: initial}
}

// Location returns the current location
func (n *HistoryNavigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

// Navigate moves to target
func (n *HistoryNavigator) Navigate(ctx context.Context, target string) error {
	n.mu.Lock()
	n.location = target
	n.history = append(n.history, target)
	hook := n.OnNavigate
	n.mu.Unlock()

	if hook != nil {
		hook(target)
	}
	return nil
}

// SetLocation moves to target without recording a navigation, as when the
// user changes pages on their own.
func (n *HistoryNavigator) SetLocation(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = target
}

// History returns every target navigated to, oldest first
func (n *HistoryNavigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}
