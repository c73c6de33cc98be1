package events

import (
	"encoding/json"
	"time"

	"github.com/birbparty/shelf/sdk"
	"github.com/google/uuid"
)

// Subject names
const (
	// SubjectSessionPrefix is followed by the event type: shelf.session.expired
	SubjectSessionPrefix = "shelf.session."
	SubjectSessionAll    = "shelf.session.>"
	SubjectNavigate      = "shelf.ui.navigate"
	SubjectLocation      = "shelf.ui.location"
)

// SessionMessage carries a session lifecycle transition
type SessionMessage struct {
	ID        string               `json:"id"`
	Type      sdk.SessionEventType `json:"type"`
	Path      string               `json:"path,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// NavigateMessage asks the UI to move to Target
type NavigateMessage struct {
	Target string `json:"target"`
}

// LocationMessage reports where the UI currently is
type LocationMessage struct {
	Location string `json:"location"`
}

// NewSessionMessage wraps event with a fresh message id
func NewSessionMessage(event sdk.SessionEvent) *SessionMessage {
	at := event.At
	if at.IsZero() {
		at = time.Now()
	}
	return &SessionMessage{
		ID:        uuid.NewString(),
		Type:      event.Type,
		Path:      event.Path,
		Timestamp: at.UTC(),
	}
}

// Subject returns the subject the message is published on
func (m *SessionMessage) Subject() string {
	return SessionSubject(m.Type)
}

// Event converts the message back to an sdk.SessionEvent
func (m *SessionMessage) Event() sdk.SessionEvent {
	return sdk.SessionEvent{Type: m.Type, Path: m.Path, At: m.Timestamp}
}

// Marshal converts the message to JSON bytes
func (m *SessionMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalSessionMessage unmarshals a session message from JSON
func UnmarshalSessionMessage(data []byte) (*SessionMessage, error) {
	var msg SessionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SessionSubject returns the subject for an event type
func SessionSubject(eventType sdk.SessionEventType) string {
	return SubjectSessionPrefix + string(eventType)
}
