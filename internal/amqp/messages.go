package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"spendsight/internal/events"
)

// RefreshMessage is the wire form of a refresh event. It carries no data,
// only what changed, so receivers refetch from the expense API.
type RefreshMessage struct {
	ID        string      `json:"id"`
	Kind      events.Kind `json:"kind"`
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewRefreshMessage wraps a bus event for publishing.
func NewRefreshMessage(e events.Event) *RefreshMessage {
	ts := e.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &RefreshMessage{
		ID:        e.ID,
		Kind:      e.Kind,
		Source:    e.Source,
		Timestamp: ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Event converts the message back into a bus event.
func (m *RefreshMessage) Event() events.Event {
	return events.Event{ID: m.ID, Kind: m.Kind, Source: m.Source, At: m.Timestamp}
}

// RefreshMessageFromJSON decodes a message and rejects ones without a kind.
func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" {
		return nil, errors.New("refresh message without kind")
	}
	return &msg, nil
}
