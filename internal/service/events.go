package service

import "time"

// EventType names a change pushed to a user's live connections.
type EventType string

const (
	EventAggregateUpdated EventType = "aggregate_updated"
	EventWagerPlaced      EventType = "wager_placed"
	EventMatchSettled     EventType = "match_settled"
	EventHistoryPurged    EventType = "history_purged"
)

// Event is delivered only to connections of the user that owns it.
type Event struct {
	Type   EventType `json:"type"`
	UserID string    `json:"user_id"`
	Data   any       `json:"data,omitempty"`
	At     time.Time `json:"at"`
}

// Notifier receives committed changes. Notify must not block.
type Notifier interface {
	Notify(userID string, ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, Event) {}

func (s *Service) publish(userID string, typ EventType, data any) {
	s.notifier.Notify(userID, Event{Type: typ, UserID: userID, Data: data, At: s.now()})
}
