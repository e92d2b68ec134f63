package domain

import "time"

// EventType names a domain event published for other components.
type EventType string

const (
	EventRouteComputed    EventType = "route.computed"
	EventPOIsDiscovered   EventType = "poi.discovered"
	EventFavoriteAdded    EventType = "favorite.added"
	EventFavoriteRemoved  EventType = "favorite.removed"
	EventAreaSubmitted    EventType = "area.submitted"
	EventSessionRevoked   EventType = "session.revoked"
	EventTrafficRefreshed EventType = "traffic.refreshed"
)

// Event is a domain event.
type Event struct {
	Type       EventType      `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, attrs map[string]any) Event {
	return Event{Type: t, OccurredAt: time.Now().UTC(), Attributes: attrs}
}

// NoticeLevel grades a user-facing notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warning"
	NoticeError NoticeLevel = "error"
)

// Notice is a message for the user, e.g. a re-authentication prompt.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}
