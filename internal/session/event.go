package session

import "canvas-backend/internal/model"

// EventType 세션 이벤트 종류
type EventType string

const (
	EventPagesLoaded     EventType = "pages_loaded"
	EventPageAdded       EventType = "page_added"
	EventPageDeleted     EventType = "page_deleted"
	EventStrokeAdded     EventType = "stroke_added"
	EventStrokeConfirmed EventType = "stroke_confirmed"
	EventStrokeFailed    EventType = "stroke_failed"
	EventCleared         EventType = "cleared"
)

// Event is delivered to subscribers after the session state changed.
type Event struct {
	Type       EventType     `json:"type"`
	DocumentID string        `json:"documentId,omitempty"`
	PageID     string        `json:"pageId,omitempty"`
	WriteID    string        `json:"writeId,omitempty"`
	Stroke     *model.Stroke `json:"stroke,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Handler receives session events. Handlers run synchronously on the
// goroutine that changed the session and must not call its write operations.
type Handler func(Event)
