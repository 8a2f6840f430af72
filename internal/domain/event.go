package domain

type EventType string

const (
	EventHistory        EventType = "history"
	EventMessage        EventType = "message"
	EventMessageUpdated EventType = "message_updated"
	EventError          EventType = "error"
)

// Event is a hub-to-client frame. Exactly one payload field is set per type.
type Event struct {
	Type     EventType     `json:"type"`
	Message  *ChatMessage  `json:"message,omitempty"`
	Messages []ChatMessage `json:"messages,omitzero"`
	Error    *ErrorPayload `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func HistoryEvent(msgs []ChatMessage) Event {
	if msgs == nil {
		msgs = []ChatMessage{}
	}
	return Event{Type: EventHistory, Messages: msgs}
}

func MessageEvent(m ChatMessage) Event {
	return Event{Type: EventMessage, Message: &m}
}

func UpdatedEvent(m ChatMessage) Event {
	return Event{Type: EventMessageUpdated, Message: &m}
}

func ErrorEvent(err error) Event {
	return Event{Type: EventError, Error: &ErrorPayload{Code: ErrorCode(err), Reason: err.Error()}}
}

// IsChat reports whether the event carries an accepted chat message.
func (e Event) IsChat() bool {
	return (e.Type == EventMessage || e.Type == EventMessageUpdated) && e.Message != nil
}
