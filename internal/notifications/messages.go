package notifications

import "sync"

// EventMessageType classifies an EventMessage.
type EventMessageType int

const (
	MessageDefault EventMessageType = iota
	MessageInfo
	MessageError
	MessageSuccess
	MessageWarning
)

// EventMessage is a diagnostic message accumulated while an operation runs.
type EventMessage struct {
	Category string
	Message  string
	Type     EventMessageType
}

// EventMessages is a bag of messages shared by the notifications raised
// during one operation. Safe for concurrent use.
type EventMessages struct {
	mu   sync.Mutex
	msgs []EventMessage
}

func NewEventMessages() *EventMessages {
	return &EventMessages{}
}

func (m *EventMessages) Add(msg EventMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

// All returns a copy of the accumulated messages.
func (m *EventMessages) All() []EventMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventMessage, len(m.msgs))
	copy(out, m.msgs)
	return out
}

func (m *EventMessages) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}
