// Package notifications implements the in-process event aggregator used to
// broadcast typed notifications to subscribers.
//
// Publication is awaited but informational: handlers run in subscription
// order, their errors and panics are logged and never reach the publisher,
// and no handler can change what the publisher does next.
package notifications

// Notification is anything that can be published on the aggregator.
type Notification interface {
	NotificationName() string
}

// Stateful is implemented by notifications that carry a state bag and an
// EventMessages bag. A "before" notification hands both to its "after"
// counterpart so subscribers can correlate the pair.
type Stateful interface {
	Notification
	State() map[string]any
	Messages() *EventMessages
}

// StatefulNotification is embedded by concrete notification types.
type StatefulNotification struct {
	messages *EventMessages
	state    map[string]any
}

// NewStatefulNotification creates the embedded part of a notification.
// A nil messages bag gets a fresh one.
func NewStatefulNotification(messages *EventMessages) StatefulNotification {
	if messages == nil {
		messages = NewEventMessages()
	}
	return StatefulNotification{messages: messages}
}

func (n *StatefulNotification) Messages() *EventMessages {
	if n.messages == nil {
		n.messages = NewEventMessages()
	}
	return n.messages
}

// State returns the mutable state bag, creating it on first use.
func (n *StatefulNotification) State() map[string]any {
	if n.state == nil {
		n.state = make(map[string]any)
	}
	return n.state
}

// CopyStateFrom copies the state of another notification into n and adopts
// its messages bag.
func (n *StatefulNotification) CopyStateFrom(other Stateful) {
	if other == nil {
		return
	}
	state := n.State()
	for k, v := range other.State() {
		state[k] = v
	}
	n.messages = other.Messages()
}
