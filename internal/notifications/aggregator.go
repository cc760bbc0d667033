package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aatumaykin/cmsjobs/internal/logger"
)

var (
	ErrAggregatorClosed = errors.New("event aggregator is closed")
)

// Handler receives published notifications.
type Handler interface {
	Handle(ctx context.Context, n Notification) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, n Notification) error

func (f HandlerFunc) Handle(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Publisher is the publishing side of the aggregator.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

type subscription struct {
	id      int64
	handler Handler
}

// Aggregator fans notifications out to every subscribed handler.
type Aggregator struct {
	mu            sync.RWMutex
	logger        *logger.Logger
	subscriptions []subscription
	nextID        int64
	closed        bool
}

// New creates an empty aggregator.
func New(log *logger.Logger) *Aggregator {
	return &Aggregator{
		logger: log.Component("event_aggregator"),
	}
}

// Subscribe registers h and returns a function that removes it again.
func (a *Aggregator) Subscribe(h Handler) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextID++
	id := a.nextID
	a.subscriptions = append(a.subscriptions, subscription{id: id, handler: h})

	a.logger.Debug("subscriber added", logger.Field{Key: "subscriber_id", Value: id})

	return func() { a.unsubscribe(id) }
}

// On subscribes fn to notifications of type T only.
func On[T Notification](a *Aggregator, fn func(ctx context.Context, n T) error) func() {
	return a.Subscribe(HandlerFunc(func(ctx context.Context, n Notification) error {
		typed, ok := n.(T)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	}))
}

func (a *Aggregator) unsubscribe(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, s := range a.subscriptions {
		if s.id == id {
			a.subscriptions = append(a.subscriptions[:i], a.subscriptions[i+1:]...)
			return
		}
	}
}

// Publish delivers n to every handler in subscription order and waits for
// all of them. Handler failures are logged, not returned.
func (a *Aggregator) Publish(ctx context.Context, n Notification) error {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return ErrAggregatorClosed
	}
	handlers := make([]subscription, len(a.subscriptions))
	copy(handlers, a.subscriptions)
	a.mu.RUnlock()

	for _, s := range handlers {
		if err := a.invoke(ctx, s, n); err != nil {
			a.logger.ErrorCtx(ctx, "notification handler failed", err,
				logger.Field{Key: "notification", Value: n.NotificationName()},
				logger.Field{Key: "subscriber_id", Value: s.id})
		}
	}
	return nil
}

func (a *Aggregator) invoke(ctx context.Context, s subscription, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in notification handler: %v", r)
		}
	}()
	return s.handler.Handle(ctx, n)
}

// SubscriberCount returns the number of registered handlers.
func (a *Aggregator) SubscriberCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.subscriptions)
}

// Close drops all subscribers. Later publishes return ErrAggregatorClosed.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subscriptions = nil
	a.closed = true
}
