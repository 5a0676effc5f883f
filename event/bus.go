package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type HandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

type ContextChangedHandler func(ctx context.Context, e *ContextChanged) error
type StateChangedHandler func(ctx context.Context, e *StateChanged) error
type CompletedHandler func(ctx context.Context, e *Completed) error
type SavedHandler func(ctx context.Context, e *Saved) error

type subscription[E any] struct {
	identifier string
	handle     func(ctx context.Context, e *E) error
}

type topic[E any] struct {
	mu            sync.RWMutex
	subscriptions []subscription[E]
}

func (t *topic[E]) subscribe(identifier string, handle func(ctx context.Context, e *E) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscriptions = append(t.subscriptions, subscription[E]{identifier: identifier, handle: handle})
}

func (t *topic[E]) publish(ctx context.Context, kind Kind, e *E) []HandleResult {
	t.mu.RLock()
	subscriptions := make([]subscription[E], len(t.subscriptions))
	copy(subscriptions, t.subscriptions)
	t.mu.RUnlock()

	results := []HandleResult{}
	for _, s := range subscriptions {
		logrus.WithFields(logrus.Fields{"event": kind, "handler": s.identifier}).Debug("pre handle event")
		r := invoke(ctx, s, e)
		results = append(results, r)

		if r.Success {
			logrus.WithFields(logrus.Fields{"event": kind, "handler": s.identifier}).Debug("post handle event")
		} else {
			logrus.WithFields(logrus.Fields{"event": kind, "handler": s.identifier}).Error("post handle event error: ", r.Message)
		}
	}
	return results
}

func invoke[E any](ctx context.Context, s subscription[E], e *E) (r HandleResult) {
	r.HandlerIdentifier = s.identifier
	defer func() {
		if ret := recover(); ret != nil {
			r.Success = false
			r.Message = fmt.Sprintf("handler panic: %v", ret)
		}
	}()
	if err := s.handle(ctx, e); err != nil {
		r.Message = err.Error()
		return r
	}
	r.Success = true
	r.Message = "success"
	return r
}

// Bus is an in-process, synchronous publisher of workflow lifecycle events.
// Subscribers run in registration order, a failing or panicking subscriber never affects the others.
type Bus struct {
	contextChanged topic[ContextChanged]
	stateChanged   topic[StateChanged]
	completed      topic[Completed]
	saved          topic[Saved]
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) OnContextChanged(identifier string, h ContextChangedHandler) {
	b.contextChanged.subscribe(identifier, h)
}

func (b *Bus) OnStateChanged(identifier string, h StateChangedHandler) {
	b.stateChanged.subscribe(identifier, h)
}

func (b *Bus) OnCompleted(identifier string, h CompletedHandler) {
	b.completed.subscribe(identifier, h)
}

func (b *Bus) OnSaved(identifier string, h SavedHandler) {
	b.saved.subscribe(identifier, h)
}

func (b *Bus) PublishContextChanged(ctx context.Context, e *ContextChanged) []HandleResult {
	return b.contextChanged.publish(ctx, KindContextChanged, e)
}

func (b *Bus) PublishStateChanged(ctx context.Context, e *StateChanged) []HandleResult {
	return b.stateChanged.publish(ctx, KindStateChanged, e)
}

func (b *Bus) PublishCompleted(ctx context.Context, e *Completed) []HandleResult {
	return b.completed.publish(ctx, KindCompleted, e)
}

func (b *Bus) PublishSaved(ctx context.Context, e *Saved) []HandleResult {
	return b.saved.publish(ctx, KindSaved, e)
}

// Publisher is the publishing side of the bus.
type Publisher interface {
	PublishContextChanged(ctx context.Context, e *ContextChanged) []HandleResult
	PublishStateChanged(ctx context.Context, e *StateChanged) []HandleResult
	PublishCompleted(ctx context.Context, e *Completed) []HandleResult
	PublishSaved(ctx context.Context, e *Saved) []HandleResult
}

// Subscriber is the subscribing side of the bus.
type Subscriber interface {
	OnContextChanged(identifier string, h ContextChangedHandler)
	OnStateChanged(identifier string, h StateChangedHandler)
	OnCompleted(identifier string, h CompletedHandler)
	OnSaved(identifier string, h SavedHandler)
}
