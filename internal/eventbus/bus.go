// Package eventbus provides an in-process pub/sub bus for domain events.
// Services publish after commit; subscribers run on a single consumer
// goroutine, so handlers see events in publish order. Handlers must not
// publish: a full queue would block the consumer on itself.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nurpe/towing-settlement/internal/event"
)

// Handler processes a domain event.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.DomainEvent) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return f(ctx, evt)
}

type Bus struct {
	mu          sync.RWMutex
	subscribers []namedHandler
	// sendMu guards closed and the close of events against in-flight sends.
	sendMu    sync.RWMutex
	closed    bool
	events    chan event.DomainEvent
	done      chan struct{}
	closeOnce sync.Once
	log       zerolog.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

func New(bufSize int, log zerolog.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	return &Bus{
		events: make(chan event.DomainEvent, bufSize),
		done:   make(chan struct{}),
		log:    log,
	}
}

// Subscribe registers a named handler. Must be called before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish enqueues an event. A full queue blocks the caller until the
// consumer catches up, so commissions triggered by completions are never
// shed under load. The event is dropped only when ctx ends first or the bus
// has stopped.
func (b *Bus) Publish(ctx context.Context, evt event.DomainEvent) {
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed {
		b.dropped(evt, "eventbus stopped")
		return
	}
	select {
	case b.events <- evt:
	case <-ctx.Done():
		b.dropped(evt, "publish cancelled")
	case <-b.done:
		b.dropped(evt, "eventbus consumer exited")
	}
}

func (b *Bus) dropped(evt event.DomainEvent, reason string) {
	b.log.Error().
		Str("event_type", evt.EventType).
		Str("event_id", evt.ID.String()).
		Msg(reason + ", dropping event")
}

// Start runs the consumer until ctx is cancelled or Stop is called.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for {
			select {
			case evt, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				b.drain(context.WithoutCancel(ctx))
				return
			}
		}
	}()
}

// Stop closes the queue and waits for queued events to be dispatched.
func (b *Bus) Stop() {
	b.closeOnce.Do(func() {
		b.sendMu.Lock()
		b.closed = true
		close(b.events)
		b.sendMu.Unlock()
	})
	<-b.done
}

func (b *Bus) drain(ctx context.Context) {
	for {
		select {
		case evt, ok := <-b.events:
			if !ok {
				return
			}
			b.dispatch(ctx, evt)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			b.log.Error().
				Err(err).
				Str("handler", s.name).
				Str("event_type", evt.EventType).
				Msg("event handler failed")
		}
	}
}
