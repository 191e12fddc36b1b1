package epicenter

import (
	"context"
	"reflect"
)

// Dispatcher defines the type-erased contract shared by every engine.
// Callers normally go through the generic helpers (Using, Listen,
// HasListeners, Dispatch) which build entries and identities for them.
type Dispatcher interface {
	// Register appends an erased listener to the registry. The listener is
	// visible to every dispatch issued after Register returns.
	Register(ctx context.Context, entry Entry) error

	// HasListeners reports whether at least one listener is registered for
	// the event type. It never mutates the registry.
	HasListeners(ctx context.Context, event reflect.Type) (bool, error)

	// Dispatch hands value, a pointer to an event of the given type, to each
	// matching listener in registration order. Zero matches is not an error.
	Dispatch(ctx context.Context, event reflect.Type, value any) error
}

// Broadcaster is implemented by engines that can fan an event out to its
// listeners concurrently. Each listener receives its own copy produced by
// clone, so mutations are not shared.
type Broadcaster interface {
	Broadcast(ctx context.Context, event reflect.Type, clone func() any) error
}

// Typed binds a Dispatcher to a single event type. It is cheap to create and
// not meant to be stored.
type Typed[E any] struct {
	d Dispatcher
}

// Using returns the typed view of d for events of type E.
func Using[E any](d Dispatcher) *Typed[E] {
	return &Typed[E]{d: d}
}

// Listen registers fn for events of type E.
func (t *Typed[E]) Listen(ctx context.Context, fn ListenerFunc[E]) error {
	entry, err := NewEntry(fn)
	if err != nil {
		return err
	}

	return t.d.Register(ctx, entry)
}

// HasListeners reports whether any listener is registered for E.
func (t *Typed[E]) HasListeners(ctx context.Context) (bool, error) {
	return t.d.HasListeners(ctx, TypeOf[E]())
}

// Dispatch threads event through every listener registered for E.
func (t *Typed[E]) Dispatch(ctx context.Context, event *E) error {
	if event == nil {
		return CheckEvent(TypeOf[E](), nil)
	}

	return t.d.Dispatch(ctx, TypeOf[E](), event)
}

// Broadcast delivers a private copy of event to every listener registered for
// E, concurrently. It fails with ErrBroadcastUnsupported when the underlying
// engine is not a Broadcaster.
func (t *Typed[E]) Broadcast(ctx context.Context, event E) error {
	b, ok := t.d.(Broadcaster)
	if !ok {
		return ErrBroadcastUnsupported
	}

	return b.Broadcast(ctx, TypeOf[E](), func() any {
		if c, ok := any(event).(Cloner[E]); ok {
			cp := c.Clone()
			return &cp
		}
		cp := event
		return &cp
	})
}

// Listen registers fn on d for events of type E.
func Listen[E any](ctx context.Context, d Dispatcher, fn ListenerFunc[E]) error {
	return Using[E](d).Listen(ctx, fn)
}

// HasListeners reports whether d has any listener for events of type E.
func HasListeners[E any](ctx context.Context, d Dispatcher) (bool, error) {
	return Using[E](d).HasListeners(ctx)
}

// Dispatch sends event to the listeners registered on d for type E.
func Dispatch[E any](ctx context.Context, d Dispatcher, event *E) error {
	return Using[E](d).Dispatch(ctx, event)
}

// Broadcast fans event out to the listeners registered on d for type E.
func Broadcast[E any](ctx context.Context, d Dispatcher, event E) error {
	return Using[E](d).Broadcast(ctx, event)
}
