package epicenter

import (
	"context"
	"fmt"
	"reflect"
)

// ListenerFunc handles a single event of type E. The event is passed by
// pointer: mutations are visible to listeners invoked after this one within
// the same dispatch.
type ListenerFunc[E any] func(ctx context.Context, event *E)

// Cloner lets an event control how Broadcast copies it for each listener.
// Events that don't implement it are copied by value.
type Cloner[E any] interface {
	Clone() E
}

// TypeOf returns the identity the registry uses for events of type E.
func TypeOf[E any]() reflect.Type {
	return reflect.TypeFor[E]()
}

// Entry is a type-erased listener. It records the event type it was
// registered for and a closure that asserts the opaque value back to that
// type before calling the typed listener.
type Entry struct {
	event  reflect.Type
	invoke func(ctx context.Context, value any)
}

// NewEntry erases fn into an Entry tagged with E's identity.
func NewEntry[E any](fn ListenerFunc[E]) (Entry, error) {
	if fn == nil {
		return Entry{}, ErrNilListener
	}

	return Entry{
		event: TypeOf[E](),
		invoke: func(ctx context.Context, value any) {
			ev, ok := value.(*E)
			if !ok {
				panic(fmt.Errorf("%w: listener for %s invoked with %T", ErrUnregisteredEvent, TypeOf[E](), value))
			}
			fn(ctx, ev)
		},
	}, nil
}

// Event returns the event type the entry was registered for.
func (e Entry) Event() reflect.Type {
	return e.event
}

// Matches reports whether the entry listens for events of type t.
func (e Entry) Matches(t reflect.Type) bool {
	return e.event == t
}

// Valid reports whether the entry was built by NewEntry.
func (e Entry) Valid() bool {
	return e.event != nil && e.invoke != nil
}

// Invoke calls the underlying listener. value must be a *E for the entry's
// event type; callers filter with Matches first.
func (e Entry) Invoke(ctx context.Context, value any) {
	e.invoke(ctx, value)
}

// CheckEvent verifies that value is a non-nil pointer to an event of type t.
// Engines call it before scanning so Invoke can never see a mismatched value.
func CheckEvent(t reflect.Type, value any) error {
	if t == nil || value == nil {
		return fmt.Errorf("%w: missing event type or value", ErrInvalidEvent)
	}

	v := reflect.ValueOf(value)
	if v.Type() != reflect.PointerTo(t) {
		return fmt.Errorf("%w: expected *%s, got %T", ErrInvalidEvent, t, value)
	}
	if v.IsNil() {
		return fmt.Errorf("%w: nil *%s", ErrInvalidEvent, t)
	}

	return nil
}
