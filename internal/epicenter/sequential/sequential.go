// Package sequential implements the blocking dispatch engine. Listeners run
// one at a time on the caller's goroutine, in registration order, and each
// sees the mutations made by the ones before it.
package sequential

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"epicenter/internal/epicenter"
	"epicenter/internal/epicenter/registry"
)

// Dispatcher is the sequential engine. The zero value is not usable; create
// one with New.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners *registry.Registry
	logger    *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used to report poisoning.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates an empty sequential dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		listeners: registry.New(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Register implements epicenter.Dispatcher.Register.
func (d *Dispatcher) Register(_ context.Context, entry epicenter.Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.listeners.Guard(); err != nil {
		return fmt.Errorf("failed to register listener: %w", err)
	}

	if err := d.listeners.Append(entry); err != nil {
		return fmt.Errorf("failed to register listener: %w", err)
	}

	return nil
}

// HasListeners implements epicenter.Dispatcher.HasListeners.
func (d *Dispatcher) HasListeners(_ context.Context, event reflect.Type) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.listeners.Guard(); err != nil {
		return false, fmt.Errorf("failed to check listeners for %s: %w", event, err)
	}

	return d.listeners.Has(event), nil
}

// Dispatch implements epicenter.Dispatcher.Dispatch. It holds the write lock
// for the whole call, so dispatches and registrations never overlap. The
// context is passed to listeners but does not bound lock acquisition.
func (d *Dispatcher) Dispatch(ctx context.Context, event reflect.Type, value any) error {
	if err := epicenter.CheckEvent(event, value); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.listeners.Guard(); err != nil {
		return fmt.Errorf("failed to dispatch %s: %w", event, err)
	}

	defer d.poisonOnPanic(event)
	for entry := range d.listeners.Matching(event) {
		entry.Invoke(ctx, value)
	}

	return nil
}

// poisonOnPanic must be deferred while the write lock is held.
func (d *Dispatcher) poisonOnPanic(event reflect.Type) {
	r := recover()
	if r == nil {
		return
	}

	d.listeners.Poison()
	d.logger.Error("listener panicked, dispatcher poisoned",
		zap.String("event", event.String()),
		zap.Any("panic", r),
	)
	panic(r)
}
