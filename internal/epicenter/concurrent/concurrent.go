// Package concurrent implements the context-aware dispatch engine.
//
// Every operation suspends at lock acquisition and gives up with the
// context's error if the context ends first. Dispatch keeps the
// mutation-threading contract of the sequential engine: listeners run in
// registration order and each one completes before the next starts.
// Broadcast is the explicit fan-out alternative, where every listener gets
// its own copy of the event and runs concurrently.
package concurrent

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"epicenter/internal/epicenter"
	"epicenter/internal/epicenter/registry"
)

// lockWeight is the semaphore capacity. Readers take one unit, writers take
// all of it.
const lockWeight = 1 << 20

// Dispatcher is the concurrent engine. Create one with New.
type Dispatcher struct {
	lock        *semaphore.Weighted
	listeners   *registry.Registry
	logger      *zap.Logger
	concurrency int
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

// WithConcurrency limits how many listeners Broadcast runs at once.
// Values below one mean no limit.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		d.concurrency = n
	}
}

// New creates an empty concurrent dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		lock:      semaphore.NewWeighted(lockWeight),
		listeners: registry.New(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Register implements epicenter.Dispatcher.Register. The listener is visible
// to any dispatch acquired after Register returns.
func (d *Dispatcher) Register(ctx context.Context, entry epicenter.Entry) error {
	if err := d.lock.Acquire(ctx, lockWeight); err != nil {
		return fmt.Errorf("failed to acquire lock for register: %w", err)
	}
	defer d.lock.Release(lockWeight)

	if err := d.listeners.Guard(); err != nil {
		return fmt.Errorf("failed to register listener: %w", err)
	}

	if err := d.listeners.Append(entry); err != nil {
		return fmt.Errorf("failed to register listener: %w", err)
	}

	return nil
}

// HasListeners implements epicenter.Dispatcher.HasListeners.
func (d *Dispatcher) HasListeners(ctx context.Context, event reflect.Type) (bool, error) {
	if err := d.lock.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("failed to acquire lock for has listeners: %w", err)
	}
	defer d.lock.Release(1)

	if err := d.listeners.Guard(); err != nil {
		return false, fmt.Errorf("failed to check listeners for %s: %w", event, err)
	}

	return d.listeners.Has(event), nil
}

// Dispatch implements epicenter.Dispatcher.Dispatch. The registry is held
// exclusively until every matched listener has returned.
func (d *Dispatcher) Dispatch(ctx context.Context, event reflect.Type, value any) error {
	if err := epicenter.CheckEvent(event, value); err != nil {
		return err
	}

	if err := d.lock.Acquire(ctx, lockWeight); err != nil {
		return fmt.Errorf("failed to acquire lock for dispatch: %w", err)
	}
	defer d.lock.Release(lockWeight)

	if err := d.listeners.Guard(); err != nil {
		return fmt.Errorf("failed to dispatch %s: %w", event, err)
	}

	defer d.poisonOnPanic(event)
	for entry := range d.listeners.Matching(event) {
		entry.Invoke(ctx, value)
	}

	return nil
}

// Broadcast implements epicenter.Broadcaster. It holds the registry shared,
// so broadcasts may overlap each other but never a registration or a
// Dispatch. It returns once every listener has finished.
func (d *Dispatcher) Broadcast(ctx context.Context, event reflect.Type, clone func() any) error {
	if clone == nil {
		return fmt.Errorf("%w: missing clone function", epicenter.ErrInvalidEvent)
	}

	if err := d.lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire lock for broadcast: %w", err)
	}
	defer d.lock.Release(1)

	if err := d.listeners.Guard(); err != nil {
		return fmt.Errorf("failed to broadcast %s: %w", event, err)
	}

	var g errgroup.Group
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}

	for entry := range d.listeners.Matching(event) {
		value := clone()
		if err := epicenter.CheckEvent(event, value); err != nil {
			// wait for the listeners already started before reporting
			_ = g.Wait()
			return err
		}

		g.Go(func() error {
			entry.Invoke(ctx, value)
			return nil
		})
	}

	return g.Wait()
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
