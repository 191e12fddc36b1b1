// Package null implements a dispatcher that records listeners but never
// delivers events. Swap it in where side effects must be switched off
// without changing call sites.
package null

import (
	"context"
	"reflect"

	"epicenter/internal/epicenter"
	"epicenter/internal/epicenter/sequential"
)

// Dispatcher keeps registration bookkeeping in a sequential engine and drops
// every dispatched event.
type Dispatcher struct {
	dispatcher *sequential.Dispatcher
}

// New creates an empty null dispatcher.
func New(opts ...sequential.Option) *Dispatcher {
	return &Dispatcher{
		dispatcher: sequential.New(opts...),
	}
}

// Register implements epicenter.Dispatcher.Register.
func (d *Dispatcher) Register(ctx context.Context, entry epicenter.Entry) error {
	return d.dispatcher.Register(ctx, entry)
}

// HasListeners implements epicenter.Dispatcher.HasListeners.
func (d *Dispatcher) HasListeners(ctx context.Context, event reflect.Type) (bool, error) {
	return d.dispatcher.HasListeners(ctx, event)
}

// Dispatch does nothing.
func (d *Dispatcher) Dispatch(context.Context, reflect.Type, any) error {
	return nil
}
