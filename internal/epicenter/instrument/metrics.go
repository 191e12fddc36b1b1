package instrument

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"epicenter/internal/epicenter"
	"epicenter/internal/epicenter/metrics"
	"epicenter/internal/validator"
)

// MetricsDispatcher wraps an epicenter.Dispatcher with metrics collection
type MetricsDispatcher struct {
	dispatcher epicenter.Dispatcher
	registry   *metrics.Registry
	name       string
}

// NewMetricsDispatcher creates a new instrumented dispatcher. name labels
// every series it records.
func NewMetricsDispatcher(dispatcher epicenter.Dispatcher, registry *metrics.Registry, name string) (epicenter.Dispatcher, error) {
	d := MetricsDispatcher{
		dispatcher: dispatcher,
		registry:   registry,
		name:       name,
	}

	if err := validator.Validate("metrics dispatcher", d.dispatcher, d.registry, d.name); err != nil {
		return nil, fmt.Errorf("failed to validate metrics dispatcher deps: %w", err)
	}

	return &d, nil
}

// Register implements epicenter.Dispatcher.Register with metrics collection
func (d *MetricsDispatcher) Register(ctx context.Context, entry epicenter.Entry) error {
	err := d.dispatcher.Register(ctx, entry)

	d.registry.RecordListen(d.name, eventName(entry.Event()), err)

	return err
}

// HasListeners implements epicenter.Dispatcher.HasListeners with metrics collection
func (d *MetricsDispatcher) HasListeners(ctx context.Context, event reflect.Type) (bool, error) {
	found, err := d.dispatcher.HasListeners(ctx, event)

	d.registry.RecordHasListeners(d.name, eventName(event), found, err)

	return found, err
}

// Dispatch implements epicenter.Dispatcher.Dispatch with metrics collection
func (d *MetricsDispatcher) Dispatch(ctx context.Context, event reflect.Type, value any) error {
	start := time.Now()

	err := d.dispatcher.Dispatch(ctx, event, value)
	duration := time.Since(start)

	d.registry.RecordDispatch(d.name, eventName(event), duration, err)

	return err
}

// Broadcast implements epicenter.Broadcaster with metrics collection
func (d *MetricsDispatcher) Broadcast(ctx context.Context, event reflect.Type, clone func() any) error {
	start := time.Now()

	err := broadcast(ctx, d.dispatcher, event, clone)
	duration := time.Since(start)

	d.registry.RecordBroadcast(d.name, eventName(event), duration, err)

	return err
}
