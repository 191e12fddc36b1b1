package instrument

import (
	"context"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel/attribute"

	"epicenter/internal/epicenter"
	"epicenter/internal/epicenter/tracing"
	"epicenter/internal/validator"
)

// TracedDispatcher wraps an epicenter.Dispatcher with distributed tracing
// Layer order: TracedDispatcher -> MetricsDispatcher -> engine (real thing)
type TracedDispatcher struct {
	dispatcher epicenter.Dispatcher
	tracer     *tracing.Tracer
	name       string
}

// NewTracedDispatcher creates a new traced dispatcher that wraps a metrics dispatcher
func NewTracedDispatcher(dispatcher epicenter.Dispatcher, tracer *tracing.Tracer, name string) (epicenter.Dispatcher, error) {
	d := TracedDispatcher{
		dispatcher: dispatcher,
		tracer:     tracer,
		name:       name,
	}

	if err := validator.Validate("traced dispatcher", d.dispatcher, d.tracer, d.name); err != nil {
		return nil, fmt.Errorf("failed to validate traced dispatcher deps: %w", err)
	}

	return &d, nil
}

// Register implements epicenter.Dispatcher.Register with distributed tracing
func (d *TracedDispatcher) Register(ctx context.Context, entry epicenter.Entry) error {
	ctx, span := d.tracer.StartSpan(ctx, "dispatcher.listen")
	defer span.End()

	span.SetAttributes(d.tracer.EventAttributes(d.name, eventName(entry.Event()))...)

	err := d.dispatcher.Register(ctx, entry)

	d.tracer.End(ctx, err)
	return err
}

// HasListeners implements epicenter.Dispatcher.HasListeners with distributed tracing
func (d *TracedDispatcher) HasListeners(ctx context.Context, event reflect.Type) (bool, error) {
	ctx, span := d.tracer.StartSpan(ctx, "dispatcher.has_listeners")
	defer span.End()

	span.SetAttributes(d.tracer.EventAttributes(d.name, eventName(event))...)

	found, err := d.dispatcher.HasListeners(ctx, event)
	if err == nil {
		span.SetAttributes(attribute.Bool("epicenter.has_listeners", found))
	}

	d.tracer.End(ctx, err)
	return found, err
}

// Dispatch implements epicenter.Dispatcher.Dispatch with distributed tracing.
// Listeners receive the context carrying the dispatch span.
func (d *TracedDispatcher) Dispatch(ctx context.Context, event reflect.Type, value any) error {
	ctx, span := d.tracer.StartSpan(ctx, "dispatcher.dispatch")
	defer span.End()

	span.SetAttributes(d.tracer.EventAttributes(d.name, eventName(event))...)

	err := d.dispatcher.Dispatch(ctx, event, value)

	d.tracer.End(ctx, err)
	return err
}

// Broadcast implements epicenter.Broadcaster with distributed tracing
func (d *TracedDispatcher) Broadcast(ctx context.Context, event reflect.Type, clone func() any) error {
	ctx, span := d.tracer.StartSpan(ctx, "dispatcher.broadcast")
	defer span.End()

	span.SetAttributes(d.tracer.EventAttributes(d.name, eventName(event))...)

	err := broadcast(ctx, d.dispatcher, event, clone)

	d.tracer.End(ctx, err)
	return err
}
