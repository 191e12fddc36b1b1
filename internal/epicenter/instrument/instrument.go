// Package instrument decorates an epicenter.Dispatcher with logging, metrics
// and tracing. Decorators stack in the same order as the rest of the
// codebase: TracedDispatcher -> MetricsDispatcher -> LoggedDispatcher ->
// engine.
package instrument

import (
	"context"
	"reflect"

	"epicenter/internal/epicenter"
)

func eventName(event reflect.Type) string {
	if event == nil {
		return "<nil>"
	}

	return event.String()
}

// broadcast forwards to d when it can fan out.
func broadcast(ctx context.Context, d epicenter.Dispatcher, event reflect.Type, clone func() any) error {
	b, ok := d.(epicenter.Broadcaster)
	if !ok {
		return epicenter.ErrBroadcastUnsupported
	}

	return b.Broadcast(ctx, event, clone)
}
