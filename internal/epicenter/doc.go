// Package epicenter is an in-process, typed event dispatcher.
//
// Listeners register for a concrete Go type and only ever receive events of
// exactly that type:
//
//	epicenter.Listen(ctx, d, func(ctx context.Context, e *OrderShipped) {
//	    log.Println("shipped", e.OrderID)
//	})
//
//	err := epicenter.Dispatch(ctx, d, &OrderShipped{OrderID: 123})
//
// Listeners for every event type share one registry. Each entry stores the
// reflect.Type it was registered for and a closure that asserts the opaque
// event back to that type. Dispatch filters by type before invoking, so a
// listener is never handed a value of another type.
//
// Three engines implement Dispatcher: sequential (blocking), concurrent
// (context-aware locking, plus Broadcast fan-out) and null (records
// listeners, delivers nothing). A listener registered from inside another
// listener deadlocks: dispatch holds the registry exclusively.
package epicenter
