package epicenter

import "errors"

var (
	// ErrLockPoisoned is returned once a listener has panicked while the
	// registry lock was held. The dispatcher is unusable from then on.
	ErrLockPoisoned = errors.New("listener lock is poisoned")

	// ErrUnregisteredEvent means no registration exists for the exact event
	// type. Dispatching to zero listeners is not an error; this value is
	// reserved for a strict mode and used as the panic payload when an erased
	// listener is handed a value of the wrong type.
	ErrUnregisteredEvent = errors.New("event type is not registered with the dispatcher")

	// ErrNilListener is returned when registering a nil listener function.
	ErrNilListener = errors.New("listener cannot be nil")

	// ErrInvalidEvent is returned when the value handed to a dispatcher is
	// nil or is not a pointer to the declared event type.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrBroadcastUnsupported is returned by Broadcast for engines that only
	// implement mutation-threading dispatch.
	ErrBroadcastUnsupported = errors.New("dispatcher does not support broadcast")
)
