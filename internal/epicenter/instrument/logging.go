package instrument

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"epicenter/internal/epicenter"
	"epicenter/internal/validator"
)

// LoggedDispatcher wraps an epicenter.Dispatcher with structured logging.
type LoggedDispatcher struct {
	dispatcher epicenter.Dispatcher
	logger     *zap.Logger
}

// NewLoggedDispatcher creates a dispatcher that logs every operation at
// debug level and failures at error level.
func NewLoggedDispatcher(dispatcher epicenter.Dispatcher, logger *zap.Logger, name string) (epicenter.Dispatcher, error) {
	if err := validator.Validate("logged dispatcher", dispatcher, logger, name); err != nil {
		return nil, fmt.Errorf("failed to validate logged dispatcher deps: %w", err)
	}

	return &LoggedDispatcher{
		dispatcher: dispatcher,
		logger:     logger.With(zap.String("dispatcher", name)),
	}, nil
}

// Register implements epicenter.Dispatcher.Register with logging
func (d *LoggedDispatcher) Register(ctx context.Context, entry epicenter.Entry) error {
	logger := d.logger.With(zap.String("event", eventName(entry.Event())))

	if err := d.dispatcher.Register(ctx, entry); err != nil {
		const msg = "failed to register listener"
		logger.Error(msg, zap.Error(err))
		return err
	}

	logger.Debug("listener registered")
	return nil
}

// HasListeners implements epicenter.Dispatcher.HasListeners with logging
func (d *LoggedDispatcher) HasListeners(ctx context.Context, event reflect.Type) (bool, error) {
	logger := d.logger.With(zap.String("event", eventName(event)))

	found, err := d.dispatcher.HasListeners(ctx, event)
	if err != nil {
		logger.Error("failed to check listeners", zap.Error(err))
		return false, err
	}

	logger.Debug("checked listeners", zap.Bool("found", found))
	return found, nil
}

// Dispatch implements epicenter.Dispatcher.Dispatch with logging
func (d *LoggedDispatcher) Dispatch(ctx context.Context, event reflect.Type, value any) error {
	logger := d.logger.With(zap.String("event", eventName(event)))
	logger.Debug("dispatching event")

	if err := d.dispatcher.Dispatch(ctx, event, value); err != nil {
		logger.Error("failed to dispatch event", zap.Error(err))
		return err
	}

	logger.Debug("event dispatched")
	return nil
}

// Broadcast implements epicenter.Broadcaster with logging
func (d *LoggedDispatcher) Broadcast(ctx context.Context, event reflect.Type, clone func() any) error {
	logger := d.logger.With(zap.String("event", eventName(event)))
	logger.Debug("broadcasting event")

	err := broadcast(ctx, d.dispatcher, event, clone)
	switch {
	case err == nil:
	case errors.Is(err, epicenter.ErrBroadcastUnsupported):
		logger.Debug("broadcast unsupported by engine")
		return err
	default:
		logger.Error("failed to broadcast event", zap.Error(err))
		return err
	}

	logger.Debug("event broadcast")
	return nil
}
