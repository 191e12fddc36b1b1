package null

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"epicenter/internal/epicenter"
)

type orderShipped struct {
	OrderID uint64
}

func TestDispatcher_SuppressesDelivery(t *testing.T) {
	ctx := context.Background()
	d := New()

	var called bool
	require.NoError(t, epicenter.Listen(ctx, d, func(ctx context.Context, event *orderShipped) {
		called = true
		event.OrderID = 0
	}))

	found, err := epicenter.HasListeners[orderShipped](ctx, d)
	require.NoError(t, err)
	require.True(t, found)

	ev := &orderShipped{OrderID: 123}
	require.NoError(t, epicenter.Dispatch(ctx, d, ev))
	require.False(t, called)
	require.Equal(t, uint64(123), ev.OrderID)
}

func TestDispatcher_Bookkeeping(t *testing.T) {
	ctx := context.Background()
	d := New()

	found, err := epicenter.HasListeners[orderShipped](ctx, d)
	require.NoError(t, err)
	require.False(t, found)

	require.ErrorIs(t, epicenter.Listen[orderShipped](ctx, d, nil), epicenter.ErrNilListener)
	require.ErrorIs(t, epicenter.Broadcast(ctx, d, orderShipped{}), epicenter.ErrBroadcastUnsupported)

	// not even validated: nothing is delivered
	require.NoError(t, d.Dispatch(ctx, nil, nil))
}
