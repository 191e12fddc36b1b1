package epicenter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epicenter/internal/epicenter"
	"epicenter/internal/epicenter/concurrent"
	"epicenter/internal/epicenter/sequential"
)

type orderShipped struct {
	OrderID uint64
}

type userCreated struct {
	Name string
}

type tagged struct {
	Tags []string
}

func (t tagged) Clone() tagged {
	return tagged{Tags: append([]string(nil), t.Tags...)}
}

func TestNewEntry(t *testing.T) {
	_, err := epicenter.NewEntry[orderShipped](nil)
	require.ErrorIs(t, err, epicenter.ErrNilListener)

	entry, err := epicenter.NewEntry(func(ctx context.Context, event *orderShipped) {})
	require.NoError(t, err)
	assert.True(t, entry.Valid())
	assert.Equal(t, epicenter.TypeOf[orderShipped](), entry.Event())
	assert.True(t, entry.Matches(epicenter.TypeOf[orderShipped]()))
	assert.False(t, entry.Matches(epicenter.TypeOf[userCreated]()))
	assert.False(t, epicenter.Entry{}.Valid())
}

func TestEntryInvokeMismatchPanics(t *testing.T) {
	entry, err := epicenter.NewEntry(func(ctx context.Context, event *orderShipped) {})
	require.NoError(t, err)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, epicenter.ErrUnregisteredEvent))
	}()

	entry.Invoke(context.Background(), &userCreated{Name: "ada"})
}

func TestCheckEvent(t *testing.T) {
	var nilOrder *orderShipped

	tests := []struct {
		name    string
		value   any
		wantErr bool
	}{
		{"pointer to type", &orderShipped{OrderID: 1}, false},
		{"nil value", nil, true},
		{"typed nil pointer", nilOrder, true},
		{"value instead of pointer", orderShipped{OrderID: 1}, true},
		{"other type", &userCreated{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := epicenter.CheckEvent(epicenter.TypeOf[orderShipped](), tt.value)
			if tt.wantErr {
				require.ErrorIs(t, err, epicenter.ErrInvalidEvent)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestUsing(t *testing.T) {
	ctx := context.Background()
	d := sequential.New()
	orders := epicenter.Using[orderShipped](d)

	found, err := orders.HasListeners(ctx)
	require.NoError(t, err)
	require.False(t, found)

	var calls int
	require.NoError(t, orders.Listen(ctx, func(ctx context.Context, event *orderShipped) {
		assert.Equal(t, uint64(123), event.OrderID)
		calls++
	}))

	found, err = orders.HasListeners(ctx)
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, orders.Dispatch(ctx, &orderShipped{OrderID: 123}))
	require.Equal(t, 1, calls)

	require.ErrorIs(t, orders.Dispatch(ctx, nil), epicenter.ErrInvalidEvent)
	require.ErrorIs(t, orders.Listen(ctx, nil), epicenter.ErrNilListener)
}

func TestBroadcastUnsupported(t *testing.T) {
	err := epicenter.Broadcast(context.Background(), sequential.New(), orderShipped{OrderID: 1})
	require.ErrorIs(t, err, epicenter.ErrBroadcastUnsupported)
}

func TestBroadcastUsesCloner(t *testing.T) {
	ctx := context.Background()
	d := concurrent.New()

	for range 3 {
		require.NoError(t, epicenter.Listen(ctx, d, func(ctx context.Context, event *tagged) {
			event.Tags[0] = "mutated"
			event.Tags = append(event.Tags, "extra")
		}))
	}

	original := tagged{Tags: []string{"a"}}
	require.NoError(t, epicenter.Broadcast(ctx, d, original))
	assert.Equal(t, []string{"a"}, original.Tags)
}
