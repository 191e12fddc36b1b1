package instrument

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"epicenter/internal/epicenter"
	"epicenter/internal/epicenter/concurrent"
	"epicenter/internal/epicenter/metrics"
	"epicenter/internal/epicenter/sequential"
	"epicenter/internal/epicenter/tracing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type counter struct {
	X int
}

type stack struct {
	dispatcher epicenter.Dispatcher
	registry   *metrics.Registry
	spans      *tracetest.SpanRecorder
	logs       *observer.ObservedLogs
}

func newStack(t *testing.T, engine epicenter.Dispatcher, name string) stack {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	registry := metrics.NewRegistry()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	d, err := NewLoggedDispatcher(engine, zap.New(core), name)
	require.NoError(t, err)
	d, err = NewMetricsDispatcher(d, registry, name)
	require.NoError(t, err)
	d, err = NewTracedDispatcher(d, tracing.NewTracerWithProvider(tp, "test"), name)
	require.NoError(t, err)

	return stack{dispatcher: d, registry: registry, spans: spans, logs: logs}
}

func TestStack_DelegatesAndRecords(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, concurrent.New(), "concurrent")

	require.NoError(t, epicenter.Listen(ctx, s.dispatcher, func(ctx context.Context, event *counter) {
		event.X++
	}))
	require.NoError(t, epicenter.Listen(ctx, s.dispatcher, func(ctx context.Context, event *counter) {
		event.X *= 10
	}))

	found, err := epicenter.HasListeners[counter](ctx, s.dispatcher)
	require.NoError(t, err)
	require.True(t, found)

	ev := &counter{X: 1}
	require.NoError(t, epicenter.Dispatch(ctx, s.dispatcher, ev))
	require.Equal(t, 20, ev.X)

	require.NoError(t, epicenter.Broadcast(ctx, s.dispatcher, counter{X: 1}))

	const expected = `
# HELP epicenter_dispatch_total Total number of dispatch operations
# TYPE epicenter_dispatch_total counter
epicenter_dispatch_total{dispatcher="concurrent",event="instrument.counter",status="success"} 1
# HELP epicenter_listen_total Total number of listener registrations
# TYPE epicenter_listen_total counter
epicenter_listen_total{dispatcher="concurrent",event="instrument.counter",status="success"} 2
# HELP epicenter_broadcast_total Total number of broadcast operations
# TYPE epicenter_broadcast_total counter
epicenter_broadcast_total{dispatcher="concurrent",event="instrument.counter",status="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(s.registry.Gatherer(), strings.NewReader(expected),
		"epicenter_dispatch_total", "epicenter_listen_total", "epicenter_broadcast_total"))

	var names []string
	for _, span := range s.spans.Ended() {
		names = append(names, span.Name())
		assert.Equal(t, codes.Ok, span.Status().Code)
	}
	assert.Equal(t, []string{
		"dispatcher.listen",
		"dispatcher.listen",
		"dispatcher.has_listeners",
		"dispatcher.dispatch",
		"dispatcher.broadcast",
	}, names)

	assert.Equal(t, 1, s.logs.FilterMessage("event dispatched").Len())
	assert.Equal(t, 2, s.logs.FilterMessage("listener registered").Len())
	assert.Equal(t, 0, s.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestStack_ListenersSeeDispatchSpan(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, sequential.New(), "sequential")

	var valid bool
	require.NoError(t, epicenter.Listen(ctx, s.dispatcher, func(ctx context.Context, event *counter) {
		valid = trace.SpanContextFromContext(ctx).IsValid()
	}))
	require.NoError(t, epicenter.Dispatch(ctx, s.dispatcher, &counter{}))
	require.True(t, valid)
}

func TestStack_RecordsFailures(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, sequential.New(), "sequential")

	err := epicenter.Broadcast(ctx, s.dispatcher, counter{})
	require.ErrorIs(t, err, epicenter.ErrBroadcastUnsupported)
	assert.Equal(t, 1, s.logs.FilterMessage("broadcast unsupported by engine").Len())

	err = s.dispatcher.Dispatch(ctx, epicenter.TypeOf[counter](), counter{})
	require.ErrorIs(t, err, epicenter.ErrInvalidEvent)
	assert.Equal(t, 1, s.logs.FilterMessage("failed to dispatch event").Len())

	const expected = `
# HELP epicenter_dispatch_total Total number of dispatch operations
# TYPE epicenter_dispatch_total counter
epicenter_dispatch_total{dispatcher="sequential",event="instrument.counter",status="error"} 1
# HELP epicenter_broadcast_total Total number of broadcast operations
# TYPE epicenter_broadcast_total counter
epicenter_broadcast_total{dispatcher="sequential",event="instrument.counter",status="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(s.registry.Gatherer(), strings.NewReader(expected),
		"epicenter_dispatch_total", "epicenter_broadcast_total"))

	for _, span := range s.spans.Ended() {
		assert.Equal(t, codes.Error, span.Status().Code)
	}
}

func TestConstructors_Validate(t *testing.T) {
	engine := sequential.New()

	_, err := NewLoggedDispatcher(nil, zap.NewNop(), "x")
	require.Error(t, err)
	_, err = NewLoggedDispatcher(engine, nil, "x")
	require.Error(t, err)
	_, err = NewMetricsDispatcher(engine, nil, "x")
	require.Error(t, err)
	_, err = NewMetricsDispatcher(engine, metrics.NewRegistry(), "")
	require.Error(t, err)
	_, err = NewTracedDispatcher(engine, nil, "x")
	require.Error(t, err)
}
