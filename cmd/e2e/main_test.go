package main

import (
	"context"
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"epicenter/internal/epicenter/metrics"
)

func TestConfig_Parse(t *testing.T) {
	t.Setenv("ENGINE", "sequential")
	t.Setenv("EVENT_COUNT", "12")
	t.Setenv("METRICS_PORT", "9191")

	var cfg Config
	require.NoError(t, env.Parse(&cfg))
	assert.Equal(t, EngineSequential, cfg.Engine)
	assert.Equal(t, 12, cfg.EventCount)
	assert.Equal(t, 9191, cfg.Metrics.Port)
	assert.Equal(t, "epicenter-e2e", cfg.Tracing.ServiceName)

	t.Setenv("ENGINE", "bogus")
	require.Error(t, env.Parse(&Config{}))
}

func TestRun(t *testing.T) {
	tests := []struct {
		engine      Engine
		wantShipped int64
		wantDecided int64
	}{
		{EngineSequential, 3 * 8, 8},
		{EngineConcurrent, 3 * 8, 8},
		{EngineNull, 0, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.engine), func(t *testing.T) {
			ctx := context.Background()
			cfg := Config{Engine: tt.engine, EventCount: 8, DispatchRounds: 1, Producers: 2, BroadcastConcurrency: 2}

			d, err := newDispatcher(cfg, zap.NewNop(), metrics.NewRegistry(), nil)
			require.NoError(t, err)

			stats, err := listen(ctx, d, zap.NewNop())
			require.NoError(t, err)

			require.NoError(t, run(ctx, cfg, d, zap.NewNop()))
			assert.Equal(t, tt.wantShipped, stats.shipped.Load())
			assert.Equal(t, tt.wantDecided, stats.approved.Load()+stats.rejected.Load())
		})
	}
}

func TestOrders(t *testing.T) {
	got := orders(3, 1)
	require.Len(t, got, 3)
	assert.Equal(t, "ORD-1-0001", got[0].OrderID)
	for _, o := range got {
		assert.GreaterOrEqual(t, o.Amount, 10.0)
		assert.False(t, o.Approved)
	}
}
