package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"epicenter/internal/epicenter"
	"epicenter/internal/epicenter/concurrent"
	"epicenter/internal/epicenter/instrument"
	"epicenter/internal/epicenter/metrics"
	"epicenter/internal/epicenter/null"
	"epicenter/internal/epicenter/sequential"
	"epicenter/internal/epicenter/tracing"
)

type Config struct {
	Engine               Engine        `env:"ENGINE" envDefault:"concurrent"`
	EventCount           int           `env:"EVENT_COUNT" envDefault:"100"`
	DispatchRounds       int           `env:"DISPATCH_ROUNDS" envDefault:"1"`
	Producers            int           `env:"PRODUCERS" envDefault:"4"`
	BroadcastConcurrency int           `env:"BROADCAST_CONCURRENCY" envDefault:"8"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	CPUProfile           string        `env:"CPU_PROFILE"`
	MemProfile           string        `env:"MEM_PROFILE"`
	TracingEnabled       bool          `env:"TRACING_ENABLED" envDefault:"false"`
	MetricsLinger        time.Duration `env:"METRICS_LINGER" envDefault:"0s"`

	Metrics metrics.ServerConfig
	Tracing tracing.Config
}

// Engine selects the dispatch engine.
type Engine string

const (
	EngineSequential Engine = "sequential"
	EngineConcurrent Engine = "concurrent"
	EngineNull       Engine = "null"
)

func (e *Engine) UnmarshalText(text []byte) error {
	switch v := Engine(text); v {
	case EngineSequential, EngineConcurrent, EngineNull:
		*e = v
		return nil
	default:
		return fmt.Errorf("unknown engine %q", text)
	}
}

// OrderPlaced is dispatched when a customer places an order.
type OrderPlaced struct {
	OrderID    string
	CustomerID string
	Amount     float64
	Discount   float64
	Approved   bool
}

// OrderShipped is broadcast once an order leaves the warehouse.
type OrderShipped struct {
	OrderID string
	Carrier string
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse environment variables: %v", err)
	}

	if cfg.CPUProfile != "" {
		cpuProfile, err := os.Create(cfg.CPUProfile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer cpuProfile.Close()
		if err := pprof.StartCPUProfile(cpuProfile); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	if cfg.MemProfile != "" {
		defer func() {
			memProfile, err := os.Create(cfg.MemProfile)
			if err != nil {
				log.Fatal("could not create memory profile: ", err)
			}
			defer memProfile.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(memProfile); err != nil {
				log.Fatal("could not write memory profile: ", err)
			}
		}()
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	metricsRegistry := metrics.NewRegistry()
	metricsRegistry.SetSystemInfo("e2e", time.Now().Format(time.RFC3339))

	metricsServer := metrics.NewServer(cfg.Metrics, metricsRegistry, logger)
	go func() {
		if err := metricsServer.Start(context.Background()); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("metrics server started",
		zap.String("endpoint", fmt.Sprintf("http://localhost:%d/metrics", cfg.Metrics.Port)),
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port)),
	)

	var tracer *tracing.Tracer
	if cfg.TracingEnabled {
		t, cleanup, err := tracing.NewTracer(cfg.Tracing)
		if err != nil {
			log.Fatalf("failed to initialize tracing: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := cleanup(shutdownCtx); err != nil {
				logger.Error("failed to cleanup tracing", zap.Error(err))
			}
		}()
		tracer = t

		logger.Info("tracing initialized",
			zap.String("service", cfg.Tracing.ServiceName),
			zap.String("jaeger_endpoint", cfg.Tracing.JaegerEndpoint),
			zap.Float64("sample_rate", cfg.Tracing.SampleRate),
		)
	}

	dispatcher, err := newDispatcher(cfg, logger, metricsRegistry, tracer)
	if err != nil {
		log.Fatalf("failed to create dispatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()

	stats, err := listen(ctx, dispatcher, logger)
	if err != nil {
		log.Fatalf("failed to register listeners: %v", err)
	}
	metricsServer.SetReady(true)

	now := time.Now()
	if err := run(ctx, cfg, dispatcher, logger); err != nil {
		logger.Error("workload failed", zap.Error(err))
	}

	logger.Info("workload complete",
		zap.String("engine", string(cfg.Engine)),
		zap.Int64("approved", stats.approved.Load()),
		zap.Int64("rejected", stats.rejected.Load()),
		zap.Int64("shipped", stats.shipped.Load()),
		zap.Duration("elapsed", time.Since(now)),
	)

	if cfg.MetricsLinger > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(cfg.MetricsLinger):
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop metrics server", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		log.Printf("invalid log level %q, defaulting to info: %v", level, err)
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build(zap.AddCaller())
}

// newDispatcher builds the engine and stacks the decorators on top:
// traced -> metrics -> logged -> engine.
func newDispatcher(cfg Config, logger *zap.Logger, registry *metrics.Registry, tracer *tracing.Tracer) (epicenter.Dispatcher, error) {
	name := string(cfg.Engine)
	engineLogger := logger.Named(name)

	var d epicenter.Dispatcher
	switch cfg.Engine {
	case EngineSequential:
		d = sequential.New(sequential.WithLogger(engineLogger))
	case EngineNull:
		d = null.New(sequential.WithLogger(engineLogger))
	default:
		d = concurrent.New(
			concurrent.WithLogger(engineLogger),
			concurrent.WithConcurrency(cfg.BroadcastConcurrency),
		)
	}

	d, err := instrument.NewLoggedDispatcher(d, logger, name)
	if err != nil {
		return nil, err
	}

	d, err = instrument.NewMetricsDispatcher(d, registry, name)
	if err != nil {
		return nil, err
	}

	if tracer == nil {
		return d, nil
	}

	return instrument.NewTracedDispatcher(d, tracer, name)
}

type orderStats struct {
	approved atomic.Int64
	rejected atomic.Int64
	shipped  atomic.Int64
}

// listen wires the order listeners. OrderPlaced listeners depend on running
// in order: pricing applies the discount before the fraud check reads the
// amount.
func listen(ctx context.Context, d epicenter.Dispatcher, logger *zap.Logger) (*orderStats, error) {
	var stats orderStats
	placed := epicenter.Using[OrderPlaced](d)

	if err := placed.Listen(ctx, func(_ context.Context, o *OrderPlaced) {
		if o.Amount > 500 {
			o.Discount = o.Amount * 0.1
			o.Amount -= o.Discount
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to register pricing listener: %w", err)
	}

	if err := placed.Listen(ctx, func(_ context.Context, o *OrderPlaced) {
		o.Approved = o.Amount < 900
	}); err != nil {
		return nil, fmt.Errorf("failed to register fraud listener: %w", err)
	}

	if err := placed.Listen(ctx, func(_ context.Context, o *OrderPlaced) {
		if o.Approved {
			stats.approved.Add(1)
			return
		}
		stats.rejected.Add(1)
		logger.Debug("order rejected", zap.String("order_id", o.OrderID), zap.Float64("amount", o.Amount))
	}); err != nil {
		return nil, fmt.Errorf("failed to register tally listener: %w", err)
	}

	for _, carrier := range []string{"notify", "invoice", "analytics"} {
		if err := epicenter.Listen(ctx, d, func(_ context.Context, s *OrderShipped) {
			stats.shipped.Add(1)
			logger.Debug("shipment handled", zap.String("order_id", s.OrderID), zap.String("listener", carrier))
		}); err != nil {
			return nil, fmt.Errorf("failed to register %s shipment listener: %w", carrier, err)
		}
	}

	return &stats, nil
}

// run has each producer dispatch its share of orders every round, then
// announce the shipments.
func run(ctx context.Context, cfg Config, d epicenter.Dispatcher, logger *zap.Logger) error {
	producers := max(cfg.Producers, 1)

	for round := 0; round < cfg.DispatchRounds; round++ {
		g, gctx := errgroup.WithContext(ctx)
		for p := 0; p < producers; p++ {
			g.Go(func() error {
				for _, o := range orders(cfg.EventCount/producers, p) {
					if err := epicenter.Dispatch(gctx, d, &o); err != nil {
						return fmt.Errorf("failed to dispatch order %s: %w", o.OrderID, err)
					}

					err := epicenter.Broadcast(gctx, d, OrderShipped{OrderID: o.OrderID, Carrier: "ground"})
					switch {
					case err == nil:
					case errors.Is(err, epicenter.ErrBroadcastUnsupported):
						s := OrderShipped{OrderID: o.OrderID, Carrier: "ground"}
						if err := epicenter.Dispatch(gctx, d, &s); err != nil {
							return fmt.Errorf("failed to dispatch shipment %s: %w", o.OrderID, err)
						}
					default:
						return fmt.Errorf("failed to broadcast shipment %s: %w", o.OrderID, err)
					}
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("dispatch round %d complete", round+1))
	}

	return nil
}

func orders(count, producer int) []OrderPlaced {
	customers := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	orders := make([]OrderPlaced, 0, count)

	for i := 0; i < count; i++ {
		orders = append(orders, OrderPlaced{
			OrderID:    fmt.Sprintf("ORD-%d-%04d", producer, i+1),
			CustomerID: customers[rand.Intn(len(customers))],
			Amount:     10.0 + rand.Float64()*990.0,
		})
	}

	return orders
}
