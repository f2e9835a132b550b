package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	viewsettlement "savemore/contexts/community-experience/view-settlement"
	"savemore/contexts/community-experience/view-settlement/adapters/balance"
	"savemore/contexts/community-experience/view-settlement/application/eligibility"
	vsports "savemore/contexts/community-experience/view-settlement/ports"
	redisadapter "savemore/contexts/finance-core/star-ledger/adapters/redis"
	"savemore/contexts/finance-core/star-ledger/application/workers"
	"savemore/contexts/finance-core/star-ledger/ports"
	"savemore/internal/platform/auth"
	"savemore/internal/platform/config"
	"savemore/internal/platform/httpserver"
	"savemore/internal/platform/logging"
	"savemore/internal/platform/messaging"
	"savemore/internal/platform/metrics"
	"savemore/internal/platform/redisx"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const (
	balanceFanoutGroup = "savemore-balance-fanout-cg"
	outboxBatchSize    = 100
)

type APIApp struct {
	server   *httpserver.Server
	ledger   ledgerStore
	pipeline *eventPipeline
	closers  []io.Closer
	logger   *slog.Logger
}

type WorkerApp struct {
	ledger      ledgerStore
	pipeline    eventPipeline
	metrics     *metrics.Collector
	metricsAddr string
	closers     []io.Closer
	logger      *slog.Logger
}

// eventPipeline relays the ledger outbox to the event bus and, when a
// balance publisher is configured, fans ledger events out as balance pushes.
type eventPipeline struct {
	relay      workers.OutboxRelay
	subscriber ports.EventSubscriber
	fanout     *workers.BalanceFanout
	interval   time.Duration
}

func (p eventPipeline) run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return p.relay.Run(ctx, p.interval)
	})
	if p.fanout != nil && p.subscriber != nil {
		group.Go(func() error {
			if err := p.subscriber.Subscribe(ctx, workers.LedgerEventsTopic, balanceFanoutGroup, p.fanout.Handle); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		})
	}
	return group.Wait()
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, logCloser := logging.Setup(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Process: "api",
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	closers := []io.Closer{logCloser}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openLedger(ctx, cfg, logger)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	closers = append(closers, store)
	collector := metrics.New(cfg.ServiceName)

	redisClient, err := openRedis(ctx, cfg)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	if redisClient != nil {
		closers = append(closers, redisClient)
	}

	bridge := ledgerBridge{handler: store.module.Handler}
	updates := balance.Combined{balance.Poller{
		Ledger:    bridge,
		Interval:  cfg.BalancePollInterval,
		NewTicker: eligibility.NewRealTicker,
		Logger:    logger,
	}}
	if redisClient != nil {
		updates = append(updates, balance.NewRedisUpdates(redisClient, logger))
	}
	viewing := viewsettlement.NewModule(viewsettlement.Dependencies{
		Ledger:    bridge,
		Updates:   updates,
		Metrics:   collector,
		NewTicker: eligibility.NewRealTicker,
		Logger:    logger,
	})

	app := &APIApp{
		ledger: store,
		server: httpserver.New(httpserver.Dependencies{
			Ledger:             store.module,
			Viewing:            viewing,
			Auth:               auth.NewVerifier(cfg.AuthJWTSecret),
			Metrics:            collector,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
			Ready:              store.ready,
			Logger:             logger,
		}, normalizeAddr(cfg.HTTPPort)),
		logger: logger,
	}

	// Without a shared database there is no separate worker process, so the
	// API drains its own outbox.
	if cfg.LedgerDriver != config.DriverPostgres {
		bus := messaging.NewBus(logger)
		closers = append(closers, bus)
		pipeline := newPipeline(store, cfg, bus, bus, redisClient, collector)
		app.pipeline = &pipeline
	}
	app.closers = closers
	return app, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, logCloser := logging.Setup(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Process: "worker",
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	closers := []io.Closer{logCloser}
	if cfg.LedgerDriver == config.DriverMemory {
		closeAll(closers)
		return nil, errors.New("worker needs a shared ledger; LEDGER_DRIVER=memory runs everything in the api process")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openLedger(ctx, cfg, logger)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	closers = append(closers, store)

	var (
		publisher  ports.EventPublisher
		subscriber ports.EventSubscriber
	)
	if cfg.KafkaEnabled {
		kafka, err := messaging.NewKafka(cfg.KafkaBrokers, cfg.ServiceName+"-worker", logger)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		closers = append(closers, kafka)
		publisher, subscriber = kafka, kafka
	} else {
		bus := messaging.NewBus(logger)
		closers = append(closers, bus)
		publisher, subscriber = bus, bus
	}

	redisClient, err := openRedis(ctx, cfg)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	if redisClient != nil {
		closers = append(closers, redisClient)
	}

	collector := metrics.New(cfg.ServiceName + "-worker")
	return &WorkerApp{
		ledger:      store,
		pipeline:    newPipeline(store, cfg, publisher, subscriber, redisClient, collector),
		metrics:     collector,
		metricsAddr: normalizeAddr(cfg.HTTPPort),
		closers:     closers,
		logger:      logger,
	}, nil
}

func newPipeline(
	store ledgerStore,
	cfg config.Config,
	publisher ports.EventPublisher,
	subscriber ports.EventSubscriber,
	redisClient goredis.UniversalClient,
	collector *metrics.Collector,
) eventPipeline {
	relay := store.module.OutboxRelay(publisher, workers.LedgerEventsTopic, outboxBatchSize)
	relay.OnRelayed = collector.OutboxRelayed
	pipeline := eventPipeline{
		relay:      relay,
		subscriber: subscriber,
		interval:   cfg.OutboxPollInterval,
	}
	if redisClient != nil {
		fanout := store.module.BalanceFanout(countingBalancePublisher{
			next:    redisadapter.NewBalancePublisher(redisClient),
			metrics: collector,
		})
		pipeline.fanout = &fanout
	}
	return pipeline
}

func openRedis(ctx context.Context, cfg config.Config) (goredis.UniversalClient, error) {
	if !cfg.RedisEnabled {
		return nil, nil
	}
	return redisx.NewUniversalClient(ctx, redisx.Config{Addrs: redisx.ParseAddrs(cfg.RedisAddr)})
}

// Run serves HTTP until ctx is cancelled, then shuts the server down.
func (a *APIApp) Run(ctx context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"embedded_pipeline", a.pipeline != nil,
		)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	if a.pipeline != nil {
		group.Go(func() error { return a.pipeline.run(ctx) })
	}
	return group.Wait()
}

func (a *APIApp) Close() error {
	return closeAll(a.closers)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pipeline.interval.String(),
		"balance_fanout", w.pipeline.fanout != nil,
	)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", w.metrics.Handler())
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		if err := w.ledger.ready(r.Context()); err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
	})
	server := &http.Server{Addr: w.metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return w.pipeline.run(ctx) })
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func (w *WorkerApp) Close() error {
	return closeAll(w.closers)
}

// closeAll closes in reverse construction order.
func closeAll(closers []io.Closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if closers[i] == nil {
			continue
		}
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}

var (
	_ vsports.Ledger         = ledgerBridge{}
	_ vsports.ContentCatalog = ledgerBridge{}
)
