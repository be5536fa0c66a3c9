// Command ingestd launches the release ingestion and fanout pipeline:
// scheduler, fetch/parse/canonicalize/change-detect, priority scoring,
// subscription matching, and per-channel delivery workers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegraph/conc"

	"github.com/solewatch/releasecore/errs"
	"github.com/solewatch/releasecore/internal/canon"
	"github.com/solewatch/releasecore/internal/changedetect"
	"github.com/solewatch/releasecore/internal/config"
	"github.com/solewatch/releasecore/internal/delivery"
	"github.com/solewatch/releasecore/internal/fanout"
	"github.com/solewatch/releasecore/internal/fetch"
	"github.com/solewatch/releasecore/internal/healthtracker"
	"github.com/solewatch/releasecore/internal/migrations"
	"github.com/solewatch/releasecore/internal/parsers"
	"github.com/solewatch/releasecore/internal/schema"
	"github.com/solewatch/releasecore/internal/scheduler"
	"github.com/solewatch/releasecore/internal/scoring"
	"github.com/solewatch/releasecore/internal/storage"
	"github.com/solewatch/releasecore/internal/storage/memstore"
	"github.com/solewatch/releasecore/internal/storage/pgstore"
	"github.com/solewatch/releasecore/internal/subscription"
	"github.com/solewatch/releasecore/internal/telemetry"
)

const (
	defaultConfigPath       = "config/app.yaml"
	ingestdLoggerPrefix     = "releasecore-ingestd "
	shutdownTimeout         = 30 * time.Second
	schedulerShutdownTimeout = 10 * time.Second
	deliveryShutdownTimeout  = 10 * time.Second
	storageShutdownTimeout   = 5 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
	schedulerTickInterval    = 1 * time.Second
	deliveryPollInterval     = 500 * time.Millisecond
	healthFlushInterval      = 5 * time.Second
)

func main() {
	cfgPathFlag := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := newIngestdLogger()

	configPath := resolveConfigPath(cfgPathFlag)
	appCfg, loadedFromFile, err := config.LoadOrDefault(configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if !loadedFromFile {
		logger.Printf("configuration file not found, using defaults")
	}
	logger.Printf("configuration initialised: env=%s", appCfg.Environment)

	targets, err := config.LoadTargetCatalog(appCfg.TargetCatalogPath)
	if err != nil {
		logger.Fatalf("load target catalog: %v", err)
	}
	logger.Printf("target catalog loaded: targets=%d", len(targets))

	weights, weightsLoaded, err := config.LoadScoringWeights(appCfg.ScoringModelPath)
	if err != nil {
		logger.Fatalf("load scoring weights: %v", err)
	}
	if !weightsLoaded {
		logger.Printf("scoring model file not found, using defaults")
	}

	telemetryProvider, err := initTelemetry(ctx, logger, appCfg)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}

	gateway, pool, err := buildGateway(ctx, logger, appCfg)
	if err != nil {
		logger.Fatalf("initialise storage gateway: %v", err)
	}

	var lifecycle conc.WaitGroup

	health := healthtracker.New(appCfg.ScraperCBThreshold, appCfg.CBCooldown())
	canonicalizer := canon.New(gateway, storage.QuarantineAdapter{Gateway: gateway})
	detector := changedetect.New()
	scorer := scoring.New(weights)
	fetchClient := fetch.NewClient()
	registry := parsers.NewRegistry()
	scriptRuntime := parsers.NewScriptRuntime(0)
	fanoutQueue := fanout.New(gateway)

	sched := buildScheduler(health, fetchClient, registry, scriptRuntime, canonicalizer, detector, scorer, gateway, fanoutQueue, logger, appCfg.MaxParallelPerPool)
	for _, target := range targets {
		sched.AddTarget(target, 0.5)
	}

	lifecycle.Go(func() { health.Run(ctx, gateway, healthFlushInterval) })
	lifecycle.Go(func() { runSchedulerLoop(ctx, sched, schedulerTickInterval) })
	startDeliveryWorkers(&lifecycle, ctx, logger, gateway, appCfg)

	logger.Print("ingestd started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	performGracefulShutdown(shutdownCtx, logger, gracefulShutdownConfig{
		mainCancel: cancel,
		lifecycle:  &lifecycle,
		pool:       pool,
		telemetry:  telemetryProvider,
	})
	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
}

func parseFlags() string {
	cfgPath := flag.String("config", "", fmt.Sprintf("Path to application configuration file (default: %s)", defaultConfigPath))
	flag.Parse()
	return *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newIngestdLogger() *log.Logger {
	return log.New(os.Stdout, ingestdLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("RELEASECORE_CONFIG"); v != "" {
		return v
	}
	return defaultConfigPath
}

func initTelemetry(ctx context.Context, logger *log.Logger, appCfg config.AppConfig) (*telemetry.Provider, error) {
	telemetryCfg := telemetry.DefaultConfig()
	if appCfg.Telemetry.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = appCfg.Telemetry.OTLPEndpoint
	}
	if appCfg.Telemetry.ServiceName != "" {
		telemetryCfg.ServiceName = appCfg.Telemetry.ServiceName
	}
	telemetryCfg.Environment = string(appCfg.Environment)
	telemetryCfg.OTLPInsecure = appCfg.Telemetry.OTLPInsecure
	telemetryCfg.EnableMetrics = appCfg.Telemetry.EnableMetrics

	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}
	if telemetryCfg.Enabled {
		logger.Printf("telemetry initialized: endpoint=%s, service=%s", telemetryCfg.OTLPEndpoint, telemetryCfg.ServiceName)
	} else {
		logger.Printf("telemetry disabled")
	}
	return provider, nil
}

// buildGateway constructs the storage.Gateway backend: pgstore against
// DatabaseDSN when configured (applying migrations first), memstore
// otherwise. The returned pool is non-nil only for the pgstore path, so
// shutdown can close it.
func buildGateway(ctx context.Context, logger *log.Logger, appCfg config.AppConfig) (storage.Gateway, *pgxpool.Pool, error) {
	if appCfg.DatabaseDSN == "" {
		logger.Print("no database_dsn configured; using in-memory storage gateway")
		return memstore.New(), nil, nil
	}

	if err := migrations.Apply(ctx, appCfg.DatabaseDSN, "", logger); err != nil {
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, appCfg.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	pgstore.ObservePoolMetrics(pool, "ingestd")
	logger.Print("storage gateway: postgres")
	return pgstore.New(pool), pool, nil
}

// buildScheduler wires the fetch -> parse -> canonicalize -> change
// detect -> score -> subscription match -> fanout pipeline as the
// scheduler.Pipeline dispatched on every due target.
func buildScheduler(
	health *healthtracker.Tracker,
	fetchClient *fetch.Client,
	registry *parsers.Registry,
	scriptRuntime *parsers.ScriptRuntime,
	canonicalizer *canon.Canonicalizer,
	detector *changedetect.Detector,
	scorer *scoring.Scorer,
	gateway storage.Gateway,
	fanoutQueue *fanout.Queue,
	logger *log.Logger,
	maxParallelPerPool int,
) *scheduler.Scheduler {
	pipeline := func(ctx context.Context, target schema.Target) error {
		result, err := fetchClient.Fetch(ctx, target)
		if err != nil {
			return err
		}

		raws, err := parseTarget(target, registry, scriptRuntime, result.Body)
		if err != nil {
			return err
		}

		for _, raw := range raws {
			transition, err := canonicalizer.Canonicalize(ctx, raw)
			if err != nil {
				return err
			}
			if transition == nil {
				continue
			}

			event := detector.Detect(*transition, result.FetchedAt, 0, nil, nil)
			if event == nil {
				continue
			}

			event.PriorityScore = scorer.Score(*event, transition.Post)
			if err := gateway.AppendEvent(ctx, *event); err != nil {
				return errs.New("ingestd", errs.KindCanonicalizerContention, errs.WithCause(err),
					errs.WithMessage("append event"), errs.WithField("release_id", event.ReleaseID))
			}

			if err := matchAndEnqueue(ctx, gateway, fanoutQueue, *event, transition.Post); err != nil {
				logger.Printf("fanout: release %s: %v", event.ReleaseID, err)
			}
		}
		return nil
	}

	sched := scheduler.New(health, pipeline).WithMaxParallelPerPool(maxParallelPerPool)
	sched.OnQuarantine(func(target schema.Target, reason string) {
		logger.Printf("target quarantined: target_id=%s reason=%s", target.TargetID, reason)
	})
	return sched
}

func parseTarget(target schema.Target, registry *parsers.Registry, scriptRuntime *parsers.ScriptRuntime, body []byte) ([]schema.RawRelease, error) {
	if target.ScriptKey != "" {
		scriptPath := filepath.Join("config", "scripts", target.ScriptKey+".js")
		script, err := os.ReadFile(scriptPath)
		if err != nil {
			return nil, errs.New("parsers", errs.KindParseError, errs.WithCause(err),
				errs.WithMessage("read script"), errs.WithField("script_key", target.ScriptKey))
		}
		return scriptRuntime.Run(target.Source, string(script), body)
	}
	return registry.Parse(target.ParserKey, target.Source, body)
}

// matchAndEnqueue narrows candidate subscriptions via the storage
// gateway's brand/SKU index, then re-applies the full AND-filter set
// with a freshly seeded subscription.Index before fanning each match out
// to the delivery queue (spec.md §4.9).
func matchAndEnqueue(ctx context.Context, gateway storage.Gateway, fanoutQueue *fanout.Queue, event schema.ReleaseEvent, release schema.CanonicalRelease) error {
	candidates, err := gateway.LoadSubscriptionsByBrandOrSKU(ctx, release.Brand, release.SKU)
	if err != nil {
		return fmt.Errorf("load candidate subscriptions: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	idx := subscription.NewIndex()
	for _, sub := range candidates {
		idx.Upsert(sub)
	}

	var firstErr error
	for _, match := range idx.Match(release) {
		if err := fanoutQueue.Enqueue(ctx, event, release, match); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("enqueue subscription %s: %w", match.SubscriptionID, err)
		}
	}
	return firstErr
}

func runSchedulerLoop(ctx context.Context, sched *scheduler.Scheduler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sched.Tick(ctx)
		}
	}
}

// startDeliveryWorkers launches one Worker per channel kind, each
// draining its own lease loop until the process shuts down.
func startDeliveryWorkers(lifecycle *conc.WaitGroup, ctx context.Context, logger *log.Logger, gateway storage.Gateway, appCfg config.AppConfig) {
	creds := config.LoadChannelCredentials()

	var mailer delivery.Mailer
	if creds.SMTPHost != "" {
		mailer = delivery.NewSMTPMailer(creds)
	} else {
		mailer = &delivery.LoggingMailer{}
	}
	emailTransport := &delivery.EmailTransport{Mailer: mailer}
	webhookTransport := delivery.NewWebhookTransport()
	pushHub := delivery.NewPushHub()
	pushTransport := &delivery.PushTransport{Hub: pushHub}

	workers := []*delivery.Worker{
		delivery.NewWorker(schema.ChannelEmail, gateway, emailTransport),
		delivery.NewWorker(schema.ChannelDiscord, gateway, webhookTransport),
		delivery.NewWorker(schema.ChannelSlack, gateway, webhookTransport),
		delivery.NewWorker(schema.ChannelCustomWebhook, gateway, webhookTransport),
		delivery.NewWorker(schema.ChannelPush, gateway, pushTransport),
	}
	for _, worker := range workers {
		worker := worker
		lifecycle.Go(func() { worker.Run(ctx, deliveryPollInterval) })
	}

	pushAddr := creds.PushHubAddr
	lifecycle.Go(func() {
		server := &http.Server{Addr: pushAddr, Handler: pushHub, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("push hub server: %v", err)
		}
	})
}

type gracefulShutdownConfig struct {
	mainCancel context.CancelFunc
	lifecycle  *conc.WaitGroup
	pool       *pgxpool.Pool
	telemetry  *telemetry.Provider
}

func performGracefulShutdown(ctx context.Context, logger *log.Logger, cfg gracefulShutdownConfig) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		logger.Printf("shutdown: %s...", name)
		if err := fn(stepCtx); err != nil {
			logger.Printf("shutdown: %s failed: %v", name, err)
		} else {
			logger.Printf("shutdown: %s completed", name)
		}
	}

	logger.Print("shutdown: cancelling main context")
	if cfg.mainCancel != nil {
		cfg.mainCancel()
	}

	if cfg.lifecycle != nil {
		shutdownStep("waiting for lifecycle goroutines", schedulerShutdownTimeout+deliveryShutdownTimeout, func(stepCtx context.Context) error {
			done := make(chan struct{})
			go func() {
				cfg.lifecycle.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-stepCtx.Done():
				return fmt.Errorf("timeout waiting for goroutines: %w", stepCtx.Err())
			}
		})
	}

	if cfg.pool != nil {
		shutdownStep("closing storage pool", storageShutdownTimeout, func(stepCtx context.Context) error {
			cfg.pool.Close()
			return nil
		})
	}

	if cfg.telemetry != nil {
		shutdownStep("shutting down telemetry", telemetryShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.telemetry.Shutdown(stepCtx)
		})
	}
}
