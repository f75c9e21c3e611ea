// Package main wires together the multibar demo binary. It can drive a
// local simulated run, publish a run's progress to Pub/Sub, or render a
// remote run received from Pub/Sub.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/multibar"
	"github.com/JakeFAU/multibar/internal/api"
	"github.com/JakeFAU/multibar/internal/clock/system"
	"github.com/JakeFAU/multibar/internal/config"
	"github.com/JakeFAU/multibar/internal/demo"
	"github.com/JakeFAU/multibar/internal/history"
	"github.com/JakeFAU/multibar/internal/logging"
	"github.com/JakeFAU/multibar/internal/metrics"
	"github.com/JakeFAU/multibar/internal/relay"
	"github.com/JakeFAU/multibar/internal/sinks"
	"github.com/JakeFAU/multibar/termbar"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	mode := flag.String("mode", "run", "run, send, or receive")
	rawRunID := flag.String("run", "", "Run id to publish into (send mode)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mode, *rawRunID, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("multibar failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

// run assembles the observer stack and the optional status server, then
// executes the selected mode until it completes or ctx ends.
func run(ctx context.Context, cfg config.Config, mode, rawRunID string, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheus(reg)
	if err != nil {
		return fmt.Errorf("progress metrics: %w", err)
	}
	snapshot := sinks.NewSnapshot(system.New())

	var repo history.Repository
	if cfg.History.Enabled {
		pg, err := history.NewPostgres(ctx, cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("history store: %w", err)
		}
		defer pg.Close()
		repo = pg
	} else {
		repo = history.NewMemory()
	}
	recorder := history.NewRecorder(repo, history.RecorderConfig{
		Workers:    cfg.Demo.Workers,
		BufferSize: cfg.History.BufferSize,
		Logger:     logger.Named("history"),
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := recorder.Close(closeCtx); err != nil {
			logger.Warn("history recorder shutdown", zap.Error(err))
		}
	}()

	observers := []multibar.Observer{
		sinks.NewLog(logger.Named("progress")),
		promSink,
		snapshot,
		recorder,
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Server.Enabled {
		httpMetrics, err := metrics.NewHTTP(reg)
		if err != nil {
			return fmt.Errorf("http metrics: %w", err)
		}
		srv := api.NewServer(snapshot, repo, httpMetrics, reg, logger.Named("api"))
		logger.Info("status server listening", zap.Int("port", cfg.Server.Port))
		g.Go(func() error {
			return srv.Serve(gctx, cfg.Server.Port)
		})
	}

	g.Go(func() error {
		defer cancelRun()
		switch mode {
		case "run":
			return runLocal(gctx, cfg, observers, logger)
		case "send":
			return runSend(gctx, cfg, rawRunID, logger)
		case "receive":
			return runReceive(gctx, cfg, observers, logger)
		default:
			return fmt.Errorf("unknown mode %q; want run, send, or receive", mode)
		}
	})
	return g.Wait()
}

// runLocal drives the simulated workload against an in-process display.
func runLocal(ctx context.Context, cfg config.Config, observers []multibar.Observer, logger *zap.Logger) error {
	runner, err := demo.NewRunner(demoConfig(cfg), logger.Named("demo"))
	if err != nil {
		return err
	}
	m, handles, err := multibar.NewMulti(runner.Lengths(), coordinatorConfig(cfg, observers, logger))
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}
	logger.Info("run starting",
		zap.Stringer("run_id", m.RunID()),
		zap.Int("workers", m.Workers()),
	)
	go func() {
		select {
		case <-ctx.Done():
			m.Cancel()
		case <-m.Done():
		}
	}()

	if err := runner.Run(ctx, demo.Local(handles)); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := m.Wait(waitCtx); err != nil {
		return err
	}
	logger.Info("run finished", zap.Stringer("run_id", m.RunID()))
	return nil
}

// runSend publishes the simulated workload's progress to Pub/Sub for a
// receiver to render. The run id comes from the receiver's startup log.
func runSend(ctx context.Context, cfg config.Config, rawRunID string, logger *zap.Logger) error {
	if !cfg.PubSub.RelayConfigured() {
		return errors.New("send mode needs pubsub.project_id and pubsub.topic_id")
	}
	if rawRunID == "" {
		return errors.New("send mode needs -run with the receiver's run id")
	}
	runID, err := uuid.Parse(rawRunID)
	if err != nil {
		return fmt.Errorf("parse run id %q: %w", rawRunID, err)
	}
	runner, err := demo.NewRunner(demoConfig(cfg), logger.Named("demo"))
	if err != nil {
		return err
	}
	topic, err := relay.NewPubSubTopic(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID)
	if err != nil {
		return err
	}
	defer func() {
		if err := topic.Close(); err != nil {
			logger.Warn("pubsub topic shutdown", zap.Error(err))
		}
	}()

	logger.Info("publishing run",
		zap.Stringer("run_id", runID),
		zap.String("topic", cfg.PubSub.TopicID),
	)
	return runner.Run(ctx, remoteProgress{pub: relay.NewPublisher(topic, runID)})
}

// runReceive renders a run whose updates arrive over Pub/Sub.
func runReceive(ctx context.Context, cfg config.Config, observers []multibar.Observer, logger *zap.Logger) error {
	if !cfg.PubSub.RelayConfigured() || cfg.PubSub.SubscriptionID == "" {
		return errors.New("receive mode needs pubsub.project_id and pubsub.subscription_id")
	}
	m, _, err := multibar.NewMultiUniform(cfg.Demo.Workers, int64(cfg.Demo.StepsMax), coordinatorConfig(cfg, observers, logger))
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}
	logger.Info("awaiting remote updates",
		zap.Stringer("run_id", m.RunID()),
		zap.String("subscription", cfg.PubSub.SubscriptionID),
	)
	sub, err := relay.NewPubSubSubscription(ctx, cfg.PubSub.ProjectID, cfg.PubSub.SubscriptionID)
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Close(); err != nil {
			logger.Warn("pubsub subscription shutdown", zap.Error(err))
		}
	}()

	receiver := relay.NewReceiver(m, logger.Named("relay"))
	if err := receiver.Run(ctx, sub); err != nil && ctx.Err() == nil {
		return err
	}
	if ctx.Err() != nil {
		m.Cancel()
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return m.Wait(waitCtx)
}

func demoConfig(cfg config.Config) demo.Config {
	return demo.Config{
		Workers:      cfg.Demo.Workers,
		StepsMin:     cfg.Demo.StepsMin,
		StepsMax:     cfg.Demo.StepsMax,
		StepDelay:    time.Duration(cfg.Demo.StepDelayMs) * time.Millisecond,
		CancelWorker: cfg.Demo.CancelWorker,
	}
}

func coordinatorConfig(cfg config.Config, observers []multibar.Observer, logger *zap.Logger) multibar.Config {
	return multibar.Config{
		Factory:         termbar.Factory(),
		Options:         cfg.Display.Options(),
		Aggregate:       multibar.Options{Description: cfg.Display.AggregateDescription},
		ChannelCapacity: cfg.Channel.Capacity,
		Observers:       observers,
		Logger:          logger.Named("multibar"),
	}
}

// remoteProgress adapts the relay publisher to the demo workload.
type remoteProgress struct {
	pub *relay.Publisher
}

func (p remoteProgress) Next(ctx context.Context, worker int) error {
	return p.pub.Handle(worker).Next(ctx)
}

func (p remoteProgress) Finish(ctx context.Context, worker int) error {
	return p.pub.Handle(worker).Finish(ctx)
}

func (p remoteProgress) Cancel(ctx context.Context, worker int) error {
	return p.pub.Handle(worker).Cancel(ctx)
}
