package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"outbound-dialer/internal/app"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/queue"
	"outbound-dialer/internal/scheduler"
	"outbound-dialer/pkg/logger"

	"github.com/joho/godotenv"
)

// The worker runs the periodic retry/dispatch sweep and, when RabbitMQ is
// configured, consumes dispatch jobs enqueued by the API.
func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log, closeLog := logger.New(cfg.App.Env, logger.Options{File: cfg.Log.File})
	defer closeLog()
	log = log.With("component", "worker")
	slog.SetDefault(log)

	deps, err := app.Build(rootCtx, cfg, log)
	if err != nil {
		log.Error("dependency init failed", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	runner := scheduler.NewRunner(deps.Scheduler, deps.Campaigns, scheduler.RunnerConfig{
		Interval:  cfg.Scheduler.SweepInterval,
		BatchSize: cfg.Scheduler.BatchSize,
		Retry:     deps.RetryConfig(),
	}, log)
	stopRunner := runner.Start(rootCtx)

	var wg sync.WaitGroup
	if deps.Queue != nil {
		consumer, err := queue.NewConsumer(deps.Queue, cfg.Queue.DispatchQueue,
			queue.NewSchedulerHandler(deps.Scheduler, cfg.Scheduler.BatchSize, log), log)
		if err != nil {
			log.Error("queue consumer init failed", "err", err)
			stopRunner()
			os.Exit(1)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(rootCtx); err != nil {
				log.Error("queue consumer stopped", "err", err)
				stop()
			}
		}()
	} else {
		log.Info("queue not configured; only the periodic sweep runs")
	}

	log.Info("worker started", "interval", cfg.Scheduler.SweepInterval, "simulated", deps.Placement.Simulated())
	<-rootCtx.Done()
	log.Info("shutdown initiated")

	stopRunner()
	wg.Wait()
}
