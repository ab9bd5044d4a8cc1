package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"badminton_club/internal/billing"
	"badminton_club/internal/config"
	"badminton_club/internal/logging"
	"badminton_club/internal/mq"
	"badminton_club/internal/obs"
	"badminton_club/internal/services"
	"badminton_club/internal/store"
	"badminton_club/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.Must(cfg.Env, cfg.LogLevel).Named("worker")
	defer func() { _ = log.Sync() }()

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, "badminton-worker", cfg.Env, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	// Initialize Database
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	st := store.NewGormStore(db)

	var locker services.Locker = services.NewLocalLocker()
	if cfg.RedisURL != "" {
		cache, err := services.NewRedisCache(cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis unavailable, using in-process locks", zap.Error(err))
		} else {
			defer cache.Close()
			locker = cache
		}
	}

	var pub mq.Publisher = mq.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn("amqp unavailable, domain events disabled", zap.Error(err))
		} else {
			defer amqpPub.Close()
			pub = amqpPub
		}
	}

	schedule, err := cfg.Fees.Schedule()
	if err != nil {
		log.Fatal("invalid fee schedule", zap.Error(err))
	}
	calc := billing.NewCalculator(schedule)

	deps := tasks.Deps{
		Sessions:  services.NewSessionPaymentService(calc, st, pub, log),
		Reconcile: services.NewReconcileService(st, locker, pub, log),
		Payments:  st,
		Members:   st,
		Tasks:     st,
		GraceDays: cfg.OverdueGraceDays,
		Log:       log,
	}
	if cfg.WahaBaseURL != "" {
		deps.Messenger = services.NewWahaService(cfg.WahaBaseURL, cfg.WahaAPIKey, cfg.WahaSession)
	} else {
		log.Warn("WAHA_BASE_URL not set, payment reminders disabled")
	}

	// Initialize Task Registry
	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, deps)
	runner := tasks.NewRunner(registry, st, log)
	log.Info("registered tasks", zap.Strings("tasks", registry.Names()))

	runTick := func() {
		start := time.Now()
		processed, err := runner.RunDue(ctx)
		if err != nil {
			log.Error("processing scheduled tasks", zap.Error(err))
			return
		}
		if processed > 0 {
			log.Info("tick finished", zap.Int("processed", processed), zap.Duration("took", time.Since(start)))
		}
	}

	// SkipIfStillRunning keeps a slow tick from overlapping the next one.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.WorkerSchedule, runTick); err != nil {
		log.Fatal("invalid WORKER_SCHEDULE", zap.String("schedule", cfg.WorkerSchedule), zap.Error(err))
	}

	// Run once on start so tasks due while the worker was down are not delayed
	// by a full interval.
	runTick()

	c.Start()
	log.Info("worker started", zap.String("schedule", cfg.WorkerSchedule))

	<-ctx.Done()
	log.Info("shutting down worker")
	<-c.Stop().Done()
}
