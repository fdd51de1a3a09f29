package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vespl/caseflow-api/internal/clock"
	"github.com/vespl/caseflow-api/internal/config"
	"github.com/vespl/caseflow-api/internal/email"
	caseflowhandler "github.com/vespl/caseflow-api/internal/handler/caseflow"
	documenthandler "github.com/vespl/caseflow-api/internal/handler/document"
	notificationhandler "github.com/vespl/caseflow-api/internal/handler/notification"
	systemhandler "github.com/vespl/caseflow-api/internal/handler/system"
	"github.com/vespl/caseflow-api/internal/middleware"
	"github.com/vespl/caseflow-api/internal/repository"
	"github.com/vespl/caseflow-api/internal/repository/memory"
	"github.com/vespl/caseflow-api/internal/repository/postgres"
	"github.com/vespl/caseflow-api/internal/router"
	"github.com/vespl/caseflow-api/internal/scheduler"
	"github.com/vespl/caseflow-api/internal/service/caseflow"
	"github.com/vespl/caseflow-api/internal/service/notification"
	"github.com/vespl/caseflow-api/internal/service/report"
	"github.com/vespl/caseflow-api/internal/service/sequence"
	"github.com/vespl/caseflow-api/internal/service/sla"
	"github.com/vespl/caseflow-api/pkg/auth"
	"github.com/vespl/caseflow-api/pkg/logger"
	"github.com/vespl/caseflow-api/pkg/messaging"
	redisbroker "github.com/vespl/caseflow-api/pkg/messaging/redis"
	"github.com/vespl/caseflow-api/pkg/metrics"
)

type repositories struct {
	cases       repository.CaseRepository
	transitions repository.TransitionRepository
	escalations repository.EscalationRepository
	queue       repository.NotificationQueueRepository
	templates   repository.TemplateRepository
	sequences   repository.SequenceRepository
	daily       repository.MetricsRepository
}

func buildRepositories(cfg *config.Config) (*repositories, error) {
	if cfg.Server.MemoryStore {
		store := memory.NewStore()
		return &repositories{
			cases:       store.Cases(),
			transitions: store.Transitions(),
			escalations: store.Escalations(),
			queue:       store.Queue(),
			templates:   store.Templates(),
			sequences:   store.Sequences(),
			daily:       store.Metrics(),
		}, nil
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	base := postgres.NewBaseRepository(db)
	return &repositories{
		cases:       postgres.NewCaseRepository(base),
		transitions: postgres.NewTransitionRepository(base),
		escalations: postgres.NewEscalationRepository(base),
		queue:       postgres.NewNotificationQueueRepository(base),
		templates:   postgres.NewTemplateRepository(base),
		sequences:   postgres.NewSequenceRepository(base),
		daily:       postgres.NewMetricsRepository(base),
	}, nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(nil)

	repos, err := buildRepositories(cfg)
	if err != nil {
		log.Fatal(err, "failed to initialize store")
	}

	var broker messaging.Broker = messaging.Noop{}
	if cfg.Redis.URL != "" {
		b, err := redisbroker.NewRedisBroker(redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: 100 * time.Millisecond,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &log.ZL)
		if err != nil {
			log.Fatal(err, "failed to connect to redis")
		}
		broker = b
		defer broker.Close()
	}

	clk := clock.Real{}
	m := metrics.NewMetrics("caseflow")

	sequenceSvc := sequence.NewService(repos.sequences, clk, cfg.Sequence.Prefix, m)
	notifierSvc := notification.NewService(repos.queue, repos.templates, clk, log, m)
	caseSvc := caseflow.NewService(repos.cases, repos.transitions, sequenceSvc, broker, clk, log)

	monitor := sla.NewMonitor(repos.cases, notifierSvc, broker, clk, sla.MonitorConfig{
		WarningLookahead: cfg.SLA.WarningLookahead(),
		WarningDedup:     cfg.SLA.WarningDedup(),
	}, log, m)

	ruleCache := sla.NewRuleCache(repos.escalations, cfg.Scheduler.RuleCacheRefresh())
	engine := sla.NewEngine(repos.cases, repos.escalations, ruleCache, notifierSvc, broker, clk, log, m)

	dispatcher := notification.NewDispatcher(
		repos.queue, repos.templates, email.NewService(cfg.SMTP), clk,
		notification.DispatcherConfig{
			BatchSize:     cfg.Notification.BatchSize,
			MaxAttempts:   cfg.Notification.MaxAttempts,
			SendTimeout:   cfg.Notification.SendTimeout(),
			RatePerSecond: cfg.Notification.RatePerSecond,
		}, log, m)

	reporter := report.NewService(repos.cases, repos.escalations, repos.daily, clk, log, m)

	sched := scheduler.New(log, m)
	register := func(name string, interval time.Duration, run func(ctx context.Context) error) {
		if err := sched.Register(name, interval, run); err != nil {
			log.Fatal(err, "failed to register task")
		}
	}
	// Breach detection must complete before rule matching, so sweep and
	// evaluate run sequentially inside one task.
	register("sla_sweep", cfg.Scheduler.SweepInterval(), func(ctx context.Context) error {
		if err := monitor.Sweep(ctx); err != nil {
			return err
		}
		return engine.Evaluate(ctx)
	})
	register("notification_drain", cfg.Scheduler.DrainInterval(), dispatcher.Drain)
	register("metrics_rollup", cfg.Scheduler.RollupInterval(), reporter.Rollup)
	register("retention_cleanup", cfg.Scheduler.CleanupInterval(), func(ctx context.Context) error {
		_, err := notifierSvc.Purge(ctx, cfg.Scheduler.Retention())
		return err
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatal(err, "failed to start scheduler")
	}

	authMw := middleware.NewAuthMiddleware(auth.NewTokenParser(cfg.JWT.Secret))
	r := router.NewRouter(authMw, log, router.Config{
		RateLimit: 100,
		RateBurst: 200,
		CORS:      middleware.DefaultCORSConfig(),
	},
		caseflowhandler.NewHandler(caseSvc),
		notificationhandler.NewHandler(notifierSvc),
		documenthandler.NewHandler(sequenceSvc),
		systemhandler.NewHandler(sched),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		log.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "graceful shutdown failed")
	}
}
