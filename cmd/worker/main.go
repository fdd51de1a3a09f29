package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/vespl/caseflow-api/internal/clock"
	"github.com/vespl/caseflow-api/internal/config"
	"github.com/vespl/caseflow-api/internal/email"
	"github.com/vespl/caseflow-api/internal/repository/postgres"
	"github.com/vespl/caseflow-api/internal/service/notification"
	"github.com/vespl/caseflow-api/pkg/logger"
	"github.com/vespl/caseflow-api/pkg/metrics"
)

// workerEnv holds worker-only settings, read from the environment so a
// fleet of drain workers can be tuned without touching the shared
// config file.
type workerEnv struct {
	DrainInterval time.Duration `envconfig:"DRAIN_INTERVAL" default:"2m"`
	HealthAddr    string        `envconfig:"HEALTH_ADDR" default:":8081"`
	BatchSize     int           `envconfig:"BATCH_SIZE" default:"100"`
}

func setupHealthCheck(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.ZL.Error().Err(err).Msg("health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var env workerEnv
	if err := envconfig.Process("worker", &env); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read worker env: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	queueRepo := postgres.NewNotificationQueueRepository(base)
	templateRepo := postgres.NewTemplateRepository(base)

	dispatcher := notification.NewDispatcher(
		queueRepo, templateRepo, email.NewService(cfg.SMTP), clock.Real{},
		notification.DispatcherConfig{
			BatchSize:     env.BatchSize,
			MaxAttempts:   cfg.Notification.MaxAttempts,
			SendTimeout:   cfg.Notification.SendTimeout(),
			RatePerSecond: cfg.Notification.RatePerSecond,
		}, log, metrics.NewMetrics("caseflow_worker"))

	setupHealthCheck(env.HealthAddr, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	log.Info("drain worker started", "interval", env.DrainInterval.String())

	ticker := time.NewTicker(env.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := dispatcher.Drain(ctx); err != nil {
				log.Error(err, "drain failed")
			}
		}
	}
}
