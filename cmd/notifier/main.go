// cmd/notifier/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"appointment-notifier/internal/appointments"
	"appointment-notifier/internal/audit"
	"appointment-notifier/internal/common/clock"
	"appointment-notifier/internal/common/config"
	"appointment-notifier/internal/common/database"
	"appointment-notifier/internal/common/logger"
	"appointment-notifier/internal/common/observability"
	"appointment-notifier/internal/dispatcher"
	"appointment-notifier/internal/ledger"
	"appointment-notifier/internal/reminder"
	"appointment-notifier/internal/scheduler"
	"appointment-notifier/internal/transport"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting appointment notifier...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("appointment-notifier")
	defer obs.Shutdown()

	ctx := context.Background()

	clk, err := clock.New(cfg.Scheduler.Timezone)
	if err != nil {
		zapLog.Fatal("invalid operational timezone", zap.Error(err))
	}

	// --- Postgres with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pg.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "Postgres connection")
	if err != nil {
		zapLog.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()

	// --- Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis unavailable", zap.Error(err))
	}
	defer rdb.Close()

	// --- Elasticsearch run-audit (optional) ---
	var recorder scheduler.RunRecorder
	if cfg.Database.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		if err := es.Ping(); err != nil {
			zapLog.Warn("elasticsearch unreachable, run audit will be lossy", zap.Error(err))
		}
		recorder = audit.NewIndexer(es.Client, cfg.Database.Elasticsearch.Index, log)
	}

	// --- Transports ---
	emailSender, err := transport.NewEmailSender(ctx, cfg.Notifications.AWS.Region, cfg.Notifications.Email.FromEmail)
	if err != nil {
		zapLog.Fatal("SES client failed", zap.Error(err))
	}

	var smsSender transport.Transport
	if cfg.Notifications.SMS.Enabled {
		sender, err := transport.NewSMSSender(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("SNS client failed", zap.Error(err))
		}
		smsSender = sender
	}

	router := transport.NewRouter(emailSender, smsSender, config.GetDuration(cfg.Scheduler.TransportTimeout))

	// --- Core pipeline ---
	notificationLedger := ledger.NewCachedLedger(
		ledger.NewPostgresLedger(pg.GetDB(), clk, log),
		rdb.GetClient(),
		log,
	)

	store := appointments.NewPostgresStore(pg.GetDB(), log)

	disp := dispatcher.New(
		&dispatcher.Config{RateLimitCeiling: cfg.Notifications.RateLimitCeiling},
		notificationLedger,
		router,
		clk,
		log,
	)

	processor := reminder.NewProcessor(
		&reminder.Config{MaxConcurrentDispatches: cfg.Scheduler.MaxConcurrentDispatches},
		store,
		notificationLedger,
		disp,
		clk,
		obs,
		log,
	)

	supervisor := scheduler.NewSupervisor(
		&scheduler.Config{Cron: cfg.Scheduler.Cron, Timezone: cfg.Scheduler.Timezone},
		processor,
		clk,
		recorder,
		log,
	)

	if err := supervisor.Initialize(); err != nil {
		zapLog.Fatal("scheduler initialization failed", zap.Error(err))
	}
	if err := supervisor.Start(); err != nil {
		zapLog.Fatal("scheduler start failed", zap.Error(err))
	}

	// --- Metrics / health endpoint ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			health := supervisor.HealthCheck()
			if health.Status != "healthy" {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			fmt.Fprintf(w, "%s\n", health.Status)
		})
		if err := http.ListenAndServe(":9090", mux); err != nil {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	zapLog.Info("appointment notifier running",
		zap.String("cron", cfg.Scheduler.Cron),
		zap.String("timezone", cfg.Scheduler.Timezone),
	)

	// --- Graceful shutdown: disarm the trigger, let an in-flight run finish ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("shutdown signal received, stopping scheduler")
	if err := supervisor.Stop(); err != nil {
		zapLog.Error("scheduler stop failed", zap.Error(err))
	}
}
