// cmd/wizard-server/main.go
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"loan-wizard/internal/common/camunda"
	"loan-wizard/internal/common/config"
	"loan-wizard/internal/common/database"
	"loan-wizard/internal/common/logger"
	"loan-wizard/internal/common/observability"
	"loan-wizard/internal/gateway"
	"loan-wizard/internal/journal"
	"loan-wizard/internal/origination"
	"loan-wizard/internal/server"
	"loan-wizard/internal/session"
	"loan-wizard/internal/wizard"

	vla "loan-wizard/internal/workers/application/validate-loan-application"
)

const sweepInterval = time.Minute

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
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "console").Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewFromConfig(cfg.Logging, cfg.App.Name)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting wizard server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel meter provider unavailable", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := wizard.NewBus()
	bus.Subscribe(server.Telemetry(obs, log))

	var checks []readinessCheck

	// --- Session store ---
	var rdb *redis.Client
	if cfg.Session.Provider == "redis" {
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(ctx, cfg.Database.Redis)
			return err
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		checks = append(checks, readinessCheck{"redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})
		zapLog.Info("Redis connected successfully")
	}

	sessions, err := session.FromConfig(cfg.Session, rdb)
	if err != nil {
		zapLog.Fatal("session provider", zap.Error(err))
	}

	// --- Submission journal ---
	if cfg.Database.Postgres.Enabled {
		var db *sql.DB
		err = retryWithBackoff(func() error {
			var err error
			db, err = database.NewPostgres(ctx, cfg.Database.Postgres)
			return err
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer db.Close()

		j := journal.New(db, log)
		if err := j.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("journal schema", zap.Error(err))
		}
		bus.Subscribe(j.Subscriber())
		checks = append(checks, readinessCheck{"postgres", db.PingContext})
		zapLog.Info("PostgreSQL journal enabled")
	}

	// --- Zeebe: origination and intake validation ---
	var zb *camunda.Client
	var starter *origination.Starter
	var workers []*camunda.CamundaWorker
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zb, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		checks = append(checks, readinessCheck{"zeebe", zb.HealthCheck})
		zapLog.Info("Zeebe client connected successfully")

		if cfg.Origination.Enabled {
			starter = origination.NewStarter(zb, cfg.Origination.BPMNProcessID, config.GetDuration(cfg.Camunda.RequestTimeout), log)
			bus.Subscribe(starter.Subscriber())
		}

		wc := config.GetWorkerConfig(cfg, vla.TaskType)
		if wc.Enabled {
			handler := vla.NewHandler(vla.LoadConfig(wc), log)
			w := camunda.NewWorker(zb.GetClient(), vla.TaskType, wc.MaxJobsActive, config.GetDuration(wc.Timeout), handler, obs, zapLog)
			w.Start()
			workers = append(workers, w)
		} else {
			zapLog.Info("worker disabled", zap.String("taskType", vla.TaskType))
		}
	}

	// --- Wizard API ---
	gw := gateway.NewREST(cfg.Gateway, log)
	submitTimeout := config.GetDuration(cfg.Wizard.SubmitTimeout)
	registry := server.NewRegistry(func(s wizard.SessionContext) *wizard.Controller {
		return wizard.NewController(wizard.Options{
			Gateway:       gw,
			Session:       s,
			Bus:           bus,
			Logger:        log,
			SubmitTimeout: submitTimeout,
		})
	}, config.GetDuration(cfg.Server.SessionIdleTTL), log)
	go registry.Run(ctx, sweepInterval)

	srv := server.New(cfg.Server, cfg.Wizard, sessions, registry, log)
	go func() {
		zapLog.Info("Wizard API listening", zap.String("address", cfg.Server.Address))
		if err := srv.Listen(cfg.Server.Address); err != nil {
			zapLog.Error("Wizard API failed", zap.Error(err))
		}
	}()

	// --- Health & Metrics Server ---
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"drafts": registry.Len(),
		})
	})
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		rctx, rcancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer rcancel()

		failed := map[string]string{}
		for _, c := range checks {
			if err := c.check(rctx); err != nil {
				failed[c.name] = err.Error()
			}
		}
		if len(failed) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "not_ready",
				"failed": failed,
			})
			return
		}
		writeStatus(w, http.StatusOK, map[string]interface{}{"status": "ready"})
	})
	http.Handle("/metrics", promhttp.Handler())

	ops := &http.Server{Addr: cfg.Server.OpsAddress, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.OpsAddress))
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// In-flight submissions finish before the API stops.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping wizard API", zap.Error(err))
	}
	cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if starter != nil {
		starter.Wait()
	}
	if zb != nil {
		if err := zb.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := ops.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if obs != nil {
		if err := obs.Shutdown(shutdownCtx); err != nil {
			zapLog.Error("Error flushing metrics", zap.Error(err))
		}
	}

	zapLog.Info("Wizard server stopped gracefully")
}

type readinessCheck struct {
	name  string
	check func(context.Context) error
}

func writeStatus(w http.ResponseWriter, status int, body map[string]interface{}) {
	body["time"] = time.Now().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
