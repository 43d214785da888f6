// cmd/wizard-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"contract-wizard/internal/analysis"
	"contract-wizard/internal/common/config"
	"contract-wizard/internal/common/database"
	"contract-wizard/internal/common/logger"
	"contract-wizard/internal/common/observability"
	"contract-wizard/internal/notify"
	"contract-wizard/internal/process/prefill"
	"contract-wizard/internal/process/store"
	"contract-wizard/internal/submission"
	"contract-wizard/pkg/registry"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting wizard manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("wizard-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init AWS notification clients (degraded mode when unavailable) ---
	notifyCfg := notify.Config{
		EmailEnabled: cfg.Notification.Email.Enabled,
		FromEmail:    cfg.Notification.Email.FromEmail,
		SMSEnabled:   cfg.Notification.SMS.Enabled,
	}

	var sesClient notify.SESService
	var snsClient notify.SNSService
	if notifyCfg.EmailEnabled || notifyCfg.SMSEnabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Integrations.AWS.Region))
		if err != nil {
			zapLog.Warn("AWS config load failed, notifications disabled", zap.Error(err))
			notifyCfg.EmailEnabled = false
			notifyCfg.SMSEnabled = false
		} else {
			if notifyCfg.EmailEnabled {
				sesClient = ses.NewFromConfig(awsCfg)
			}
			if notifyCfg.SMSEnabled {
				snsClient = sns.NewFromConfig(awsCfg)
			}
		}
	}

	notifier := notify.New(notifyCfg, sesClient, snsClient, log)

	// --- Load the contract template registry ---
	templates, err := registry.LoadRegistry(cfg.Wizard.RegistryPath)
	if err != nil {
		zapLog.Fatal("template registry load failed", zap.Error(err),
			zap.String("path", cfg.Wizard.RegistryPath))
	}
	zapLog.Info("Template registry loaded",
		zap.String("version", templates.Version),
		zap.Int("templates", len(templates.Templates)),
	)

	// --- Wire the wizard core ---
	analyzer := analysis.NewClient(analysis.Config{
		BaseURL:    cfg.APIs.DocAI.BaseURL,
		APIKey:     cfg.APIs.DocAI.APIKey,
		Timeout:    time.Duration(cfg.APIs.DocAI.Timeout) * time.Millisecond,
		MaxRetries: cfg.APIs.DocAI.MaxRetries,
	}, log)

	indexer := submission.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.Index, log)
	submitter := submission.NewPostgresSubmitter(pg.GetDB(), indexer, notifier, log)

	stateStore := store.New(
		store.NewRedisKV(redis.GetClient()),
		cfg.Wizard.KeyPrefix,
		time.Duration(cfg.Wizard.StateTTLHours)*time.Hour,
		log,
	)
	resolver := prefill.NewResolver(prefill.DefaultMarkers(), log)

	srv := newServer(
		log,
		stateStore,
		resolver,
		submitter,
		analyzer,
		templates,
		time.Duration(cfg.Wizard.AutosaveDebounceMs)*time.Millisecond,
	)
	defer srv.closeSessions()

	// --- HTTP Server ---
	mux := srv.routes()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		code := http.StatusOK
		if err := redis.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	httpServer := &http.Server{
		Addr:    cfg.App.ListenAddr,
		Handler: mux,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.App.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown error", zap.Error(err))
	}

	zapLog.Info("Wizard manager stopped")
}
