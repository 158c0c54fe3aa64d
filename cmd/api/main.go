package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinova/dentalsync/cmd/mainconfig"
	"github.com/clinova/dentalsync/internal/api/handlers"
	"github.com/clinova/dentalsync/internal/api/router"
	"github.com/clinova/dentalsync/internal/appointments"
	"github.com/clinova/dentalsync/internal/automation"
	appconfig "github.com/clinova/dentalsync/internal/config"
	"github.com/clinova/dentalsync/internal/contacts"
	"github.com/clinova/dentalsync/internal/legacy"
	"github.com/clinova/dentalsync/internal/messaging"
	"github.com/clinova/dentalsync/internal/notify"
	"github.com/clinova/dentalsync/internal/observability/metrics"
	"github.com/clinova/dentalsync/internal/scheduler"
	"github.com/clinova/dentalsync/internal/sheets"
	appsync "github.com/clinova/dentalsync/internal/sync"
	"github.com/clinova/dentalsync/internal/triage"
	"github.com/clinova/dentalsync/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dentalsync API server", "env", cfg.Env, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := time.LoadLocation(cfg.ClinicTZ)
	if err != nil {
		logger.Error("invalid clinic timezone", "tz", cfg.ClinicTZ, "error", err)
		os.Exit(1)
	}

	// Local document store.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Legacy practice-management database, read-only.
	legacyPool, err := pgxpool.New(ctx, cfg.LegacyDatabaseURL)
	if err != nil {
		logger.Error("failed to connect to legacy database", "error", err)
		os.Exit(1)
	}
	defer legacyPool.Close()

	// database/sql handle for the message log.
	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	apptStore := appointments.NewStore(pool)
	contactStore := contacts.NewStore(pool)
	ruleStore := automation.NewStore(pool)
	triageStore := triage.NewStore(pool)
	messageLog := messaging.NewMessageLog(sqlDB)

	syncMetrics := metrics.NewSyncMetrics(nil)
	autoMetrics := metrics.NewAutomationMetrics(nil)
	triageMetrics := metrics.NewTriageMetrics(nil)

	// AWS clients (SQS queue, DynamoDB journal, SES, Bedrock).
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Outbound queue: SQS in production, in-memory for local development.
	publisher, dispatchQueue := buildQueue(cfg, awsCfg, logger)

	journal := messaging.NewSendJournal(dynamodb.NewFromConfig(awsCfg), cfg.SendJournalTable, logger)

	// Spreadsheet ledger.
	ledger, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   cfg.SheetsSpreadsheetID,
		CredentialsJSON: cfg.SheetsCredentialsJSON,
		TabName:         cfg.SheetsTabName,
		Timeout:         cfg.SheetsTimeout,
		MaxRetries:      cfg.SheetsMaxRetries,
		Backoff:         cfg.SheetsRetryBackoff,
	}, logger)
	if err != nil {
		logger.Error("failed to create sheets adapter", "error", err)
		os.Exit(1)
	}

	orch, err := appsync.NewOrchestrator(appsync.OrchestratorConfig{
		Source:      legacy.NewReader(legacyPool, logger),
		Ledger:      ledger,
		Appts:       apptStore,
		Contacts:    contactStore,
		Normalizer:  appsync.NewNormalizer(loc, logger),
		Logger:      logger,
		Metrics:     syncMetrics,
		Location:    loc,
		BatchSize:   cfg.SyncBatchSize,
		RecordDelay: cfg.SyncRecordDelay,
	})
	if err != nil {
		logger.Error("failed to create sync orchestrator", "error", err)
		os.Exit(1)
	}

	engine, err := automation.NewEngine(automation.EngineConfig{
		Rules:    ruleStore,
		Appts:    apptStore,
		Sender:   publisher,
		Journal:  journal,
		Logger:   logger,
		Metrics:  autoMetrics,
		Location: loc,
	})
	if err != nil {
		logger.Error("failed to create automation engine", "error", err)
		os.Exit(1)
	}

	sched, err := scheduler.New(scheduler.Config{
		Runner:       orch,
		Engine:       engine,
		SyncInterval: cfg.SyncInterval,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	go sched.Start(ctx)

	// Dispatch worker drains the outbound queue into the messaging gateway.
	if gateway, err := messaging.NewGatewayClient(messaging.GatewayConfig{
		BaseURL:    cfg.GatewayBaseURL,
		APIKey:     cfg.GatewayAPIKey,
		FromNumber: cfg.GatewayFromNumber,
		Timeout:    cfg.GatewayTimeout,
		MaxRetries: cfg.GatewayMaxRetries,
		Backoff:    cfg.GatewayRetryDelay,
	}, logger); err != nil {
		logger.Warn("messaging gateway not configured; outbound texts stay queued", "error", err)
	} else {
		worker := messaging.NewDispatchWorker(dispatchQueue, gateway, messageLog, logger).
			WithBatchSize(cfg.DispatchBatchSize)
		go worker.Run(ctx)
	}

	// Urgency dashboard cache.
	var dashQueue *triage.DashboardQueue
	if cfg.RedisAddr != "" {
		dashQueue = triage.NewDashboardQueue(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}))
	}

	// Staff alert email.
	var emailSender notify.EmailSender
	switch cfg.EmailProvider {
	case "ses":
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); s != nil {
			emailSender = s
		}
	default:
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			emailSender = s
		}
	}
	var alerter triage.StaffAlerter
	if svc := notify.NewService(emailSender, cfg.AlertRecipients, cfg.ClinicName, logger); svc != nil {
		alerter = svc
	}

	triageSvc, err := triage.NewService(triage.ServiceConfig{
		Classifier: triage.NewClassifier(logger),
		Store:      triageStore,
		Queue:      dashQueue,
		Detector:   buildSpecialtyDetector(ctx, cfg, awsCfg, logger),
		Alerter:    alerter,
		Metrics:    triageMetrics,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create triage service", "error", err)
		os.Exit(1)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		SyncHandler:        handlers.NewSyncHandler(sched, orch, logger),
		TriageHandler:      handlers.NewTriageHandler(triageSvc, triageStore, logger),
		AutomationHandler:  handlers.NewAutomationHandler(ruleStore, apptStore, loc, logger),
		MessagesHandler:    handlers.NewMessagesHandler(messageLog, logger),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel() // stops the scheduler and the dispatch worker

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildQueue picks the outbound queue implementation and returns the
// publisher the automation engine sends through plus the queue the dispatch
// worker drains.
func buildQueue(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*messaging.Publisher, messaging.Queue) {
	if cfg.UseMemoryQueue || cfg.OutboundQueueURL == "" {
		logger.Info("using in-memory outbound queue")
		q := messaging.NewMemoryQueue(256)
		return messaging.NewPublisher(q, logger), q
	}
	q := messaging.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.OutboundQueueURL)
	return messaging.NewPublisher(q, logger), q
}

func buildSpecialtyDetector(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) triage.SpecialtyDetector {
	var chain []triage.SpecialtyDetector
	if cfg.GeminiAPIKey != "" {
		gemini, err := triage.NewGeminiDetector(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID, cfg.LLMTimeout)
		if err != nil {
			logger.Warn("gemini detector unavailable", "error", err)
		} else {
			chain = append(chain, gemini)
		}
	}
	if cfg.BedrockModelID != "" {
		bedrock, err := triage.NewBedrockDetector(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID, cfg.LLMTimeout)
		if err != nil {
			logger.Warn("bedrock detector unavailable", "error", err)
		} else {
			chain = append(chain, bedrock)
		}
	}
	if fallback := triage.NewFallbackDetector(chain...); fallback != nil {
		return fallback
	}
	return nil
}
