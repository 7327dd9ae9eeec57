// server runs the Quillaborn admission API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	adminhandler "quillaborn/backend/internal/admin/handler"
	"quillaborn/backend/internal/audit"
	auditrepo "quillaborn/backend/internal/audit/repository"
	"quillaborn/backend/internal/config"
	"quillaborn/backend/internal/db"
	"quillaborn/backend/internal/email"
	"quillaborn/backend/internal/gate"
	gatehandler "quillaborn/backend/internal/gate/handler"
	healthhandler "quillaborn/backend/internal/health/handler"
	"quillaborn/backend/internal/logging"
	"quillaborn/backend/internal/notification"
	notificationhandler "quillaborn/backend/internal/notification/handler"
	notificationrepo "quillaborn/backend/internal/notification/repository"
	profilehandler "quillaborn/backend/internal/profile/handler"
	profilerepo "quillaborn/backend/internal/profile/repository"
	profileservice "quillaborn/backend/internal/profile/service"
	"quillaborn/backend/internal/ratelimit"
	"quillaborn/backend/internal/security"
	"quillaborn/backend/internal/server"
	"quillaborn/backend/internal/telemetry"
	telemetryotel "quillaborn/backend/internal/telemetry/otel"
	"quillaborn/backend/internal/telemetry/producer"
	waitlisthandler "quillaborn/backend/internal/waitlist/handler"
	waitlistrepo "quillaborn/backend/internal/waitlist/repository"
	waitlistservice "quillaborn/backend/internal/waitlist/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logging.New(cfg.LogLevel, cfg.LogDev == "1")
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	logger := zl.Sugar()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	if cfg.SessionPublicKey == "" {
		logger.Fatal("SESSION_PUBLIC_KEY is required")
	}
	publicKey, err := security.ParsePublicKey(cfg.SessionPublicKey)
	if err != nil {
		logger.Fatalw("session public key", "err", err)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("db open", "err", err)
	}
	defer database.Close()

	ctx := context.Background()
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "quillaborn-api", cfg.OTLPInsecure)
	if err != nil {
		logger.Fatalw("otel", "err", err)
	}
	providers.SetGlobal()

	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		logger.Fatalw("kafka", "err", err)
	}
	emitters := telemetry.Multi{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
	}

	var sender email.Sender = email.Noop{}
	if cfg.EmailAPIKey != "" {
		sender = email.NewResendClient(cfg.EmailAPIKey, cfg.EmailBaseURL, cfg.EmailFrom, cfg.AppBaseURL)
	} else {
		logger.Info("EMAIL_API_KEY unset; invite emails disabled")
	}

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		limiter = ratelimit.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), time.Minute)
	} else {
		limiter = ratelimit.NewMemory(time.Minute)
	}

	auditRepo := auditrepo.NewPostgresRepository(database)
	auditLogger := audit.NewLogger(auditRepo, nil, logger)
	notifier := notification.NewDispatcher(notificationrepo.NewPostgresRepository(database), logger)

	profiles := profileservice.NewProvisioner(profilerepo.NewPostgresRepository(database))
	admissions := waitlistservice.NewAdmission(waitlistrepo.NewPostgresRepository(database), profiles, sender, notifier, logger)
	accessGate := gate.New(profiles, admissions)

	handler := server.NewRouter(server.Deps{
		Logger:       logger,
		Sessions:     security.NewSessionVerifier(publicKey, cfg.SessionIssuer, cfg.SessionAudience),
		Hasher:       security.NewHasher(cfg.BcryptCost),
		AdminKeyHash: cfg.AdminKeyHash,
		Limiter:      limiter,
		RateLimit:    cfg.WaitlistRateLimit,

		Health:        healthhandler.New(database),
		Waitlist:      waitlisthandler.New(admissions, emitters, auditLogger),
		Profile:       profilehandler.New(profiles, notifier),
		Gate:          gatehandler.New(accessGate, emitters),
		Notifications: notificationhandler.New(notificationrepo.NewPostgresRepository(database)),
		Admin:         adminhandler.New(admissions, waitlistrepo.NewPostgresRepository(database), profilerepo.NewPostgresRepository(database), auditRepo, emitters, auditLogger),
	})

	srv := server.New(cfg.HTTPAddr, handler)
	go func() {
		logger.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("serve", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down http server...")
	if err := server.Shutdown(srv, 15*time.Second); err != nil {
		logger.Warnw("shutdown", "err", err)
	}

	// Let in-flight async telemetry emits finish before tearing down their sinks.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		_ = kafkaProducer.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("otel shutdown", "err", err)
	}
	logger.Info("http server stopped")
}
