package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calltrack/internal/audit"
	"calltrack/internal/auth"
	"calltrack/internal/billing"
	"calltrack/internal/calls"
	"calltrack/internal/config"
	"calltrack/internal/forwarding"
	"calltrack/internal/httpapi"
	"calltrack/internal/numbers"
	"calltrack/internal/reporting"
	"calltrack/internal/routing"
	"calltrack/internal/telephony"
	"calltrack/internal/webhooks"
	"calltrack/internal/whisper"
	"calltrack/pkg/logger"
	"calltrack/pkg/metrics"
	"calltrack/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	var store whisper.AudioStore
	if cfg.S3Enabled() {
		s3Store, err := whisper.NewS3Store(rootCtx, whisper.S3Options{
			Region:     cfg.Storage.Region,
			Bucket:     cfg.Storage.Bucket,
			Prefix:     cfg.Storage.Prefix,
			PresignTTL: cfg.Storage.PresignTTL,
		})
		if err != nil {
			log.Error("s3 init failed", "err", err)
			os.Exit(1)
		}
		store = s3Store
	}

	m := metrics.New()
	callbacks := routing.NewCallbacks(cfg.App.PublicBaseURL)
	provider := telephony.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	numSvc := numbers.NewService(
		numbers.NewCachedRepo(numbers.NewPostgresRepo(db), rdb, cfg.Redis.NumberCacheTTL),
		provider,
		auditSvc,
		numbers.Options{
			VoiceURL:    callbacks.VoiceURL(),
			StatusURL:   callbacks.StatusURL(),
			MonthlyCost: cfg.Billing.NumberMonthlyCost,
		},
	)
	forwardingSvc := forwarding.NewService(forwarding.NewPostgresRepo(db), numSvc, auditSvc)
	whisperSvc := whisper.NewService(whisper.NewPostgresRepo(db), numSvc, store, auditSvc, whisper.Options{
		MaxAudioBytes:  cfg.Whisper.MaxAudioBytes,
		InlineAudioURL: callbacks.WhisperAudioURL,
	})
	billingSvc := billing.NewService(billing.NewPostgresRepo(db), billing.Plan{
		FreeMinutes:   cfg.Billing.PlanFreeMinutes,
		RatePerMinute: cfg.Billing.RatePerMinute,
		Currency:      cfg.Billing.Currency,
	}, auditSvc)
	tracker := calls.NewTracker(calls.NewPostgresRepo(db), calls.Deps{
		Numbers:  numSvc,
		Billing:  billingSvc,
		Provider: provider,
		URLs:     callbacks,
		Audit:    auditSvc,
		Metrics:  m,
	})
	engine := &routing.Engine{Numbers: numSvc, Forwarding: forwardingSvc, Configs: whisperSvc}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(m.Middleware())

	registerRoutes(r, routeDeps{
		DB:       db,
		Metrics:  m,
		Provider: provider,
		AuthMW:   auth.RequireAccessToken(authManager),
		Webhooks: webhooks.Handlers{
			Router:  routing.NewRouter(engine, callbacks, tracker, m),
			Calls:   tracker,
			Audio:   whisperSvc,
			Metrics: m,
		},
		API: httpapi.Handlers{
			Numbers:       numSvc,
			Forwarding:    forwardingSvc,
			Whisper:       whisperSvc,
			Calls:         tracker,
			Billing:       billingSvc,
			Reports:       reporting.NewService(tracker, billingSvc, cfg.Billing.Currency),
			Audit:         auditSvc,
			MaxAudioBytes: cfg.Whisper.MaxAudioBytes,
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "public_base_url", cfg.App.PublicBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
