package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prepwise/partner-server-go/internal/auth"
	"github.com/prepwise/partner-server-go/internal/config"
	"github.com/prepwise/partner-server-go/internal/database"
	"github.com/prepwise/partner-server-go/internal/handler"
	"github.com/prepwise/partner-server-go/internal/httputil"
	"github.com/prepwise/partner-server-go/internal/jobs"
	"github.com/prepwise/partner-server-go/internal/mailer"
	"github.com/prepwise/partner-server-go/internal/middleware"
	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/redis"
	"github.com/prepwise/partner-server-go/internal/repository"
	"github.com/prepwise/partner-server-go/internal/service"
	"github.com/prepwise/partner-server-go/internal/sse"
	"github.com/prepwise/partner-server-go/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	isProduction := cfg.IsProduction()
	if !isProduction {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	httputil.SetExposeInternalErrors(!isProduction)

	poolOpts := database.DefaultPoolOptions()
	poolOpts.MaxOpenConns = cfg.DBMaxOpenConns
	poolOpts.MaxIdleConns = cfg.DBMaxIdleConns

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	db, err := database.Connect(ctx, cfg.DatabaseURL, poolOpts)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	prometheus.MustRegister(collectors.NewDBStatsCollector(db.DB.DB, "partner"))
	log.Info().Msg("database connected")

	if cfg.AutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	ctx, cancel = context.WithTimeout(context.Background(), config.DBPingTimeout)
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	userRepo := repository.NewUserRepository(db.DB)
	partnerRepo := repository.NewPartnerRepository(db.DB)
	linkRepo := repository.NewPartnerCandidateRepository(db.DB)
	batchRepo := repository.NewBatchRepository(db.DB)
	seatRepo := repository.NewSeatRepository(db.DB)
	examRepo := repository.NewExamRepository(db.DB)
	enrollmentRepo := repository.NewEnrollmentRepository(db.DB)
	notificationRepo := repository.NewNotificationRepository(db.DB)
	uploadRepo := repository.NewCandidateUploadRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	var store storage.ObjectStore = storage.NopStore{}
	if cfg.S3Bucket != "" {
		s3Store, err := storage.NewS3Store(storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure object storage")
		}
		store = s3Store
	}

	smtpMailer := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		FromEmail: cfg.SMTPFromEmail,
		FromName:  cfg.SMTPFromName,
	})

	notificationService := service.NewNotificationService(notificationRepo, broker)
	partnerService := service.NewPartnerService(partnerRepo, examRepo)
	seatLedger := service.NewSeatLedger(seatRepo, batchRepo, cfg.SeatReservationMode)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, examRepo, userRepo, notificationService)
	candidateService := service.NewCandidateService(
		db, userRepo, linkRepo, batchRepo, partnerRepo, uploadRepo,
		seatLedger, enrollmentService, smtpMailer, store,
		service.CandidateServiceConfig{
			AppBaseURL:     cfg.AppBaseURL,
			InviteTokenTTL: cfg.InviteTokenTTL(),
		},
	)

	tokenService := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)
	apiRateLimit := middleware.NewRateLimitMiddleware(
		service.NewRateLimiter(redisClient.Client, true),
		cfg.APIRateLimitPerMin, config.APIRateWindow, "api", middleware.ByPrincipal,
	)
	acceptInviteRateLimit := middleware.NewRateLimitMiddleware(
		service.NewRateLimiter(redisClient.Client, false),
		cfg.AcceptInviteRateLimit, config.AcceptInviteRateWindow, "accept-invite", middleware.ByIP,
	)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	candidateHandler := handler.NewCandidateHandler(candidateService, cfg.MaxCSVUploadBytes)
	seatHandler := handler.NewSeatHandler(seatLedger)
	partnerHandler := handler.NewPartnerHandler(partnerService)
	examHandler := handler.NewExamHandler(partnerService, enrollmentService)
	notificationHandler := handler.NewNotificationHandler(notificationService, broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := db.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("health check failed")
			status, code = "degraded", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"timestamp": time.Now().UnixMilli(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Public: candidates arrive here from the invitation email without a token.
		r.With(acceptInviteRateLimit.Handler, chimiddleware.Timeout(config.ServerRequestTimeout)).
			Post("/candidates/{candidateID}/accept-invite", candidateHandler.AcceptInvite)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Use(apiRateLimit.Handler)

			// Long-lived stream, no request timeout.
			r.Get("/notifications/events", notificationHandler.Events)

			r.Group(func(r chi.Router) {
				r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAccountType(model.AccountTypePartner))
					r.Mount("/candidates", candidateHandler.Routes())
					r.Mount("/seats", seatHandler.Routes())
					r.Mount("/partners", partnerHandler.Routes())
				})

				r.Mount("/exams", examHandler.Routes())
				r.Mount("/notifications", notificationHandler.Routes())
			})
		})
	})

	var backgroundJobs []*jobs.Job
	if job := jobs.NewInviteExpiryJob(candidateService, cfg.InviteExpiryAge(), redisClient); job != nil {
		backgroundJobs = append(backgroundJobs, job)
	}
	backgroundJobs = append(backgroundJobs, jobs.NewSeatSunsetJob(seatLedger, redisClient))
	for _, job := range backgroundJobs {
		job.Start()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("env", cfg.AppEnv).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	for _, job := range backgroundJobs {
		job.Stop()
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
