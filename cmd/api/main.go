package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"educamp/internal/config"
	"educamp/internal/db"
	"educamp/internal/email"
	apihttp "educamp/internal/http"
	"educamp/internal/messaging"
	"educamp/internal/payment"
	"educamp/internal/repository"
	"educamp/internal/service"
	"educamp/internal/session"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if cfg.MigrationsAuto {
		if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	studentRepo := repository.NewPgStudentRepository(pool)
	classRepo := repository.NewPgClassRepository(pool)
	paymentRepo := repository.NewPgPaymentRepository(pool)
	enrollmentRepo := repository.NewPgEnrollmentRepository(pool)

	registry := session.NewRegistry(userRepo, logger,
		session.WithTTL(cfg.SessionTTL),
		session.WithSweepInterval(cfg.SessionSweepInterval),
	)
	defer registry.Close()

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	loginLimiter := service.NewLoginRateLimiter(cfg.LoginWindow, cfg.LoginMaxAttempts)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory login limiter", zap.Error(err))
		} else {
			loginLimiter = service.NewRedisLoginRateLimiter(redisClient, cfg.LoginWindow, cfg.LoginMaxAttempts)
		}
		cancel()
	}

	var natsClient *messaging.NATSClient
	if cfg.NATSURL != "" {
		natsCfg := messaging.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsClient, err = messaging.NewNATSClient(natsCfg, logger)
		if err != nil {
			logger.Warn("nats connect failed, events disabled", zap.Error(err))
			natsClient = nil
		}
	}

	reconcilerOpts := []service.ReconcilerOption{
		service.WithSubscriptionWindow(cfg.EnrollmentWindowMonths),
		service.WithEnrollmentNotifier(service.NewEmailEnrollmentNotifier(userRepo, classRepo, emailSender)),
	}
	if natsClient != nil {
		reconcilerOpts = append(reconcilerOpts,
			service.WithEnrollmentPublisher(messaging.NewEnrollmentPublisher(natsClient, cfg.NATSEnrolledSubject)))
	}
	reconciler := service.NewEnrollmentReconciler(logger, enrollmentRepo, studentRepo, classRepo, paymentRepo, reconcilerOpts...)

	var provider payment.Provider
	if cfg.PayPalClientID != "" {
		provider = payment.NewPayPalClient(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalClientSecret, logger)
	} else {
		logger.Warn("paypal not configured, order capture disabled")
	}
	paymentSvc := service.NewPaymentService(logger, provider, paymentRepo, reconciler)

	if natsClient != nil {
		consumer := messaging.NewCapturedConsumer(paymentSvc, logger)
		if err := consumer.Start(natsClient, cfg.NATSCapturedSubject, cfg.NATSQueueGroup); err != nil {
			logger.Warn("captured consumer start failed", zap.Error(err))
		}
		defer natsClient.Close()
	}

	if cfg.PaymentCallbackSecret == "" {
		logger.Warn("payment callback secret not configured, callbacks will be rejected")
	}
	verifier := service.NewCallbackVerifier(cfg.PaymentCallbackSecret, cfg.PaymentCallbackIssuer)

	authSvc := service.NewAuthService(logger, userRepo, registry, loginLimiter)
	authHandler := apihttp.NewAuthHandler(logger, authSvc, apihttp.CookieConfig{
		Secure: cfg.SessionCookieSecure,
		Domain: cfg.SessionCookieDomain,
		MaxAge: registry.TTL(),
	})
	paymentHandler := apihttp.NewPaymentHandler(logger, paymentSvc, verifier)
	enrollmentHandler := apihttp.NewEnrollmentHandler(logger, reconciler)
	router := apihttp.NewRouter(logger, registry, authHandler, paymentHandler, enrollmentHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
