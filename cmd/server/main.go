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

	"go.uber.org/zap"

	"account-service/internal/account/handler"
	"account-service/internal/account/service"
	auditlog "account-service/internal/audit"
	auditrepo "account-service/internal/audit/repository"
	"account-service/internal/config"
	"account-service/internal/db"
	"account-service/internal/mailer"
	"account-service/internal/otp"
	otprepo "account-service/internal/otp/repository"
	"account-service/internal/security"
	"account-service/internal/server"
	"account-service/internal/server/middleware"
	"account-service/internal/telemetry/otel"
	userrepo "account-service/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	defer conn.Close()

	ctx := context.Background()
	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "account-service", cfg.OTLPInsecure)
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		logger.Fatal("jwt private key", zap.Error(err))
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		logger.Fatal("jwt public key", zap.Error(err))
	}
	tokens := security.NewTokenProvider(privateKey, publicKey,
		cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())

	hasher := security.NewHasher(cfg.BcryptCost)
	users := userrepo.NewPostgresRepository(conn)
	otps := otp.NewEngine(otprepo.NewPostgresRepository(conn), nil)

	var sender mailer.Sender
	if cfg.SMTPHost != "" {
		sender = mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.FromEmail)
	} else {
		logger.Warn("SMTP_HOST not set; outbound mail will be logged, not delivered")
		sender = &mailer.LogSender{Logger: logger}
	}
	dispatcher := mailer.NewDispatcher(sender, logger, cfg.MailerWorkers, cfg.MailerQueueSize)

	audit := auditlog.NewLogger(auditrepo.NewPostgresRepository(conn), logger, middleware.GetClientIP)

	svc := service.NewService(users, otps, hasher, tokens, dispatcher, audit,
		cfg.ActivationWindow(), cfg.ShortWindow())
	h := handler.NewHandler(svc, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(h, tokens),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	// Drain queued mail before the process exits.
	dispatcher.Close()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
