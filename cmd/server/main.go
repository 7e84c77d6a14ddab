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

	"gym-access-control/backend/internal/audit"
	auditdomain "gym-access-control/backend/internal/audit/domain"
	auditrepo "gym-access-control/backend/internal/audit/repository"
	"gym-access-control/backend/internal/clock"
	"gym-access-control/backend/internal/config"
	"gym-access-control/backend/internal/db"
	"gym-access-control/backend/internal/decision"
	facilityrepo "gym-access-control/backend/internal/facility/repository"
	identityrepo "gym-access-control/backend/internal/identity/repository"
	"gym-access-control/backend/internal/membership"
	membershiprepo "gym-access-control/backend/internal/membership/repository"
	policyengine "gym-access-control/backend/internal/policy/engine"
	policyrepo "gym-access-control/backend/internal/policy/repository"
	"gym-access-control/backend/internal/security"
	"gym-access-control/backend/internal/server"
	"gym-access-control/backend/internal/telemetry"
	otelsetup "gym-access-control/backend/internal/telemetry/otel"
	"gym-access-control/backend/internal/token"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "gym-access-control", cfg.OTLPInsecure)
	if err != nil {
		logger.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	metrics, err := telemetry.NewMetrics(providers.MeterProvider.Meter("gym-access-control"))
	if err != nil {
		logger.Fatalf("metrics: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer conn.Close()

	gateKey, err := security.DeriveKey([]byte(cfg.GateTokenSecret), "gate-token")
	if err != nil {
		logger.Fatalf("derive gate key: %v", err)
	}

	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		logger.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(nil, pub, cfg.JWTIssuer, cfg.JWTAudience, 0)

	identities := identityrepo.NewPostgresRepository(conn)
	facilities := facilityrepo.NewPostgresRepository(conn)
	memberships := membershiprepo.NewPostgresRepository(conn)
	policies := policyrepo.NewPostgresRepository(conn)
	auditlogs := auditrepo.NewPostgresRepository(conn)

	evaluator := policyengine.NewOPAEvaluator(policies)
	gate := membership.NewGate(memberships, evaluator)

	recorder := audit.NewRecorder(auditlogs, func(err error, entry *auditdomain.AccessLog) {
		logger.Printf("ALERT audit write failed facility=%s outcome=%s: %v", entry.FacilityID, entry.Outcome, err)
	})

	engine := decision.NewEngine(
		token.NewValidator(gateKey, cfg.TokenTTL()),
		token.NewMemoryReplayStore(clock.System{}),
		gate,
		identities,
		recorder,
		metrics,
		clock.System{},
		cfg.StoreTimeout(),
	)

	srv := server.NewServer(server.Dependencies{
		Logger:   logger,
		Addr:     cfg.HTTPAddr,
		Engine:   engine,
		Issuer:   token.NewIssuer(gateKey, identities, clock.System{}),
		Tokens:   tokens,
		Staff:    facilities,
		Logs:     auditlogs,
		DB:       conn,
		Policy:   evaluator,
		TokenTTL: cfg.TokenTTL(),
	})

	go func() {
		logger.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
	recorder.Close()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Printf("telemetry shutdown: %v", err)
	}
	logger.Println("HTTP server stopped")
}
