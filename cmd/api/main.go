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

	"callmonitor/internal/accounts"
	"callmonitor/internal/agents"
	"callmonitor/internal/audit"
	"callmonitor/internal/auth"
	"callmonitor/internal/calls"
	"callmonitor/internal/campaigns"
	"callmonitor/internal/compliance"
	"callmonitor/internal/config"
	"callmonitor/internal/dialer"
	"callmonitor/internal/httpapi"
	"callmonitor/internal/telephony"
	"callmonitor/pkg/logger"
	"callmonitor/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Storage
	accountDir := accounts.NewPostgresDirectory(db)
	callRepo := calls.NewPostgresRepo(db)
	campaignRepo := campaigns.NewPostgresRepo(db)
	agentPool := agents.NewPostgresPool(db)
	auditRepo := audit.NewPostgresRepo(db)

	// Audit: the buffered writer serves the hot paths (gate decisions,
	// webhook transitions); control actions append through the service.
	auditSvc := audit.NewService(auditRepo)
	auditWriter := audit.NewWriter(auditSvc, log, 1024)

	// Compliance gate
	oracle := compliance.NewOracle(callRepo, compliance.ZoneConfig{
		DefaultZone: cfg.Dialer.DefaultTimezone,
		StartHour:   cfg.Dialer.CallWindowStartHour,
		EndHour:     cfg.Dialer.CallWindowEndHour,
	}, time.Now)
	gate := compliance.NewGate(accountDir, oracle, auditWriter, log)

	// Carrier and dialer
	carrier := telephony.NewSignalWireProvider(cfg.SignalWire)
	slots := dialer.NewRedisSlotLimiter(rdb, cfg.Dialer.MaxConcurrentDials, cfg.Dialer.DialSlotTTL)

	orch := dialer.NewOrchestrator(campaignRepo, callRepo, agentPool, gate, carrier, slots,
		auditSvc, cfg.Dialer, cfg.SignalWire.FromNumber, log)
	router := dialer.NewRouter(callRepo, campaignRepo, agentPool, carrier, slots,
		dialer.NewTranscriber(auditWriter), cfg.Dialer, log)

	go orch.Run(rootCtx, cfg.Dialer.TickInterval)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		authMW: auth.RequireAccessToken(authManager),
		handlers: httpapi.Handlers{
			Auth:         authManager,
			Orchestrator: orch,
			Gate:         gate,
		},
		webhooks: telephony.WebhookHandler{Router: router},
		db:       db,
		rdb:      rdb,
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
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
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
	if err := auditWriter.Close(shutdownCtx); err != nil {
		log.Error("audit writer drain failed", "err", err)
	}
}
