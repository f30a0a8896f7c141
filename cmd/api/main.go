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

	"carecall-platform/internal/agent"
	"carecall-platform/internal/audit"
	"carecall-platform/internal/auth"
	"carecall-platform/internal/bridge"
	"carecall-platform/internal/calls"
	"carecall-platform/internal/carrier"
	"carecall-platform/internal/config"
	"carecall-platform/internal/enrich"
	"carecall-platform/internal/memories"
	"carecall-platform/internal/notify"
	"carecall-platform/internal/recipients"
	"carecall-platform/internal/scheduler"
	"carecall-platform/internal/schedules"
	"carecall-platform/internal/store"
	"carecall-platform/pkg/logger"
	"carecall-platform/pkg/utils"

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

	if err := store.Migrate(rootCtx, db); err != nil {
		log.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Repositories
	recipientRepo := recipients.NewRepository(db)
	scheduleRepo := schedules.NewRepository(db)
	callRepo := calls.NewRepository(db)
	memoryRepo := memories.NewRepository(db)
	notifyRepo := notify.NewRepository(db)

	// Services
	notifier := notify.NewService(notifyRepo, rdb)
	carrierClient := carrier.NewClient(cfg.Twilio, cfg.App)
	if carrierClient.Simulated() {
		log.Warn("carrier credentials absent, running in simulation mode")
	}

	agentClient := agent.NewClient(cfg.Agent)
	conversations := bridge.NewConversationStore()
	mediaBridge := bridge.NewHandler(bridge.AgentStarter{Client: agentClient}, conversations)

	enricher := enrich.NewService(callRepo, memoryRepo, conversations, enrich.NewLLMClient(cfg.LLM))
	callService := calls.NewService(callRepo, carrierClient, recipientRepo, notifier, enricher, rdb, cfg.Agent.AgentID, cfg.App.MaxConcurrentCalls)

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	sched := scheduler.New(scheduleRepo, callRepo, recipientRepo, callService)
	go sched.Run(rootCtx)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:           cfg,
		authManager:   authManager,
		callService:   callService,
		callRepo:      callRepo,
		recipientRepo: recipientRepo,
		memoryRepo:    memoryRepo,
		notifyRepo:    notifyRepo,
		auditSvc:      auditSvc,
		mediaBridge:   mediaBridge,
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

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
