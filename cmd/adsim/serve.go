package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"adsim/internal/causal"
	"adsim/internal/config"
	cronrunner "adsim/internal/cron"
	"adsim/internal/db"
	"adsim/internal/handler"
	"adsim/internal/logger"
	"adsim/internal/metrics"
	gormrepository "adsim/internal/repository/gorm"
	"adsim/internal/searchterms"
	"adsim/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			return serve(cfgPath)
		},
	}
}

func serve(cfgPath string) error {
	if env := os.Getenv("ADSIM_CONFIG"); env != "" {
		cfgPath = env
	}
	envOnly := false
	if raw := os.Getenv("ADSIM_ENV_ONLY"); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	store := gormrepository.New(dbConn.Gorm)
	scenarioSvc := &service.ScenarioService{Repo: store, Logger: log}
	runSvc := &service.RunService{
		Repo:            store,
		Scenarios:       scenarioSvc,
		Logger:          log,
		Metrics:         m,
		DefaultDuration: cfg.Simulation.DefaultDurationDays,
		MaxSeed:         cfg.Simulation.MaxSeed,
	}
	causalSvc, err := causal.NewService(store, log, m, cfg.Causal.CacheSize, causal.Thresholds{
		FlatPct:           cfg.Causal.FlatThresholdPct,
		IntentShiftPoints: cfg.Causal.IntentShiftPoints,
		CrisisLowPct:      cfg.Causal.CrisisLowIntentPct,
		RecoveryLowPct:    cfg.Causal.RecoveryLowIntentPct,
		EarlyWindowDays:   cfg.Causal.EarlyWindowDays,
	})
	if err != nil {
		log.Fatal("causal service init failed", zap.Error(err))
	}
	searchTermsSvc := &searchterms.Service{
		Repo:        store,
		Logger:      log,
		ReportLimit: cfg.SearchTerms.ReportLimit,
	}

	seeded, err := scenarioSvc.SeedFromDir(context.Background(), cfg.Scenarios.SeedDir)
	if err != nil {
		log.Warn("scenario seeding failed", zap.Error(err))
	} else {
		log.Info("scenarios seeded", zap.Int("count", seeded))
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), handler.MetricsMiddleware(m))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	scenarioHandler := &handler.ScenarioHandler{Service: scenarioSvc, Logger: log}
	scenarioHandler.Register(engine)
	runHandler := &handler.RunHandler{Service: runSvc, Logger: log}
	runHandler.Register(engine)
	causalHandler := &handler.CausalHandler{Service: causalSvc, Logger: log}
	causalHandler.Register(engine)
	searchTermsHandler := &handler.SearchTermsHandler{
		Service:   searchTermsSvc,
		Runs:      runSvc,
		Scenarios: scenarioSvc,
		Logger:    log,
	}
	searchTermsHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(log, ctx)
	if cfg.Cron.Enabled {
		autoAdvance := &service.AutoAdvanceService{
			Runs:      runSvc,
			Repo:      store,
			Logger:    log,
			BatchSize: cfg.Cron.BatchSize,
		}
		if _, err := cronRunner.Add(cfg.Cron.AutoAdvance, func(ctx context.Context) {
			if err := autoAdvance.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("auto advance tick failed", zap.Error(err))
			}
		}); err != nil {
			log.Warn("cron register auto advance failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	return nil
}
