package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"visor/internal/adapter/repo"
	"visor/internal/admission"
	"visor/internal/domain"
	httpapi "visor/internal/http"
	"visor/internal/http/handlers"
	"visor/internal/infra"
	"visor/internal/infra/credentials"
	"visor/internal/infra/geoip"
	"visor/internal/middleware"
	"visor/internal/providers/genai"
	"visor/internal/providers/vision"
	"visor/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// The archive is optional: without DATABASE_URL the service runs with
	// history endpoints disabled and all admission state in memory.
	var (
		analysisRepo domain.AnalysisRepository
		sqlRunner    infra.SQLExecutor
	)
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		sqlRunner = infra.NewSQLRunner(dbpool, logger)
		analysisRepo = repo.NewAnalysisRepository(sqlRunner)
	} else {
		logger.Warn().Msg("DATABASE_URL not set; analysis archive disabled")
	}

	// Environment key wins; the credentials store covers rotation without a
	// redeploy.
	apiKey := cfg.GeminiAPIKey
	if apiKey == "" && sqlRunner != nil {
		stored, err := credentials.NewStore(sqlRunner).GeminiAPIKey(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("failed to load stored gemini key")
		}
		apiKey = stored
	}
	if apiKey == "" {
		logger.Fatal().Msg("GEMINI_API_KEY is required (environment or credentials store)")
	}

	client, err := genai.NewClient(genai.Options{
		APIKey:  apiKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}
	analyzer := vision.NewAnalyzer(client, vision.Options{
		PrimaryModel:   cfg.GeminiModel,
		FallbackModels: cfg.GeminiFallbackModels,
		DailyLimit:     cfg.DailyQuotaLimit,
		Logger:         logger,
	})
	gate := admission.NewGate(admission.Config{
		DailyQuotaLimit:    cfg.DailyQuotaLimit,
		GlobalCooldown:     cfg.GlobalCooldown,
		UserCooldown:       cfg.UserCooldown,
		MaxCacheEntries:    cfg.MaxCacheEntries,
		CacheEvictionBatch: cfg.CacheEvictionBatch,
		ProviderTimeout:    cfg.ProviderTimeout,
	}, analyzer, logger)

	store, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Error().Err(err).Msg("geoip database unavailable")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.CountryCode
	}

	app := &handlers.App{
		Gate:   gate,
		Models: client,
		Repo:   analysisRepo,
		Store:  store,
		Cfg:    cfg,
		Logger: logger,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Cfg:           cfg,
		Logger:        logger,
		CountryLookup: lookup,
	})
	server := infra.NewHTTPServer(cfg, router)

	maintCtx, stopMaintenance := context.WithCancel(ctx)
	defer stopMaintenance()
	go gate.RunMaintenance(maintCtx, cfg.MaintenanceInterval)

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("model", client.Model()).
			Msg("api listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
