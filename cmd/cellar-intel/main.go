// Command cellar-intel runs the wine cellar intelligence service: the
// Inventory Ledger, Pairing Engine, Vintage Intelligence, Learning &
// Experimentation, the Agent/Tool Dispatcher, the Realtime Broadcaster,
// and Observability RUM ingestion, behind one HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cellarworks/cellar-intel/infrastructure/logging"
	"github.com/cellarworks/cellar-intel/infrastructure/metrics"
	"github.com/cellarworks/cellar-intel/infrastructure/middleware"
	"github.com/cellarworks/cellar-intel/internal/ai"
	"github.com/cellarworks/cellar-intel/internal/api"
	"github.com/cellarworks/cellar-intel/internal/broadcaster"
	"github.com/cellarworks/cellar-intel/internal/cachefabric"
	"github.com/cellarworks/cellar-intel/internal/dispatcher"
	"github.com/cellarworks/cellar-intel/internal/domain"
	"github.com/cellarworks/cellar-intel/internal/learning"
	"github.com/cellarworks/cellar-intel/internal/ledger"
	"github.com/cellarworks/cellar-intel/internal/observability"
	"github.com/cellarworks/cellar-intel/internal/pairing"
	"github.com/cellarworks/cellar-intel/internal/persistence"
	"github.com/cellarworks/cellar-intel/internal/persistence/migrations"
	"github.com/cellarworks/cellar-intel/internal/scheduler"
	"github.com/cellarworks/cellar-intel/internal/vintage"
	"github.com/cellarworks/cellar-intel/internal/weather"
	"github.com/cellarworks/cellar-intel/pkg/config"
)

const serviceName = "cellar-intel"

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to config)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config/env)")
	runMigrations := flag.Bool("migrate", true, "run embedded database migrations on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(serviceName, cfg.Logging.Level, cfg.Logging.Format)
	m := metrics.Init(serviceName)

	dsnVal := resolveDSN(*dsn, cfg)
	if dsnVal == "" {
		log.Fatal("a database DSN is required (pass -dsn, set DATABASE_URL, or configure database.dsn)")
	}

	ctx := context.Background()
	store, err := persistence.Open(ctx, dsnVal, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}

	if *runMigrations && cfg.Database.MigrateOnStart {
		if err := migrations.Apply(ctx, store.DB()); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
	}

	wines := persistence.NewWineRepo(store)
	ledgerRepo := persistence.NewLedgerRepo(store)
	pairingRepo := persistence.NewPairingRepo(store)
	experimentRepo := persistence.NewExperimentRepo(store)
	idempotencyRepo := persistence.NewIdempotencyRepo(store)
	rumRepo := persistence.NewRUMRepo(store)
	weatherCacheRepo := persistence.NewWeatherCacheRepo(store)

	cacheCfg := cachefabric.DefaultConfig()
	cacheCfg.MaxSize = cfg.Cache.MaxEntries
	cacheCfg.MemoryLimit = cfg.Cache.MaxMemoryBytes
	cacheCfg.DefaultTTL = cfg.Cache.DefaultTTL
	cacheCfg.Strategy = cachefabric.Strategy(cfg.Cache.EvictionPolicy)
	cacheCfg.CleanupInterval = cfg.Cache.CleanupEvery
	cache := cachefabric.New(serviceName, "cellar", cacheCfg)

	var weatherClient weather.DailySeriesClient
	if !cfg.Weather.KillSwitchEnabled && cfg.Weather.BaseURL != "" {
		weatherClient = weather.NewHTTPDailySeriesClient(cfg.Weather.BaseURL)
	}
	fetcher := weather.New(weather.Config{
		MaxRequests:          int(cfg.Weather.RateLimitPerSec * 60),
		WindowMS:             60_000,
		RetryAttempts:        cfg.Weather.MaxRetries,
		InitialDelayMS:       200,
		BackoffFactor:        2.0,
		Jitter:               0.2,
		DisableExternalCalls: cfg.Weather.KillSwitchEnabled,
		CacheTTL:             30 * 24 * time.Hour,
		BaseURL:              cfg.Weather.BaseURL,
	}, weatherClient, cache, weatherCacheRepo)

	vintageEngine := vintage.NewEngine(fetcher, wines)

	enrich := func(ctx context.Context, vintageID string) {
		v, err := wines.GetVintage(ctx, vintageID)
		if err != nil {
			logger.WithError(err).Warn("enrichment: vintage lookup failed")
			return
		}
		w, err := wines.GetWine(ctx, v.WineID)
		if err != nil {
			logger.WithError(err).Warn("enrichment: wine lookup failed")
			return
		}
		if _, err := vintageEngine.EnrichWineData(ctx, w, v); err != nil {
			logger.WithError(err).Warn("enrichment failed")
		}
	}
	cellarLedger := ledger.New(store, ledgerRepo, enrich)

	taskHandler := func(ctx context.Context, task *scheduler.Task) error {
		for _, year := range task.Years {
			if _, _, err := fetcher.Analyze(ctx, task.Region, "", year); err != nil {
				return err
			}
		}
		return nil
	}
	weatherScheduler := scheduler.New(scheduler.Config{
		MaxConcurrentTasks: cfg.Scheduler.WorkerCount,
		RetryAttempts:      cfg.Scheduler.MaxRetries,
		InitialDelay:       cfg.Scheduler.RetryBaseWait,
		BackoffFactor:      2.0,
		TickInterval:       cfg.Scheduler.PollInterval,
	}, taskHandler)
	weatherScheduler.Start(ctx)

	var aiProvider ai.Provider
	if cfg.AI.APIKey != "" {
		provider, err := ai.NewGenAIProvider(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			logger.WithError(err).Warn("ai provider disabled: initialization failed")
		} else {
			aiProvider = provider
		}
	}

	weightEngine := learning.NewWeightEngine(pairingRepo)
	experimentService := learning.NewExperimentService(experimentRepo)
	analyzer := learning.NewAnalyzer(experimentRepo)

	pairingEngine := pairing.NewEngine(store, wines, pairingRepo, cache, weightEngine, aiProvider, cfg.Weather.KillSwitchEnabled)

	tools := dispatcher.New(idempotencyRepo)
	registerCapabilities(tools, cellarLedger, pairingEngine)

	realtime := broadcaster.NewHub()
	rum := observability.NewBuffer(10_000, rumRepo, m, serviceName)

	server := api.NewServer(wines, ledgerRepo, pairingRepo, experimentRepo, cellarLedger, pairingEngine,
		experimentService, analyzer, tools, realtime, rum, m)

	corsCfg := &middleware.CORSConfig{AllowCredentials: true}
	handler := server.Routes(serviceName, corsCfg)

	listenAddr := determineAddr(*addr, cfg)
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := middleware.NewGracefulShutdown(httpServer, 10*time.Second)
	shutdown.OnShutdown(func() {
		weatherScheduler.Stop()
		store.Close()
	})
	shutdown.ListenForSignals()

	logger.Info(ctx, "cellar-intel listening", map[string]interface{}{"addr": listenAddr})
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("serve: %v", err)
	}
	shutdown.Wait()
}

func determineAddr(flagAddr string, cfg *config.Config) string {
	addr := strings.TrimSpace(flagAddr)
	if addr != "" {
		return addr
	}
	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func resolveDSN(flagDSN string, cfg *config.Config) string {
	if trimmed := strings.TrimSpace(flagDSN); trimmed != "" {
		return trimmed
	}
	if cfg.Database.DSN != "" {
		return strings.TrimSpace(cfg.Database.DSN)
	}
	if cfg.Database.Host != "" && cfg.Database.Name != "" {
		return cfg.Database.ConnectionString()
	}
	return ""
}

// registerCapabilities exposes the mutating inventory and pairing
// operations as dispatcher tools, generalized from the teacher's
// role-gated service handlers.
func registerCapabilities(tools *dispatcher.Dispatcher, cellarLedger *ledger.Ledger, pairingEngine *pairing.Engine) {
	tools.Register(&dispatcher.Capability{
		Name:               "inventory.consume",
		Description:        "Decrement stock at a location",
		Mutating:           true,
		AllowedRoles:       []dispatcher.Role{dispatcher.RoleCrew, dispatcher.RoleAdmin},
		RequireIdempotency: true,
		ParamSchema: dispatcher.ParamSchema{
			"vintage_id": {Type: dispatcher.TypeString, Required: true},
			"location":   {Type: dispatcher.TypeString, Required: true},
			"quantity":   {Type: dispatcher.TypeNumber, Required: true},
			"notes":      {Type: dispatcher.TypeString},
		},
		Handler: func(ctx context.Context, params map[string]interface{}, dryRun bool) (interface{}, error) {
			if dryRun {
				return map[string]interface{}{"simulated": true}, nil
			}
			vintageID, _ := params["vintage_id"].(string)
			location, _ := params["location"].(string)
			qty, _ := params["quantity"].(float64)
			notes, _ := params["notes"].(string)
			if err := cellarLedger.Consume(ctx, vintageID, location, int(qty), notes, "dispatcher"); err != nil {
				return nil, err
			}
			return map[string]interface{}{"consumed": qty}, nil
		},
	})

	tools.Register(&dispatcher.Capability{
		Name:         "pairing.generate",
		Description:  "Generate wine pairing recommendations for a dish",
		Mutating:     false,
		AllowedRoles: []dispatcher.Role{dispatcher.RoleGuest, dispatcher.RoleCrew, dispatcher.RoleAdmin},
		ParamSchema: dispatcher.ParamSchema{
			"dish": {Type: dispatcher.TypeString, Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}, dryRun bool) (interface{}, error) {
			dish, _ := params["dish"].(string)
			raw, err := json.Marshal(dish)
			if err != nil {
				return nil, err
			}
			result, err := pairingEngine.QuickPairing(ctx, pairing.Request{
				Dish:    raw,
				Options: domain.PairingOptions{Quick: true},
			})
			if err != nil {
				return nil, err
			}
			return result, nil
		},
	})
}
