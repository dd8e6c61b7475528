// Package shelvesservice wires configuration, storage, domain services and
// the HTTP surface into a runnable service.
package shelvesservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/fTr0ut/shelvesai/internal/aggregator"
	"github.com/fTr0ut/shelvesai/internal/api"
	"github.com/fTr0ut/shelvesai/internal/api/recovery"
	"github.com/fTr0ut/shelvesai/internal/collectables"
	"github.com/fTr0ut/shelvesai/internal/config"
	"github.com/fTr0ut/shelvesai/internal/covers"
	"github.com/fTr0ut/shelvesai/internal/discovery"
	"github.com/fTr0ut/shelvesai/internal/factory"
	"github.com/fTr0ut/shelvesai/internal/feed"
	"github.com/fTr0ut/shelvesai/internal/health"
	"github.com/fTr0ut/shelvesai/internal/match"
	"github.com/fTr0ut/shelvesai/internal/platform/logger"
	"github.com/fTr0ut/shelvesai/internal/store"
)

const (
	healthInterval     = 15 * time.Second
	healthProbeTimeout = 2 * time.Second
)

// Run starts the shelves service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("shelves-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Dur("aggregate_window", cfg.AggregateWindow).
		Msg("Shelves service starting")

	// Cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Store adapter unavailable")
		return err
	}

	deps := buildServices(ctx, cfg, st, log)
	router := buildRouter(st, deps, cfg)

	svcHealth := startHealthCheckers(ctx, log, st)
	if err := waitUntilHealthy(ctx, svcHealth); err != nil {
		log.Error().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

// services groups the constructed domain layer for router wiring.
type services struct {
	catalog  *collectables.Service
	matcher  *match.Matcher
	recorder *aggregator.Recorder
	ingestor *discovery.Ingestor
	composer *feed.Composer
	adapters []discovery.Adapter
}

func buildServices(ctx context.Context, cfg *config.Config, st store.Store, log zerolog.Logger) *services {
	var coverQueue collectables.CoverEnqueuer
	if !cfg.CoverWorkersOff {
		worker := covers.NewWorker(st, cfg.CoverCacheDir, cfg.CoverQueueSize, log)
		worker.Start(ctx)
		coverQueue = worker
	}

	var adapters []discovery.Adapter
	feeds, _ := cfg.ParseRSSFeeds() // already validated by ResolveDefaults
	for _, f := range feeds {
		adapters = append(adapters, discovery.NewRSSAdapter(f.Provider, f.URL, f.Kind))
	}

	var recs feed.RecommendationSource
	if cfg.RecommendationURL != "" {
		recs = feed.NewHTTPRecommendationSource(cfg.RecommendationURL)
	}

	catalog := collectables.NewService(st, coverQueue, log)
	return &services{
		catalog:  catalog,
		matcher:  match.New(st),
		recorder: aggregator.New(st, cfg.AggregateWindow, cfg.PreviewCap, log),
		ingestor: discovery.NewIngestor(st, catalog, log),
		composer: feed.NewComposer(st, recs, cfg.DiscoveryStride, log),
		adapters: adapters,
	}
}

// buildRouter wires HTTP routes to handlers.
func buildRouter(st store.Store, deps *services, cfg *config.Config) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware)

	// Events and aggregates
	events := api.NewEventHandler(deps.recorder, st)
	root.HandleFunc("/api/events", events.RecordEvent).Methods("POST")
	root.HandleFunc("/api/aggregates/{aggregateId}", events.GetAggregate).Methods("GET")
	root.HandleFunc("/api/aggregates/{aggregateId}/entries", events.ListAggregateEntries).Methods("GET")

	// Collectables
	coll := api.NewCollectableHandler(deps.catalog, deps.matcher, cfg.FuzzyThreshold)
	root.HandleFunc("/api/collectables", coll.Upsert).Methods("POST")
	root.HandleFunc("/api/collectables/matches", coll.Matches).Methods("GET")
	root.HandleFunc("/api/collectables/{collectableId}", coll.Get).Methods("GET")
	root.HandleFunc("/api/collectables/{collectableId}/fuzzy-fingerprints", coll.AddFuzzyFingerprint).Methods("POST")

	// Ingestion
	ingest := api.NewIngestHandler(deps.ingestor, deps.adapters...)
	root.HandleFunc("/api/ingest/{provider}", ingest.IngestBatch).Methods("POST")
	root.HandleFunc("/api/ingest/{provider}/run", ingest.RunAdapter).Methods("POST")

	// Feed
	feedHandler := api.NewFeedHandler(deps.composer)
	root.HandleFunc("/api/feed", feedHandler.GetFeed).Methods("GET")

	// Social
	social := api.NewSocialHandler(st)
	root.HandleFunc("/api/aggregates/{aggregateId}/likes", social.Like).Methods("POST")
	root.HandleFunc("/api/aggregates/{aggregateId}/likes", social.Unlike).Methods("DELETE")
	root.HandleFunc("/api/aggregates/{aggregateId}/comments", social.AddComment).Methods("POST")
	root.HandleFunc("/api/friends", social.UpsertFriendship).Methods("POST")

	// Health
	healthHandler := api.NewHealthHandler()
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	return root
}

// startHealthCheckers starts component checkers and the service-level aggregator.
func startHealthCheckers(ctx context.Context, log zerolog.Logger, st store.Store) *health.ServiceHealthChecker {
	storeChecker := store.NewStoreHealthChecker(st, log, healthProbeTimeout)
	go storeChecker.Start(ctx, healthInterval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, healthInterval)
	api.BindServiceHealth(svcHealth.IsHealthy)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, svcHealth *health.ServiceHealthChecker) error {
	deadline := time.Now().Add(60 * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within 60 seconds")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
