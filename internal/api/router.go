package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/topiclab/mastery/internal/api/handlers"
	mw "github.com/topiclab/mastery/internal/api/middleware"
	"github.com/topiclab/mastery/internal/buildconfig"
	"github.com/topiclab/mastery/internal/config"
	"github.com/topiclab/mastery/internal/domain"
	"github.com/topiclab/mastery/internal/service"
	"github.com/topiclab/mastery/internal/store"
	"go.uber.org/zap"
)

// App holds the router and wired services.
type App struct {
	Router       *chi.Mux
	Ingest       *service.IngestService
	Curriculum   *service.CurriculumService
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// NewApp wires stores, services, and handlers into a router. The archive
// is optional; pass nil for file-only operation.
func NewApp(topics domain.TopicStore, archive domain.ArchiveStore, logger *zap.Logger) *App {
	ingestSvc := service.NewIngestService(topics, logger)
	ingestSvc.SetLockTimeout(config.LockTimeout())
	ingestSvc.SetPairingCap(config.PairingCap())

	curriculumSvc := service.NewCurriculumService(topics, logger)

	if archive != nil {
		ingestSvc.SetArchiveStore(archive)
		curriculumSvc.SetArchiveStore(archive)
	}

	topicHandler := handlers.NewTopicHandler(ingestSvc)
	curriculumHandler := handlers.NewCurriculumHandler(curriculumSvc)

	r := chi.NewRouter()

	app := &App{
		Router:     r,
		Ingest:     ingestSvc,
		Curriculum: curriculumSvc,
		startTime:  time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health and metrics (no auth)
	r.Get("/health", healthHandler())
	r.Get("/metrics", app.metricsHandler())

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.BearerAuth(config.APIToken()))

		r.Route("/topics/{topicID}", func(r chi.Router) {
			r.Post("/ingest", topicHandler.Ingest)
			r.Get("/", topicHandler.GetByID)
		})

		r.Route("/curriculum", func(r chi.Router) {
			r.Get("/progress", curriculumHandler.Progress)
			r.Get("/stages/{stage}/gaps", curriculumHandler.GapsForStage)
			r.Get("/stale", curriculumHandler.Stale)
		})
	})

	return app
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": buildconfig.Version(),
			"commit":  buildconfig.Commit(),
		})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy the domain interfaces at compile time.
var (
	_ domain.TopicStore   = (*store.FileStore)(nil)
	_ domain.ArchiveStore = (*store.PostgresArchive)(nil)
)
