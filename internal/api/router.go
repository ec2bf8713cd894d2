package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/notifyhub/mailqueue/internal/api/handler"
	apimw "github.com/notifyhub/mailqueue/internal/api/middleware"
	"github.com/notifyhub/mailqueue/internal/notify"
	"github.com/notifyhub/mailqueue/internal/queue"
)

// Deps collects what the admin API needs from main.
type Deps struct {
	Queue    *queue.Manager
	Notifier *notify.Notifier // optional; event routes are skipped when nil
	DB       handler.Pinger   // optional
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger

	BatchSize      int
	RetentionDays  int
	AllowedOrigins []string
	OnBatch        func(time.Duration)
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)            // recover panics, return 500
	r.Use(chimw.RealIP)               // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(4 << 20)) // rendered bodies can be large
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(d.Logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", apimw.CorrelationHeader},
		ExposedHeaders: []string{apimw.CorrelationHeader},
	}).Handler)

	// --- handler instances ---
	mh := handler.NewMessageHandler(d.Queue, d.Logger)
	qh := handler.NewQueueHandler(d.Queue, d.BatchSize, d.RetentionDays, d.Logger, d.OnBatch)
	hh := handler.NewHealthHandler(d.DB)

	// --- routes ---
	r.Get("/health", hh.Health)

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages", mh.Create)
		r.Get("/messages", mh.List)
		r.Get("/messages/{id}", mh.GetByID)
		r.Post("/messages/{id}/sent", mh.MarkSent)
		r.Post("/messages/{id}/failed", mh.MarkFailed)

		r.Get("/queue/stats", qh.Stats)
		r.Get("/queue/pending", qh.Pending)
		r.Post("/queue/process", qh.Process)
		r.Post("/queue/retry-failed", qh.RetryFailed)
		r.Post("/queue/purge", qh.Purge)

		if d.Notifier != nil {
			eh := handler.NewEventHandler(d.Notifier, d.Logger)
			r.Post("/events/enrollments", eh.Enrolled)
			r.Post("/events/progress", eh.Progress)
			r.Post("/events/completions", eh.Completed)
		}
	})

	return r
}
