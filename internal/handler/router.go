package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/astroflora/driver-ai-router/internal/domain"
	"github.com/astroflora/driver-ai-router/internal/infra/health"
	"github.com/astroflora/driver-ai-router/internal/infra/observability"
	"github.com/astroflora/driver-ai-router/internal/service"
)

var tracer = otel.Tracer("handler")

const maxBodyBytes = 1 << 20

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *service.Router, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", chatHandler(svc, logger))
		r.Post("/classify", classifyHandler(svc, logger))
		r.Get("/backends/health", backendsHealthHandler(svc))
		r.Get("/metrics/router", routerMetricsHandler(svc))
	})

	return r
}

// ============================================================
// Chat: POST /v1/chat
// ============================================================

// chatHandler always answers 200 with a ChatResult; backend failures surface
// as source=fallback, never as an HTTP error.
func chatHandler(svc *service.Router, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat")
		defer span.End()

		var req domain.ChatRequest
		if err := decodeBody(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if req.UserID != "" {
			span.SetAttributes(attribute.String("user.id", req.UserID))
		}

		result := svc.SendMessage(ctx, req.Message, req.History, req.UserID)
		writeJSON(w, http.StatusOK, result)
	}
}

// ============================================================
// Classify: POST /v1/classify
// ============================================================

func classifyHandler(svc *service.Router, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/classify")
		defer span.End()

		var req domain.ClassifyRequest
		if err := decodeBody(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if isBlank(req.Message) {
			handleServiceError(w, &domain.ErrValidation{Field: "message", Message: "message is required"}, logger)
			return
		}

		writeJSON(w, http.StatusOK, svc.Classify(ctx, req.Message))
	}
}

// ============================================================
// Backends & metrics
// ============================================================

func backendsHealthHandler(svc *service.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := svc.BackendsHealth(r.Context())

		status := http.StatusOK
		if result.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, result)
	}
}

func routerMetricsHandler(svc *service.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Metrics())
	}
}

// ============================================================
// Operational
// ============================================================

// healthzHandler reports liveness of the router process only. It answers
// even when every backend is down, since fallback answers still work.
func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.BackendsHealth{
			Status: health.StatusHealthy,
			Services: []domain.ServiceHealth{{
				Name:        "driver-ai-router",
				Status:      health.StatusHealthy,
				LastChecked: time.Now().UTC().Format(time.RFC3339),
			}},
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "invalid request body"}
	}
	return nil
}
