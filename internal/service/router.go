// Package service holds the router orchestrator: the single entry point
// that turns a user message into a ChatResult.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/astroflora/driver-ai-router/internal/domain"
	"github.com/astroflora/driver-ai-router/internal/infra/observability"
	"github.com/astroflora/driver-ai-router/internal/port"
)

var tracer = otel.Tracer("service/router")

// Router orchestrates Classify → Shape → Dispatch → Normalize, falling back
// to a synthesized answer whenever the backend path yields nothing usable.
type Router struct {
	classifier  port.Classifier
	shaper      port.Shaper
	dispatcher  port.Dispatcher
	normalizer  port.Normalizer
	synthesizer port.Synthesizer
	prober      port.HealthProber
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewRouter creates the orchestrator with all dependencies injected.
func NewRouter(
	classifier port.Classifier,
	shaper port.Shaper,
	dispatcher port.Dispatcher,
	normalizer port.Normalizer,
	synthesizer port.Synthesizer,
	prober port.HealthProber,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Router {
	return &Router{
		classifier:  classifier,
		shaper:      shaper,
		dispatcher:  dispatcher,
		normalizer:  normalizer,
		synthesizer: synthesizer,
		prober:      prober,
		metrics:     metrics,
		logger:      logger,
	}
}

// SendMessage answers text. It never fails: every error, including a panic
// in a lower stage, becomes a fallback result. history is read, never modified.
func (r *Router) SendMessage(ctx context.Context, text string, history []domain.Message, userID string) (result domain.ChatResult) {
	ctx, span := tracer.Start(ctx, "Router.SendMessage")
	defer span.End()

	start := time.Now()
	var cls domain.Classification

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("router pipeline panicked",
				zap.Any("panic", rec),
				zap.String("kind", cls.Kind.String()),
			)
			result = r.fallback(text, cls, fmt.Errorf("panic: %v", rec))
		}

		result.Classification = cls
		result.ProcessingTimeMs = time.Since(start).Milliseconds()

		r.metrics.IncrMessage(result.Source)
		r.metrics.RecordRequestDuration("send_message", time.Since(start))
		span.SetAttributes(
			attribute.String("result.source", string(result.Source)),
			attribute.Int64("result.processing_ms", result.ProcessingTimeMs),
		)
	}()

	cls = r.classifier.Classify(text)
	r.metrics.IncrClassification(cls.Kind)
	span.SetAttributes(
		attribute.String("classification.kind", cls.Kind.String()),
		attribute.String("classification.domain", cls.Domain),
		attribute.Float64("classification.confidence", cls.Confidence),
		attribute.Bool("classification.ambiguous", cls.Ambiguous()),
	)

	sessionID := userID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	candidates, body, err := r.shaper.Shape(cls, text, sessionID, history)
	if err != nil {
		return r.fallback(text, cls, fmt.Errorf("shape: %w", err))
	}

	raw, err := r.dispatcher.Dispatch(ctx, candidates, body)
	if err != nil {
		return r.fallback(text, cls, fmt.Errorf("dispatch: %w", err))
	}

	result = r.normalizer.Normalize(raw, cls)
	if result.Content == "" {
		return r.fallback(text, cls, &domain.ErrMalformedBody{
			Endpoint: raw.Endpoint.URL,
			Err:      errors.New("no content in response"),
		})
	}

	r.logger.Info("message answered by backend",
		zap.String("kind", cls.Kind.String()),
		zap.String("endpoint", raw.Endpoint.URL),
		zap.Int("attempts", len(raw.Attempts)),
	)
	return result
}

// Classify exposes the classifier alone, for the /v1/classify route.
func (r *Router) Classify(ctx context.Context, text string) domain.Classification {
	_, span := tracer.Start(ctx, "Router.Classify")
	defer span.End()

	return r.classifier.Classify(text)
}

// BackendsHealth probes every backend and refreshes the health cache.
func (r *Router) BackendsHealth(ctx context.Context) domain.BackendsHealth {
	ctx, span := tracer.Start(ctx, "Router.BackendsHealth")
	defer span.End()

	start := time.Now()
	defer func() {
		r.metrics.RecordRequestDuration("probe", time.Since(start))
	}()

	return r.prober.Probe(ctx)
}

// Metrics returns the router counters.
func (r *Router) Metrics() *domain.RouterMetrics {
	return r.metrics.Snapshot()
}

func (r *Router) fallback(text string, cls domain.Classification, cause error) domain.ChatResult {
	fields := []zap.Field{
		zap.String("kind", cls.Kind.String()),
		zap.String("domain", cls.Domain),
		zap.Error(cause),
	}

	var exhausted *domain.ErrDispatchExhausted
	var validation *domain.ErrValidation
	switch {
	case errors.As(cause, &exhausted):
		fields = append(fields,
			zap.Int("attempts", len(exhausted.Attempts)),
			zap.Int("skipped", len(exhausted.Skipped)),
		)
		r.logger.Warn("no backend answered, using fallback", fields...)
	case errors.As(cause, &validation):
		r.logger.Debug("message not dispatchable, using fallback", fields...)
	default:
		r.logger.Warn("backend path failed, using fallback", fields...)
	}

	return r.synthesize(text, cls)
}

// lastResort is returned only if the synthesizer itself panics.
const lastResort = "El servicio no está disponible en este momento. Inténtalo de nuevo en unos minutos."

func (r *Router) synthesize(text string, cls domain.Classification) (res domain.ChatResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("fallback synthesizer panicked", zap.Any("panic", rec))
			res = domain.ChatResult{
				Content:         lastResort,
				Source:          domain.SourceFallback,
				Recommendations: []string{},
			}
		}
	}()
	return r.synthesizer.Synthesize(text, cls)
}
