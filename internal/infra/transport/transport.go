// Package transport sends a shaped request to the first candidate backend
// that answers, recording every attempt.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/astroflora/driver-ai-router/internal/domain"
	"github.com/astroflora/driver-ai-router/internal/infra/health"
	"github.com/astroflora/driver-ai-router/internal/infra/observability"
	"github.com/astroflora/driver-ai-router/internal/infra/resilience"
)

var tracer = otel.Tracer("driver-ai-router/transport")

// errBodyTooLarge marks a 2xx answer whose body exceeded maxBodyBytes.
var errBodyTooLarge = fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)

const (
	maxBodyBytes      = 4 << 20
	maxErrorBodyBytes = 2 << 10
)

// Timeouts are the per-attempt deadlines by endpoint class.
type Timeouts struct {
	Chat    time.Duration
	Analyze time.Duration
	Health  time.Duration
}

// For returns the deadline for a single attempt against ep.
func (t Timeouts) For(ep domain.Endpoint) time.Duration {
	switch {
	case !ep.HasBody():
		return t.Health
	case ep.BodyShape == domain.ShapeSequence:
		return t.Analyze
	default:
		return t.Chat
	}
}

// Transport walks candidate endpoints in priority order.
type Transport struct {
	httpClient *http.Client
	health     *health.Cache
	timeouts   Timeouts
	metrics    *observability.Metrics
	logger     *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New creates a Transport. The health cache is shared with the prober;
// breakers stay open for at most the cache TTL.
func New(
	httpClient *http.Client,
	healthCache *health.Cache,
	timeouts Timeouts,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Transport {
	return &Transport{
		httpClient: httpClient,
		health:     healthCache,
		timeouts:   timeouts,
		metrics:    metrics,
		logger:     logger,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Dispatch tries each candidate once, in order, and returns the first 2xx
// answer. Candidates known unhealthy, or whose breaker is open, are skipped
// without a network call. When nothing answers it returns
// *domain.ErrDispatchExhausted.
func (t *Transport) Dispatch(ctx context.Context, candidates []domain.Endpoint, body domain.RequestBody) (*domain.RawResponse, error) {
	ctx, span := tracer.Start(ctx, "Transport.Dispatch")
	defer span.End()
	span.SetAttributes(attribute.Int("dispatch.candidates", len(candidates)))

	var (
		attempts []domain.DispatchAttempt
		skipped  []string
	)

	for _, ep := range candidates {
		if ctx.Err() != nil {
			break
		}

		if t.health.KnownUnhealthy(ep) {
			t.metrics.IncrHealthSkip()
			skipped = append(skipped, ep.URL)
			t.logger.Debug("skipping unhealthy backend", zap.String("url", ep.URL))
			continue
		}
		t.metrics.IncrHealthPass()

		var (
			attempt domain.DispatchAttempt
			payload []byte
		)
		_, err := t.breaker(ep).Execute(func() (any, error) {
			attempt, payload = t.attempt(ctx, ep, body)
			// A cancelled caller says nothing about the backend.
			if !attempt.Healthy() && ctx.Err() == nil {
				return nil, attempt.Err
			}
			return nil, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			skipped = append(skipped, ep.URL)
			t.logger.Debug("skipping backend with open circuit", zap.String("url", ep.URL))
			continue
		}

		attempts = append(attempts, attempt)
		t.metrics.RecordAttempt(attempt)

		if ctx.Err() == nil {
			t.health.Record(ep, attempt.Healthy())
		}

		switch {
		case errors.Is(attempt.Err, errBodyTooLarge):
			t.logger.Warn("backend response too large",
				zap.String("url", ep.URL),
				zap.Int("limit_bytes", maxBodyBytes),
			)
			continue
		case attempt.Outcome == domain.OutcomeSuccess, attempt.Outcome == domain.OutcomeMalformedBody:
			span.SetAttributes(
				attribute.String("dispatch.endpoint", ep.URL),
				attribute.Int("dispatch.attempts", len(attempts)),
			)
			return &domain.RawResponse{
				Endpoint:   ep,
				StatusCode: attempt.StatusCode,
				Body:       payload,
				Attempts:   attempts,
			}, nil
		}

		t.logger.Warn("backend attempt failed",
			zap.String("url", ep.URL),
			zap.String("outcome", attempt.Outcome.String()),
			zap.Int("status", attempt.StatusCode),
			zap.Int64("duration_ms", attempt.DurationMs),
			zap.Error(attempt.Err),
		)
	}

	err := &domain.ErrDispatchExhausted{Attempts: attempts, Skipped: skipped}
	span.RecordError(err)
	span.SetStatus(codes.Error, "dispatch exhausted")
	return nil, err
}

// attempt performs exactly one HTTP call against ep.
func (t *Transport) attempt(ctx context.Context, ep domain.Endpoint, body domain.RequestBody) (domain.DispatchAttempt, []byte) {
	ctx, span := tracer.Start(ctx, "Transport.attempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("endpoint.url", ep.URL),
		attribute.String("endpoint.shape", ep.BodyShape.String()),
	)

	a := domain.DispatchAttempt{Endpoint: ep, StartedAt: time.Now()}
	defer func() {
		span.SetAttributes(attribute.String("attempt.outcome", a.Outcome.String()))
		if a.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.status_code", a.StatusCode))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, t.timeouts.For(ep))
	defer cancel()

	var reqBody io.Reader
	if ep.HasBody() {
		b, err := json.Marshal(body.Payload(ep.BodyShape))
		if err != nil {
			a.Outcome = domain.OutcomeNetworkError
			a.Err = &domain.ErrNetwork{Endpoint: ep.URL, Err: fmt.Errorf("encoding body: %w", err)}
			return finish(a), nil
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, ep.URL, reqBody)
	if err != nil {
		a.Outcome = domain.OutcomeNetworkError
		a.Err = &domain.ErrNetwork{Endpoint: ep.URL, Err: err}
		return finish(a), nil
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		a = failure(a, ep, err)
		return finish(a), nil
	}
	defer resp.Body.Close()
	a.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		a.Outcome = domain.OutcomeBadStatus
		a.Err = &domain.ErrBadStatus{
			Endpoint: ep.URL,
			Code:     resp.StatusCode,
			Body:     strings.TrimSpace(string(snippet)),
		}
		return finish(a), nil
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		a = failure(a, ep, err)
		return finish(a), nil
	}
	if len(payload) > maxBodyBytes {
		a.Outcome = domain.OutcomeMalformedBody
		a.Err = &domain.ErrMalformedBody{Endpoint: ep.URL, Err: errBodyTooLarge}
		return finish(a), nil
	}

	if !json.Valid(payload) {
		a.Outcome = domain.OutcomeMalformedBody
		a.Err = &domain.ErrMalformedBody{Endpoint: ep.URL, Err: errors.New("response is not JSON")}
		return finish(a), payload
	}

	a.Outcome = domain.OutcomeSuccess
	return finish(a), payload
}

// failure classifies a transport-level error as timeout or network error.
func failure(a domain.DispatchAttempt, ep domain.Endpoint, err error) domain.DispatchAttempt {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		a.Outcome = domain.OutcomeTimeout
		a.Err = &domain.ErrTimeout{Operation: ep.Method + " " + ep.URL}
		return a
	}
	a.Outcome = domain.OutcomeNetworkError
	a.Err = &domain.ErrNetwork{Endpoint: ep.URL, Err: err}
	return a
}

func finish(a domain.DispatchAttempt) domain.DispatchAttempt {
	a.DurationMs = time.Since(a.StartedAt).Milliseconds()
	return a
}

// breaker returns the circuit breaker for ep, creating it on first use.
func (t *Transport) breaker(ep domain.Endpoint) *gobreaker.CircuitBreaker {
	t.mu.Lock()
	defer t.mu.Unlock()

	cb, ok := t.breakers[ep.URL]
	if !ok {
		cb = resilience.NewCircuitBreaker(resilience.BreakerConfig{
			Name:        ep.URL,
			OpenTimeout: t.health.TTL(),
			OnStateChange: func(name string, from, to gobreaker.State) {
				t.logger.Info("circuit breaker state changed",
					zap.String("endpoint", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
		t.breakers[ep.URL] = cb
	}
	return cb
}
