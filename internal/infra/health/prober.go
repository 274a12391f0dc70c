package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/astroflora/driver-ai-router/internal/domain"
	"github.com/astroflora/driver-ai-router/internal/infra/observability"
	"github.com/astroflora/driver-ai-router/internal/infra/resilience"
)

var tracer = otel.Tracer("driver-ai-router/health")

// Overall statuses reported by Probe.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Prober checks GET /api/health on every backend concurrently.
type Prober struct {
	client    *http.Client
	endpoints []domain.Endpoint
	cache     *Cache
	bulkhead  *resilience.Bulkhead
	retryCfg  resilience.Config
	timeout   time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewProber creates a prober for the given health endpoints.
// retryCfg.MaxConcurrency bounds how many backends are probed at once.
func NewProber(
	client *http.Client,
	endpoints []domain.Endpoint,
	cache *Cache,
	retryCfg resilience.Config,
	timeout time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Prober {
	return &Prober{
		client:    client,
		endpoints: endpoints,
		cache:     cache,
		bulkhead:  resilience.NewBulkhead(retryCfg.MaxConcurrency),
		retryCfg:  retryCfg,
		timeout:   timeout,
		metrics:   metrics,
		logger:    logger,
	}
}

// Probe checks every backend and refreshes the health cache.
// It never returns an error: failures are reported per service.
func (p *Prober) Probe(ctx context.Context) domain.BackendsHealth {
	ctx, span := tracer.Start(ctx, "Prober.Probe")
	defer span.End()

	services := make([]domain.ServiceHealth, len(p.endpoints))

	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range p.endpoints {
		i, ep := i, ep
		g.Go(func() error {
			if err := p.bulkhead.Acquire(gctx); err != nil {
				services[i] = p.result(ep, 0, err)
				return nil
			}
			defer p.bulkhead.Release()

			start := time.Now()
			err := resilience.RetryWithBackoff(gctx, p.retryCfg, func() error {
				return p.check(gctx, ep)
			})
			services[i] = p.result(ep, time.Since(start), err)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(services, func(a, b int) bool { return services[a].Name < services[b].Name })

	status := Overall(services)
	span.SetAttributes(attribute.String("health.status", status))

	return domain.BackendsHealth{Status: status, Services: services}
}

// check performs one GET against the health endpoint. Only 2xx counts.
func (p *Prober) check(ctx context.Context, ep domain.Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &domain.ErrTimeout{Operation: "health " + ep.URL}
		}
		return &domain.ErrNetwork{Endpoint: ep.URL, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.ErrBadStatus{Endpoint: ep.URL, Code: resp.StatusCode}
	}
	return nil
}

func (p *Prober) result(ep domain.Endpoint, latency time.Duration, err error) domain.ServiceHealth {
	healthy := err == nil
	p.cache.Record(ep, healthy)

	sh := domain.ServiceHealth{
		Name:        ep.Origin(),
		Status:      StatusHealthy,
		LatencyMs:   latency.Milliseconds(),
		LastChecked: time.Now().UTC().Format(time.RFC3339),
	}
	if !healthy {
		sh.Status = StatusUnhealthy
		sh.Error = err.Error()
		p.logger.Warn("backend health probe failed",
			zap.String("origin", ep.Origin()),
			zap.Error(err),
		)
	}
	p.metrics.IncrProbe(sh.Status)
	return sh
}

// Overall folds per-service results: all up is healthy, all down (or none
// configured) is unhealthy, anything in between is degraded.
func Overall(services []domain.ServiceHealth) string {
	up := 0
	for _, s := range services {
		if s.Status == StatusHealthy {
			up++
		}
	}
	switch {
	case len(services) > 0 && up == len(services):
		return StatusHealthy
	case up == 0:
		return StatusUnhealthy
	default:
		return StatusDegraded
	}
}
