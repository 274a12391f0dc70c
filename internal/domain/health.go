package domain

import "time"

// HealthStatus is the cached reachability of one backend endpoint.
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checkedAt"`
}

// ============================================================
// Health & Metrics API Responses
// ============================================================

// BackendsHealth is returned by GET /healthz and GET /v1/backends/health.
type BackendsHealth struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual backend.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// RouterMetrics is returned by GET /v1/metrics/router.
type RouterMetrics struct {
	TotalMessages   int64            `json:"totalMessages"`
	BackendAnswers  int64            `json:"backendAnswers"`
	FallbackAnswers int64            `json:"fallbackAnswers"`
	FallbackRate    float64          `json:"fallbackRate"`
	AttemptOutcomes map[string]int64 `json:"attemptOutcomes"`
	HealthCacheHits int64            `json:"healthCacheHits"`
	HealthSkipRate  float64          `json:"healthSkipRate"`
	Period          string           `json:"period"`
}
