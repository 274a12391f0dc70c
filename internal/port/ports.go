// Package port defines the interfaces (ports) between the router pipeline
// stages. The orchestrator depends only on these; concrete implementations
// live in classifier, routing, normalize, fallback and infra.
package port

import (
	"context"

	"github.com/astroflora/driver-ai-router/internal/domain"
)

// Classifier determines the intent of a message.
type Classifier interface {
	Classify(text string) domain.Classification
}

// Shaper turns a classification into ordered candidate endpoints and a body.
type Shaper interface {
	Shape(cls domain.Classification, text, sessionID string, history []domain.Message) ([]domain.Endpoint, domain.RequestBody, error)
}

// Dispatcher sends the body to the first candidate that answers.
type Dispatcher interface {
	Dispatch(ctx context.Context, candidates []domain.Endpoint, body domain.RequestBody) (*domain.RawResponse, error)
}

// Normalizer maps a raw backend answer to the canonical result.
type Normalizer interface {
	Normalize(raw *domain.RawResponse, cls domain.Classification) domain.ChatResult
}

// Synthesizer produces a local answer when no backend responded.
type Synthesizer interface {
	Synthesize(text string, cls domain.Classification) domain.ChatResult
}

// HealthProber checks every backend and reports overall status.
type HealthProber interface {
	Probe(ctx context.Context) domain.BackendsHealth
}
