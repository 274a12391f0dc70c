// Package routing turns a classification into ordered candidate endpoints
// and the request body to send them.
package routing

import (
	"net/http"
	"strings"

	"github.com/astroflora/driver-ai-router/internal/classifier"
	"github.com/astroflora/driver-ai-router/internal/domain"
)

// Driver AI paths, relative to each backend base URL.
const (
	PathHealth  = "/api/health"
	PathChat    = "/api/chat"
	PathAnalyze = "/api/analyze"
	PathQuery   = "/api/query"

	// AnalysisBLAST is the analysis type requested for raw sequences.
	AnalysisBLAST = "blast"
)

// Config holds the static routing configuration.
type Config struct {
	// BackendURLs are base URLs in priority order.
	BackendURLs []string
	// MaxCandidates caps how many endpoints one message may try.
	MaxCandidates int
	// LegacyQuery appends /api/query candidates after the chat candidates.
	LegacyQuery bool
	// HistoryWindow is how many trailing history turns are forwarded.
	HistoryWindow int
}

// Shaper maps classifications to endpoints. It holds no mutable state.
type Shaper struct {
	cfg Config
}

// NewShaper creates a Shaper. Trailing slashes on base URLs are dropped.
func NewShaper(cfg Config) *Shaper {
	bases := make([]string, 0, len(cfg.BackendURLs))
	for _, u := range cfg.BackendURLs {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			bases = append(bases, u)
		}
	}
	cfg.BackendURLs = bases
	return &Shaper{cfg: cfg}
}

// Shape returns the candidates to try, in priority order, and the body to
// send. Empty text is rejected so an empty body never leaves the router.
func (s *Shaper) Shape(cls domain.Classification, text, sessionID string, history []domain.Message) ([]domain.Endpoint, domain.RequestBody, error) {
	message := strings.TrimSpace(text)
	if message == "" {
		return nil, domain.RequestBody{}, &domain.ErrValidation{Field: "message", Message: "message is empty"}
	}
	if len(s.cfg.BackendURLs) == 0 {
		return nil, domain.RequestBody{}, &domain.ErrValidation{Field: "backends", Message: "no backend configured"}
	}

	if cls.Kind == domain.KindProteinSequence {
		body := domain.RequestBody{
			Sequence:     classifier.ExtractSequence(text),
			AnalysisType: AnalysisBLAST,
			SessionID:    sessionID,
		}
		return s.limit(s.endpoints(PathAnalyze, domain.ShapeSequence)), body, nil
	}

	// Every other kind, known or not, takes the conversational shape.
	body := domain.RequestBody{
		Message:   message,
		SessionID: sessionID,
		History:   s.window(history),
	}
	candidates := s.endpoints(PathChat, domain.ShapeMessage)
	if s.cfg.LegacyQuery {
		candidates = append(candidates, s.endpoints(PathQuery, domain.ShapeQuery)...)
	}
	return s.limit(candidates), body, nil
}

// HealthEndpoints returns one health probe endpoint per backend.
func (s *Shaper) HealthEndpoints() []domain.Endpoint {
	out := make([]domain.Endpoint, 0, len(s.cfg.BackendURLs))
	for _, base := range s.cfg.BackendURLs {
		out = append(out, domain.Endpoint{URL: base + PathHealth, Method: http.MethodGet})
	}
	return out
}

func (s *Shaper) endpoints(path string, shape domain.BodyShape) []domain.Endpoint {
	out := make([]domain.Endpoint, 0, len(s.cfg.BackendURLs))
	for _, base := range s.cfg.BackendURLs {
		out = append(out, domain.Endpoint{URL: base + path, Method: http.MethodPost, BodyShape: shape})
	}
	return out
}

func (s *Shaper) limit(candidates []domain.Endpoint) []domain.Endpoint {
	if s.cfg.MaxCandidates > 0 && len(candidates) > s.cfg.MaxCandidates {
		return candidates[:s.cfg.MaxCandidates]
	}
	return candidates
}

// window copies the trailing turns so the caller's slice is never shared.
func (s *Shaper) window(history []domain.Message) []domain.Message {
	if len(history) == 0 || s.cfg.HistoryWindow <= 0 {
		return nil
	}
	start := len(history) - s.cfg.HistoryWindow
	if start < 0 {
		start = 0
	}
	out := make([]domain.Message, len(history)-start)
	copy(out, history[start:])
	return out
}
