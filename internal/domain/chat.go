package domain

// Source tells the caller who produced a ChatResult.
type Source string

const (
	SourceBackend  Source = "backend"
	SourceFallback Source = "fallback"
)

// Message is one turn of conversation history. History is owned by the
// caller; the router only reads it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResult is the canonical output returned for every message, whichever
// backend answered (or none).
type ChatResult struct {
	Content          string         `json:"content"`
	Source           Source         `json:"source"`
	Confidence       float64        `json:"confidence"`
	Recommendations  []string       `json:"recommendations"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
	Classification   Classification `json:"classification"`
	Endpoint         string         `json:"endpoint,omitempty"`
}

// Degraded reports whether the result was synthesized locally.
func (r ChatResult) Degraded() bool {
	return r.Source == SourceFallback
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message string    `json:"message"`
	History []Message `json:"history,omitempty"`
	UserID  string    `json:"userId,omitempty"`
}

// ClassifyRequest is the body of POST /v1/classify.
type ClassifyRequest struct {
	Message string `json:"message"`
}
