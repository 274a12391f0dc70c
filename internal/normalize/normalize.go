// Package normalize turns heterogeneous backend answers into a ChatResult.
package normalize

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/astroflora/driver-ai-router/internal/domain"
)

// PayloadKind tags which response shape a backend body was decoded as.
type PayloadKind int

const (
	// PayloadUnknown is any body with no recognized content field.
	PayloadUnknown PayloadKind = iota
	// PayloadAnalysis is an answer to a sequence analysis request.
	PayloadAnalysis
	// PayloadConversational is an answer to a chat request.
	PayloadConversational
	// PayloadLegacy is the {"data": {...}} envelope of older backends.
	PayloadLegacy
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadAnalysis:
		return "analysis"
	case PayloadConversational:
		return "conversational"
	case PayloadLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Default confidences when the backend does not report one.
const (
	DefaultAnalysisConfidence       = 0.94
	DefaultConversationalConfidence = 0.85
)

// contentKeys are tried in order; the first non-blank string wins.
var contentKeys = []string{"response", "message", "text", "content"}

// analysisMarkers identify analysis payloads regardless of endpoint.
var analysisMarkers = []string{"analysis_type", "alignments", "hits", "results"}

// Payload is a decoded backend body.
type Payload struct {
	Kind            PayloadKind
	Content         string
	Confidence      *float64
	Recommendations []string
}

// Decode classifies and extracts a backend body. The shape of the endpoint
// that produced it decides between analysis and conversational payloads when
// the body itself does not say.
func Decode(body []byte, shape domain.BodyShape) Payload {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return Payload{Kind: PayloadUnknown, Content: stringify(body)}
	}

	if content, ok := firstString(obj, contentKeys); ok {
		kind := PayloadConversational
		if shape == domain.ShapeSequence || hasAny(obj, analysisMarkers) {
			kind = PayloadAnalysis
		}
		return Payload{
			Kind:            kind,
			Content:         content,
			Confidence:      confidence(obj),
			Recommendations: recommendations(obj),
		}
	}

	if data, ok := obj["data"].(map[string]any); ok {
		if content, ok := firstString(data, contentKeys); ok {
			p := Payload{
				Kind:            PayloadLegacy,
				Content:         content,
				Confidence:      confidence(data),
				Recommendations: recommendations(data),
			}
			if p.Confidence == nil {
				p.Confidence = confidence(obj)
			}
			if len(p.Recommendations) == 0 {
				p.Recommendations = recommendations(obj)
			}
			return p
		}
	}

	return Payload{
		Kind:            PayloadUnknown,
		Content:         stringify(body),
		Confidence:      confidence(obj),
		Recommendations: recommendations(obj),
	}
}

// Normalizer maps raw backend responses to ChatResults. It holds no state.
type Normalizer struct{}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize builds the canonical result for a raw backend answer. It never
// fails; an empty Content tells the caller nothing usable came back.
func (n *Normalizer) Normalize(raw *domain.RawResponse, cls domain.Classification) domain.ChatResult {
	p := Decode(raw.Body, raw.Endpoint.BodyShape)

	conf := DefaultConversationalConfidence
	if p.Kind == PayloadAnalysis {
		conf = DefaultAnalysisConfidence
	}
	if p.Confidence != nil {
		conf = *p.Confidence
	}

	recs := p.Recommendations
	if recs == nil {
		recs = []string{}
	}

	return domain.ChatResult{
		Content:         strings.TrimSpace(p.Content),
		Source:          domain.SourceBackend,
		Confidence:      conf,
		Recommendations: recs,
		Classification:  cls,
		Endpoint:        raw.Endpoint.URL,
	}
}

func firstString(obj map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

func hasAny(obj map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// confidence returns a numeric "confidence" within [0,1], if present.
func confidence(obj map[string]any) *float64 {
	v, ok := obj["confidence"].(float64)
	if !ok || v < 0 || v > 1 {
		return nil
	}
	return &v
}

func recommendations(obj map[string]any) []string {
	for _, k := range []string{"recommendations", "suggestions"} {
		list, ok := obj[k].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// stringify renders the whole body as content: JSON string literals are
// unquoted, other JSON is compacted, anything else is used verbatim.
func stringify(body []byte) string {
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err == nil {
		if buf.String() == "null" || buf.String() == "{}" {
			return ""
		}
		return buf.String()
	}
	return string(body)
}
