// Package fallback synthesizes a local answer when no backend responds.
package fallback

import (
	"fmt"

	"github.com/astroflora/driver-ai-router/internal/classifier"
	"github.com/astroflora/driver-ai-router/internal/domain"
)

// Synthesizer builds deterministic answers from templates. It never fails
// and never touches the network.
type Synthesizer struct{}

// New creates a Synthesizer.
func New() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize returns the fallback answer for text given its classification.
func (s *Synthesizer) Synthesize(text string, cls domain.Classification) domain.ChatResult {
	tpl := pick(text, cls)

	recs := make([]string, len(tpl.Recommendations))
	copy(recs, tpl.Recommendations)

	return domain.ChatResult{
		Content:         tpl.Content,
		Source:          domain.SourceFallback,
		Confidence:      0,
		Recommendations: recs,
		Classification:  cls,
	}
}

func pick(text string, cls domain.Classification) template {
	switch cls.Kind {
	case domain.KindProteinSequence:
		tpl := sequenceTemplate
		tpl.Content = fmt.Sprintf(tpl.Content, len(classifier.ExtractSequence(text)))
		return tpl
	case domain.KindProtocolHelp:
		return protocolTemplate
	case domain.KindSystemStatus:
		return statusTemplate
	case domain.KindExperimentGuidance:
		if tpl, ok := experimentTemplates[cls.Domain]; ok {
			return withNote(tpl)
		}
		return genericTemplate
	default:
		if tpl, ok := generalTemplates[cls.Domain]; ok {
			return tpl
		}
		return genericTemplate
	}
}

// withNote marks guidance answers as local so they are not taken as analysis.
func withNote(tpl template) template {
	tpl.Content += offlineNote
	return tpl
}
