package fallback

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/astroflora/driver-ai-router/internal/classifier"
	"github.com/astroflora/driver-ai-router/internal/domain"
)

func TestSynthesize_Templates(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		cls      domain.Classification
		contains string
	}{
		{"greeting", "hola", domain.Classification{Kind: domain.KindGeneralChat, Domain: "greeting"}, "Hola"},
		{"gratitude", "gracias", domain.Classification{Kind: domain.KindGeneralChat, Domain: "gratitude"}, "De nada"},
		{"help", "ayuda", domain.Classification{Kind: domain.KindGeneralChat, Domain: "help"}, "Puedo ayudarte con"},
		{"status", "estado del sistema", domain.Classification{Kind: domain.KindSystemStatus, Domain: "system"}, "no responde"},
		{"protocol", "protocolo de PCR", domain.Classification{Kind: domain.KindProtocolHelp, Domain: "protocols"}, "protocolo"},
		{"drug design", "docking de ligandos", domain.Classification{Kind: domain.KindExperimentGuidance, Domain: "drug_design"}, "ADMET"},
		{"astrobiology", "extremófilos en marte", domain.Classification{Kind: domain.KindExperimentGuidance, Domain: "astrobiology"}, "extremófilos"},
		{"unknown guidance domain", "algo", domain.Classification{Kind: domain.KindExperimentGuidance, Domain: "oceanography"}, "motor de análisis"},
		{"general", "qué tal el tiempo", domain.Classification{Kind: domain.KindGeneralChat, Domain: "general"}, "motor de análisis"},
	}

	s := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Synthesize(tt.text, tt.cls)

			require.Contains(t, got.Content, tt.contains)
			require.Equal(t, domain.SourceFallback, got.Source)
			require.Zero(t, got.Confidence)
			require.NotNil(t, got.Recommendations)
			require.Equal(t, tt.cls, got.Classification)
			require.Empty(t, got.Endpoint)
		})
	}
}

func TestSynthesize_SequenceMentionsLength(t *testing.T) {
	seq := "MKTAYIAKQRQISFVKSHFSRQLEERLGLIEVQAPILSRVGDGTQDNLSGAEKAVQVKVKALPDAQ"
	cls := classifier.New().Classify(seq)
	require.Equal(t, domain.KindProteinSequence, cls.Kind)

	got := New().Synthesize(seq, cls)

	require.Contains(t, got.Content, "66 aminoácidos")
	require.Len(t, seq, 66)
}

func TestSynthesize_Deterministic(t *testing.T) {
	cls := domain.Classification{Kind: domain.KindExperimentGuidance, Domain: "bioinformatics"}
	s := New()

	a := s.Synthesize("haz un blast", cls)
	b := s.Synthesize("haz un blast", cls)
	require.Equal(t, a, b)

	// Callers may mutate the result without affecting later answers.
	a.Recommendations[0] = "mutated"
	c := s.Synthesize("haz un blast", cls)
	require.False(t, strings.Contains(c.Recommendations[0], "mutated"))
}
