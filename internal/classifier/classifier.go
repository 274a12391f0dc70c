// Package classifier determines the intent of a free-text scientific query.
//
// Classification flow, first matching rule wins:
//  1. Protein sequence detection
//  2. Explicit trigger phrases
//  3. Weighted keyword dictionaries
//  4. Conversational markers
//  5. Lexical density fallback
package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/astroflora/driver-ai-router/internal/domain"
)

const (
	minSequenceLength   = 10
	minSequencePurity   = 0.8
	saturationLength    = 50
	baseSequenceScore   = 0.9
	sequenceScoreSpread = 0.05

	// minBlockLength is the mean whitespace-separated token length a sequence
	// must have. Prose is mostly amino-acid letters too, but its words are short.
	// Pure residues laid out in equal groups (MALVR DPEPA ...) are exempt.
	minBlockLength   = 8
	minGroupedBlocks = 3
	minGroupLength   = 5
)

// Classifier is stateless; the zero value is ready to use.
type Classifier struct{}

// New returns a Classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify maps text to a Classification. It is pure: the same text always
// yields the same result.
func (c *Classifier) Classify(text string) domain.Classification {
	if cls, ok := classifySequence(text); ok {
		return cls
	}

	lower := strings.ToLower(strings.TrimSpace(text))

	if cls, ok := classifyTrigger(lower); ok {
		return cls
	}
	if cls, ok := classifyDictionaries(lower); ok {
		return cls
	}

	tokens := tokenize(lower)
	if cls, ok := classifyMarkers(lower, tokens); ok {
		return cls
	}
	return classifyDensity(text)
}

// ============================================================
// Rule 1: sequence detection
// ============================================================

func classifySequence(text string) (domain.Classification, bool) {
	seq := ExtractSequence(text)
	length := utf8.RuneCountInString(seq)
	if length < minSequenceLength {
		return domain.Classification{}, false
	}

	purity := sequencePurity(seq)
	if purity <= minSequencePurity {
		return domain.Classification{}, false
	}

	blocks := strings.Fields(stripFastaHeaders(text))
	if length/len(blocks) < minBlockLength && !(purity == 1 && grouped(blocks)) {
		return domain.Classification{}, false
	}

	// Longer and purer sequences are less likely to be words in caps.
	lengthFactor := float64(length-minSequenceLength) / float64(saturationLength-minSequenceLength)
	if lengthFactor > 1 {
		lengthFactor = 1
	}
	purityFactor := (purity - minSequencePurity) / (1 - minSequencePurity)
	confidence := baseSequenceScore + sequenceScoreSpread*lengthFactor*purityFactor

	return domain.Classification{
		Kind:            domain.KindProteinSequence,
		Domain:          "protein_analysis",
		Confidence:      round(confidence),
		MatchedKeywords: []string{},
	}, true
}

// ExtractSequence drops FASTA header lines, strips every whitespace rune and
// uppercases the rest. The result is what gets sent to the analysis endpoint.
func ExtractSequence(text string) string {
	text = stripFastaHeaders(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func stripFastaHeaders(text string) string {
	if !strings.Contains(text, ">") {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// grouped reports whether blocks look like a residue listing split into
// fixed-width groups: every block but the last has the same length, and the
// last is no longer than the others.
func grouped(blocks []string) bool {
	if len(blocks) < minGroupedBlocks {
		return false
	}
	width := utf8.RuneCountInString(blocks[0])
	if width < minGroupLength {
		return false
	}
	for i, b := range blocks[1:] {
		n := utf8.RuneCountInString(b)
		if n > width || (n != width && i+1 < len(blocks)-1) {
			return false
		}
	}
	return true
}

func sequencePurity(seq string) float64 {
	total, hits := 0, 0
	for _, r := range seq {
		total++
		if r < unicode.MaxASCII && strings.ContainsRune(aminoAcids, r) {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// ============================================================
// Rule 2: trigger phrases
// ============================================================

func classifyTrigger(lower string) (domain.Classification, bool) {
	for _, t := range triggers {
		if strings.Contains(lower, t.Phrase) {
			return domain.Classification{
				Kind:            t.Kind,
				Domain:          t.Domain,
				Confidence:      t.Confidence,
				MatchedKeywords: []string{t.Phrase},
			}, true
		}
	}
	return domain.Classification{}, false
}

// ============================================================
// Rule 3: weighted keyword dictionaries
// ============================================================

func classifyDictionaries(lower string) (domain.Classification, bool) {
	var (
		best      *dictionary
		bestScore float64
		bestHits  []string
	)

	for i := range dictionaries {
		d := &dictionaries[i]
		var hits []string
		for _, kw := range d.Keywords {
			if strings.Contains(lower, kw) {
				hits = append(hits, kw)
			}
		}
		score := 2 * float64(len(hits)) / float64(len(d.Keywords))
		if score > 1 {
			score = 1
		}
		// Strict comparison keeps the first declared dictionary on ties.
		if score > dictionaryThreshold && score > bestScore {
			best, bestScore, bestHits = d, score, hits
		}
	}

	if best == nil {
		return domain.Classification{}, false
	}
	return domain.Classification{
		Kind:            best.Kind,
		Domain:          best.Domain,
		Confidence:      round(bestScore),
		MatchedKeywords: bestHits,
	}, true
}

// ============================================================
// Rule 4: conversational markers
// ============================================================

func classifyMarkers(lower string, tokens []string) (domain.Classification, bool) {
	words := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		words[tok] = struct{}{}
	}

	for _, m := range markers {
		for _, phrase := range m.Phrases {
			matched := false
			if strings.Contains(phrase, " ") {
				matched = strings.Contains(lower, phrase)
			} else {
				_, matched = words[phrase]
			}
			if matched {
				return domain.Classification{
					Kind:            domain.KindGeneralChat,
					Domain:          m.Group,
					Confidence:      markerConfidence,
					MatchedKeywords: []string{phrase},
				}, true
			}
		}
	}
	return domain.Classification{}, false
}

// ============================================================
// Rule 5: lexical density
// ============================================================

func classifyDensity(text string) domain.Classification {
	var technical []string
	for _, tok := range strings.Fields(text) {
		tok = strings.TrimFunc(tok, unicode.IsPunct)
		if isTechnical(tok) {
			technical = append(technical, tok)
		}
	}

	if len(technical) > technicalTokenLimit {
		return domain.Classification{
			Kind:            domain.KindGeneralChat,
			Domain:          "scientific",
			Confidence:      scientificConfidence,
			MatchedKeywords: technical,
		}
	}
	return domain.Classification{
		Kind:            domain.KindGeneralChat,
		Domain:          "general",
		Confidence:      defaultConfidence,
		MatchedKeywords: []string{},
	}
}

// isTechnical reports whether a token looks like jargon: long, CamelCase or
// alphanumeric (gene names, accession numbers, concentrations).
func isTechnical(tok string) bool {
	if utf8.RuneCountInString(tok) > 6 {
		return true
	}
	prevLower := false
	for _, r := range tok {
		if unicode.IsDigit(r) {
			return true
		}
		if prevLower && unicode.IsUpper(r) {
			return true
		}
		prevLower = unicode.IsLower(r)
	}
	return false
}

// ============================================================
// Helpers
// ============================================================

// tokenize splits lower-cased text into letter/digit runs.
func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// round trims float noise so equal inputs compare equal in tests and JSON.
func round(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
