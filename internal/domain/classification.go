package domain

import "encoding/json"

// Kind is the coarse intent of a user message.
type Kind int

const (
	KindGeneralChat Kind = iota
	KindProteinSequence
	KindProtocolHelp
	KindExperimentGuidance
	KindSystemStatus
)

var kindNames = map[Kind]string{
	KindGeneralChat:        "general_chat",
	KindProteinSequence:    "protein_sequence",
	KindProtocolHelp:       "protocol_help",
	KindExperimentGuidance: "experiment_guidance",
	KindSystemStatus:       "system_status",
}

// String returns the snake_case name used in logs, metrics and JSON.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind by name. Unknown names decode to KindGeneralChat.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*k = KindGeneralChat
	for kind, n := range kindNames {
		if n == name {
			*k = kind
			break
		}
	}
	return nil
}

// AmbiguityThreshold is the confidence below which a classification is
// reported as ambiguous. Ambiguity is informational only.
const AmbiguityThreshold = 0.6

// Classification is the router's determination of intent and domain for one
// message. Values are produced fresh per message and never persisted.
type Classification struct {
	Kind            Kind     `json:"kind"`
	Domain          string   `json:"domain"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matchedKeywords"`
}

// Ambiguous reports whether the classifier was unsure about this message.
func (c Classification) Ambiguous() bool {
	return c.Confidence < AmbiguityThreshold
}
