package classifier

import "github.com/astroflora/driver-ai-router/internal/domain"

// aminoAcids is the 20-letter standard amino-acid alphabet.
const aminoAcids = "ACDEFGHIKLMNPQRSTVWY"

// trigger is a literal phrase that pins a message to a domain.
type trigger struct {
	Phrase     string
	Kind       domain.Kind
	Domain     string
	Confidence float64
}

// triggers are checked in order as substrings of the lower-cased input.
var triggers = []trigger{
	// Bioinformatics requests phrased as commands
	{Phrase: "haz un blast", Kind: domain.KindExperimentGuidance, Domain: "bioinformatics", Confidence: 0.9},
	{Phrase: "analiza la secuencia", Kind: domain.KindExperimentGuidance, Domain: "bioinformatics", Confidence: 0.9},
	{Phrase: "analiza esta secuencia", Kind: domain.KindExperimentGuidance, Domain: "bioinformatics", Confidence: 0.9},
	{Phrase: "run blast", Kind: domain.KindExperimentGuidance, Domain: "bioinformatics", Confidence: 0.85},
	{Phrase: "analyze this sequence", Kind: domain.KindExperimentGuidance, Domain: "bioinformatics", Confidence: 0.85},
	{Phrase: "predice la estructura", Kind: domain.KindExperimentGuidance, Domain: "structural_biology", Confidence: 0.85},
	{Phrase: "diseña un experimento", Kind: domain.KindExperimentGuidance, Domain: "experiment_design", Confidence: 0.85},
	{Phrase: "design an experiment", Kind: domain.KindExperimentGuidance, Domain: "experiment_design", Confidence: 0.85},

	// Protocols
	{Phrase: "protocolo", Kind: domain.KindProtocolHelp, Domain: "protocols", Confidence: 0.85},
	{Phrase: "protocol for", Kind: domain.KindProtocolHelp, Domain: "protocols", Confidence: 0.85},
	{Phrase: "paso a paso", Kind: domain.KindProtocolHelp, Domain: "protocols", Confidence: 0.8},
	{Phrase: "step by step", Kind: domain.KindProtocolHelp, Domain: "protocols", Confidence: 0.8},
	{Phrase: "cómo preparo", Kind: domain.KindProtocolHelp, Domain: "protocols", Confidence: 0.8},
	{Phrase: "how do i prepare", Kind: domain.KindProtocolHelp, Domain: "protocols", Confidence: 0.8},

	// System status
	{Phrase: "estado del sistema", Kind: domain.KindSystemStatus, Domain: "system", Confidence: 0.9},
	{Phrase: "system status", Kind: domain.KindSystemStatus, Domain: "system", Confidence: 0.9},
	{Phrase: "estás funcionando", Kind: domain.KindSystemStatus, Domain: "system", Confidence: 0.85},
	{Phrase: "are you online", Kind: domain.KindSystemStatus, Domain: "system", Confidence: 0.85},
	{Phrase: "driver ai status", Kind: domain.KindSystemStatus, Domain: "system", Confidence: 0.9},
}

// dictionary is a weighted keyword list for one scientific domain.
type dictionary struct {
	Domain   string
	Kind     domain.Kind
	Keywords []string
}

// dictionaries are scored together; declaration order breaks ties.
var dictionaries = []dictionary{
	{
		Domain: "protein_analysis",
		Kind:   domain.KindExperimentGuidance,
		Keywords: []string{
			"proteína", "protein", "aminoácido", "amino acid", "enzima", "enzyme",
			"péptido", "peptide", "plegamiento", "folding",
		},
	},
	{
		Domain: "bioinformatics",
		Kind:   domain.KindExperimentGuidance,
		Keywords: []string{
			"blast", "alineamiento", "alignment", "genoma", "genome", "fasta",
			"filogenia", "phylogen", "homología", "homology",
		},
	},
	{
		Domain: "drug_design",
		Kind:   domain.KindExperimentGuidance,
		Keywords: []string{
			"fármaco", "drug", "ligando", "ligand", "docking", "inhibidor",
			"inhibitor", "molécula", "molecule", "admet",
		},
	},
	{
		Domain: "structural_biology",
		Kind:   domain.KindExperimentGuidance,
		Keywords: []string{
			"estructura", "structure", "cristalografía", "crystallography", "pdb",
			"alphafold", "cryo-em", "dominio", "domain", "conformación",
		},
	},
	{
		Domain: "astrobiology",
		Kind:   domain.KindExperimentGuidance,
		Keywords: []string{
			"astrobiología", "astrobiology", "extremófilo", "extremophile", "marte",
			"mars", "exoplaneta", "exoplanet", "microgravedad", "microgravity",
		},
	},
}

// marker is a closed-class conversational cue.
type marker struct {
	Group   string
	Phrases []string
}

// markers are matched as whole tokens (single words) or substrings (phrases).
var markers = []marker{
	{Group: "greeting", Phrases: []string{"hola", "hello", "hi", "hey", "buenas", "buenos días", "buenas tardes", "good morning", "saludos"}},
	{Group: "gratitude", Phrases: []string{"gracias", "thanks", "thank you", "muchas gracias", "genial", "perfecto"}},
	{Group: "help", Phrases: []string{"ayuda", "help", "qué puedes hacer", "what can you do", "ayúdame"}},
}

const (
	// dictionaryThreshold is the minimum keyword score that can win rule 3.
	dictionaryThreshold = 0.1

	markerConfidence     = 0.8
	scientificConfidence = 0.6
	defaultConfidence    = 0.5

	// technicalTokenLimit is how many technical-looking tokens a message may
	// carry before it is treated as scientific chatter.
	technicalTokenLimit = 2
)
