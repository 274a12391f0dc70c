package fallback

// template is a canned answer used when no backend responded.
type template struct {
	Content         string
	Recommendations []string
}

const offlineNote = "\n\n_Driver AI no está disponible en este momento; esta es una respuesta local._"

var (
	greetingTemplate = template{
		Content: "¡Hola! Soy el asistente científico de Astroflora. Puedo ayudarte con análisis " +
			"de secuencias proteicas, protocolos de laboratorio y diseño de experimentos.",
		Recommendations: []string{
			"Pega una secuencia de aminoácidos para analizarla",
			"Pregunta por un protocolo, por ejemplo extracción de proteínas",
		},
	}

	gratitudeTemplate = template{
		Content:         "¡De nada! Si necesitas algo más sobre tus experimentos, aquí estoy.",
		Recommendations: []string{},
	}

	helpTemplate = template{
		Content: "Puedo ayudarte con:\n" +
			"- Análisis de secuencias (BLAST, propiedades, dominios)\n" +
			"- Protocolos de laboratorio paso a paso\n" +
			"- Orientación en diseño de experimentos\n" +
			"- Estado de los servicios de análisis",
		Recommendations: []string{
			"Escribe \"protocolo de PCR\" para ver un protocolo",
			"Envía una secuencia FASTA para un análisis BLAST",
		},
	}

	statusTemplate = template{
		Content: "El servicio de análisis Driver AI no responde en este momento. " +
			"El enrutador sigue activo y responderá con información local hasta que se recupere.",
		Recommendations: []string{
			"Consulta /v1/backends/health para ver el estado de cada servicio",
		},
	}

	protocolTemplate = template{
		Content: "Puedo orientarte con el protocolo, aunque el motor de análisis no está disponible. " +
			"Como guía general: define el objetivo, prepara reactivos y controles, " +
			"documenta cada paso y registra las condiciones (temperatura, tiempos, concentraciones).",
		Recommendations: []string{
			"Indica el tipo de muestra y el volumen de trabajo",
			"Vuelve a intentarlo en unos minutos para un protocolo detallado",
		},
	}

	sequenceTemplate = template{
		Content: "He recibido tu secuencia de %d aminoácidos. El análisis BLAST no está disponible " +
			"ahora mismo; la secuencia no se ha perdido y puedes reenviarla en unos minutos.",
		Recommendations: []string{
			"Verifica que la secuencia use el alfabeto estándar de 20 aminoácidos",
			"Reenvía la secuencia cuando el servicio se recupere",
		},
	}

	genericTemplate = template{
		Content: "Ahora mismo no puedo consultar el motor de análisis. " +
			"Reformula tu pregunta o inténtalo de nuevo en unos minutos.",
		Recommendations: []string{},
	}
)

// experimentTemplates are keyed by classification domain.
var experimentTemplates = map[string]template{
	"protein_analysis": {
		Content: "Para caracterizar una proteína suele empezarse por la secuencia primaria, " +
			"propiedades fisicoquímicas (pI, peso molecular) y predicción de dominios.",
		Recommendations: []string{"Envía la secuencia para un análisis completo"},
	},
	"bioinformatics": {
		Content: "Para un análisis bioinformático, prepara tus secuencias en formato FASTA " +
			"y define la base de datos de referencia antes de lanzar BLAST o un alineamiento.",
		Recommendations: []string{"Pega la secuencia en formato FASTA"},
	},
	"drug_design": {
		Content: "En diseño de fármacos, valida primero la estructura de la diana y el sitio de unión " +
			"antes del docking, y filtra los ligandos por propiedades ADMET.",
		Recommendations: []string{"Indica la diana y la familia de ligandos"},
	},
	"structural_biology": {
		Content: "Para estudios estructurales, comprueba si existe una estructura en el PDB " +
			"o una predicción de AlphaFold antes de plantear cristalografía o cryo-EM.",
		Recommendations: []string{"Comparte el identificador UniProt o PDB"},
	},
	"astrobiology": {
		Content: "En astrobiología, define las condiciones ambientales simuladas " +
			"(radiación, temperatura, microgravedad) e incluye organismos extremófilos de control.",
		Recommendations: []string{"Describe las condiciones del entorno a simular"},
	},
	"experiment_design": {
		Content: "Un buen diseño experimental fija la hipótesis, las variables, los controles " +
			"positivos y negativos, y el número de réplicas antes de empezar.",
		Recommendations: []string{"Describe tu hipótesis y las variables a medir"},
	},
}

// generalTemplates are keyed by the conversational marker group.
var generalTemplates = map[string]template{
	"greeting":  greetingTemplate,
	"gratitude": gratitudeTemplate,
	"help":      helpTemplate,
}
