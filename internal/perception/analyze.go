package perception

import (
	"strings"
	"time"

	"contractbot/internal/logging"
)

// Analysis is the full perception result for one utterance.
type Analysis struct {
	Original       string         `json:"originalInput"`
	Normalized     string         `json:"correctedInput"`
	Corrected      bool           `json:"corrected"`
	Entities       []Entity       `json:"entities"`
	Classification Classification `json:"classification"`
}

// Pipeline bundles the three perception stages. The zero value is not usable;
// build one with NewPipeline.
type Pipeline struct {
	Normalizer *Normalizer
	Extractor  *Extractor
	Classifier *Classifier
}

// NewPipeline returns a pipeline over the default tables.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Normalizer: defaultNormalizer,
		Extractor:  defaultExtractor,
		Classifier: defaultClassifier,
	}
}

// Analyze normalizes, extracts and classifies text.
func (p *Pipeline) Analyze(text string) Analysis {
	start := time.Now()
	normalized := p.Normalizer.Normalize(text)
	entities := p.Extractor.Extract(normalized)
	a := Analysis{
		Original:       text,
		Normalized:     normalized,
		Corrected:      normalized != strings.Join(strings.Fields(strings.ToLower(text)), " "),
		Entities:       entities,
		Classification: p.Classifier.Classify(normalized, entities),
	}
	recordAnalysis(a, time.Since(start))
	logging.PerceptionDebug("classified %q as %s/%s", normalized, a.Classification.QueryType, a.Classification.ActionType)
	return a
}

// Analyze runs the default pipeline.
func Analyze(text string) Analysis {
	return defaultPipeline.Analyze(text)
}

var defaultPipeline = NewPipeline()
