package profile

import "datapulse/internal/table"

// Build assembles the full deterministic profile of a raw table: schema
// inference, coercion, then the four analyses over the typed result. The
// narrative field is left empty; attaching summarizer text is the pipeline's
// job because it is the one non-deterministic piece.
func Build(raw *table.RawTable) *Profile {
	schemas := InferSchema(raw)
	typed := Coerce(raw, schemas)

	return &Profile{
		Columns:      schemas,
		SummaryStats: Describe(typed),
		Correlations: Correlate(typed),
		MissingData:  AnalyzeMissing(typed),
		Outliers:     DetectOutliers(typed),
	}
}
