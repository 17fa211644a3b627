// Package profile implements the dataset profiling core: schema inference,
// type coercion, descriptive statistics, missing-data tallies, IQR outlier
// detection, and the Pearson correlation matrix.
//
// Everything in this package is a pure, deterministic function of its input
// table. Recoverable conditions are captured as data (error markers inside
// reports), never returned as errors; the one class of real error is a
// violated vector-length invariant, which panics because it is a bug.
package profile

import (
	"encoding/json"

	"datapulse/internal/table"
)

// NumericStats describes one numeric column.
//
// Count is the number of non-missing values. The remaining fields are nil
// when undefined: everything at count 0, std additionally at count 1 (sample
// std uses ddof=1). NaN never leaks into serialized output.
type NumericStats struct {
	Count int      `json:"count"`
	Mean  *float64 `json:"mean"`
	Std   *float64 `json:"std"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	P25   *float64 `json:"p25"`
	P50   *float64 `json:"p50"`
	P75   *float64 `json:"p75"`
}

// ValueCount is one categorical value with its frequency.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CategoricalStats describes one categorical or boolean column. Missing
// values are excluded from Count, DistinctCount, and TopValues; they are
// reported separately by the MissingReport.
type CategoricalStats struct {
	Count         int          `json:"count"`
	DistinctCount int          `json:"distinct_count"`
	TopValues     []ValueCount `json:"top_values"`
}

// SummaryStats splits per-column statistics by column family.
type SummaryStats struct {
	Numeric     map[string]NumericStats     `json:"numeric"`
	Categorical map[string]CategoricalStats `json:"categorical"`
}

// MissingReport maps each column to its missing count and percentage.
// Percentages are 0 for an empty table rather than a division error.
type MissingReport struct {
	Counts      map[string]int     `json:"total_missing"`
	Percentages map[string]float64 `json:"percentage_missing"`
}

// OutlierReport is either a result (Err == "") or an explicit marker that
// detection could not run (Err != "", counts omitted from JSON).
type OutlierReport struct {
	Err               string
	TotalOutliers     int
	OutlierPercentage float64
	// OutlierRows holds ascending, deduplicated row indices, capped at
	// OutlierRowSample entries. TotalOutliers still counts all of them.
	OutlierRows []int
}

// OutlierRowSample bounds the number of row indices carried in a report.
const OutlierRowSample = 100

// Available reports whether detection produced counts.
func (r OutlierReport) Available() bool { return r.Err == "" }

type outlierResultJSON struct {
	TotalOutliers     int     `json:"total_outliers"`
	OutlierPercentage float64 `json:"outlier_percentage"`
	OutlierRows       []int   `json:"outlier_rows"`
}

type outlierErrorJSON struct {
	Error string `json:"error"`
}

// MarshalJSON emits either the counts or the error marker, never both.
func (r OutlierReport) MarshalJSON() ([]byte, error) {
	if !r.Available() {
		return json.Marshal(outlierErrorJSON{Error: r.Err})
	}
	rows := r.OutlierRows
	if rows == nil {
		rows = []int{}
	}
	return json.Marshal(outlierResultJSON{
		TotalOutliers:     r.TotalOutliers,
		OutlierPercentage: r.OutlierPercentage,
		OutlierRows:       rows,
	})
}

// UnmarshalJSON accepts both shapes produced by MarshalJSON.
func (r *OutlierReport) UnmarshalJSON(b []byte) error {
	var e outlierErrorJSON
	if err := json.Unmarshal(b, &e); err == nil && e.Error != "" {
		*r = OutlierReport{Err: e.Error}
		return nil
	}
	var v outlierResultJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = OutlierReport{
		TotalOutliers:     v.TotalOutliers,
		OutlierPercentage: v.OutlierPercentage,
		OutlierRows:       v.OutlierRows,
	}
	return nil
}

// CorrelationMatrix maps column -> column -> Pearson coefficient. A nil entry
// means the coefficient is undefined for that pair (empty pairwise sample or
// zero pairwise variance). The matrix is symmetric and its diagonal is 1.0
// for every included column.
type CorrelationMatrix map[string]map[string]*float64

// Profile is the complete computed analysis for one dataset. It is replaced
// wholesale on reprofiling and never mutated in place.
type Profile struct {
	Columns      []table.ColumnSchema `json:"columns"`
	SummaryStats SummaryStats         `json:"summary_stats"`
	Correlations CorrelationMatrix    `json:"correlations"`
	MissingData  MissingReport        `json:"missing_data"`
	Outliers     OutlierReport        `json:"outliers"`
	// Narrative is the external summarizer's text, or an explicit
	// unavailable marker. It is the only non-deterministic field.
	Narrative string `json:"ai_insights,omitempty"`
}
