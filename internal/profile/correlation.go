package profile

import (
	"math"

	"datapulse/internal/table"
)

// Correlate builds the Pearson correlation matrix over the table's numeric
// columns using pairwise-complete observations: for each pair, only rows
// where both values are present enter the computation.
//
// Only qualifying columns enter the matrix, by the same rule outlier
// detection uses: at least 2 non-missing values and nonzero sample standard
// deviation. Constant and all-missing columns are excluded entirely rather
// than carried with an undefined row. Entries are nil when the coefficient is
// undefined for that pair (no complete rows, or zero pairwise variance on
// either side); the diagonal is 1.0. The result is symmetric because the
// upper triangle is computed once and mirrored.
func Correlate(t *table.TypedTable) CorrelationMatrix {
	var numeric []*table.TypedColumn
	for i := range t.Columns {
		col := &t.Columns[i]
		if col.Schema.Kind != table.KindNumeric {
			continue
		}
		values := nonMissingFloats(col)
		if len(values) < 2 || sampleStd(values) == 0 {
			continue
		}
		numeric = append(numeric, col)
	}

	matrix := make(CorrelationMatrix, len(numeric))
	for _, col := range numeric {
		matrix[col.Schema.Name] = make(map[string]*float64, len(numeric))
	}

	for a := 0; a < len(numeric); a++ {
		matrix[numeric[a].Schema.Name][numeric[a].Schema.Name] = fptr(1)
		for b := a + 1; b < len(numeric); b++ {
			r := pearson(numeric[a], numeric[b])
			matrix[numeric[a].Schema.Name][numeric[b].Schema.Name] = r
			matrix[numeric[b].Schema.Name][numeric[a].Schema.Name] = r
		}
	}

	return matrix
}

// pearson computes the coefficient over rows where both columns are present.
// Returns nil when undefined.
func pearson(a, b *table.TypedColumn) *float64 {
	var xs, ys []float64
	for i := range a.Floats {
		if a.Missing[i] || b.Missing[i] {
			continue
		}
		xs = append(xs, a.Floats[i])
		ys = append(ys, b.Floats[i])
	}
	if len(xs) == 0 {
		return nil
	}

	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return nil
	}
	r := sxy / math.Sqrt(sxx*syy)
	return fptr(r)
}
