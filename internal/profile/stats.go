package profile

import (
	"math"
	"sort"

	"datapulse/internal/table"
)

// topValueLimit bounds the number of most-frequent values reported per
// categorical column.
const topValueLimit = 5

// Describe computes per-column descriptive statistics for a typed table.
// Numeric columns land in SummaryStats.Numeric, categorical and boolean
// columns in SummaryStats.Categorical. Both maps are always non-nil.
func Describe(t *table.TypedTable) SummaryStats {
	out := SummaryStats{
		Numeric:     make(map[string]NumericStats),
		Categorical: make(map[string]CategoricalStats),
	}

	for i := range t.Columns {
		col := &t.Columns[i]
		switch col.Schema.Kind {
		case table.KindNumeric:
			out.Numeric[col.Schema.Name] = describeNumeric(nonMissingFloats(col))
		case table.KindBoolean:
			out.Categorical[col.Schema.Name] = describeCategorical(boolStrings(col))
		default:
			out.Categorical[col.Schema.Name] = describeCategorical(nonMissingStrings(col))
		}
	}

	return out
}

// describeNumeric summarizes the non-missing values of a numeric column.
//
// Undefined statistics stay nil rather than NaN: everything at n=0, and std
// at n=1 because the sample standard deviation uses ddof=1.
func describeNumeric(values []float64) NumericStats {
	n := len(values)
	stats := NumericStats{Count: n}
	if n == 0 {
		return stats
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	stats.Mean = fptr(mean(values))
	stats.Min = fptr(sorted[0])
	stats.Max = fptr(sorted[n-1])
	stats.P25 = fptr(percentile(sorted, 0.25))
	stats.P50 = fptr(percentile(sorted, 0.50))
	stats.P75 = fptr(percentile(sorted, 0.75))
	if n >= 2 {
		stats.Std = fptr(sampleStd(values))
	}
	return stats
}

// describeCategorical summarizes non-missing string values. Top values are
// ordered by descending frequency with ties broken by first appearance in
// the column, which keeps the output deterministic.
func describeCategorical(values []string) CategoricalStats {
	counts := make(map[string]int, len(values))
	firstSeen := make(map[string]int, len(values))
	order := make([]string, 0, len(values))

	for i, v := range values {
		if _, ok := counts[v]; !ok {
			firstSeen[v] = i
			order = append(order, v)
		}
		counts[v]++
	}

	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := counts[order[a]], counts[order[b]]
		if ca != cb {
			return ca > cb
		}
		return firstSeen[order[a]] < firstSeen[order[b]]
	})

	top := make([]ValueCount, 0, topValueLimit)
	for _, v := range order {
		if len(top) == topValueLimit {
			break
		}
		top = append(top, ValueCount{Value: v, Count: counts[v]})
	}

	return CategoricalStats{
		Count:         len(values),
		DistinctCount: len(counts),
		TopValues:     top,
	}
}

// percentile computes the p-quantile of sorted values by linear interpolation
// between order statistics: position = p*(n-1), interpolating between the
// flanking values. This matches the numpy/pandas "linear" method; the choice
// matters at small n and is pinned by the test suite.
//
// sorted must be non-empty and ascending; p must be within [0, 1].
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the sample standard deviation (ddof=1). Callers must ensure
// len(values) >= 2.
func sampleStd(values []float64) float64 {
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func fptr(v float64) *float64 { return &v }

func nonMissingFloats(col *table.TypedColumn) []float64 {
	out := make([]float64, 0, len(col.Floats))
	for i, v := range col.Floats {
		if col.Missing[i] {
			continue
		}
		out = append(out, v)
	}
	return out
}

func nonMissingStrings(col *table.TypedColumn) []string {
	out := make([]string, 0, len(col.Strings))
	for i, v := range col.Strings {
		if col.Missing[i] {
			continue
		}
		out = append(out, v)
	}
	return out
}

func boolStrings(col *table.TypedColumn) []string {
	out := make([]string, 0, len(col.Bools))
	for i, v := range col.Bools {
		if col.Missing[i] {
			continue
		}
		if v {
			out = append(out, "true")
		} else {
			out = append(out, "false")
		}
	}
	return out
}
