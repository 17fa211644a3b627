package profile

import "datapulse/internal/table"

// AnalyzeMissing tallies missing values per column. A cell is missing when it
// arrived null or empty, or when coercion degraded it (for example a numeric
// column value that did not parse). Percentages are relative to the table's
// row count; an empty table reports 0 rather than dividing by zero.
func AnalyzeMissing(t *table.TypedTable) MissingReport {
	report := MissingReport{
		Counts:      make(map[string]int, len(t.Columns)),
		Percentages: make(map[string]float64, len(t.Columns)),
	}

	for i := range t.Columns {
		col := &t.Columns[i]
		var missing int
		for _, m := range col.Missing {
			if m {
				missing++
			}
		}
		report.Counts[col.Schema.Name] = missing
		if t.Rows == 0 {
			report.Percentages[col.Schema.Name] = 0
			continue
		}
		report.Percentages[col.Schema.Name] = 100 * float64(missing) / float64(t.Rows)
	}

	return report
}
