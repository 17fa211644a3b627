package profile

import (
	"sort"

	"datapulse/internal/table"
)

const outlierUnavailable = "insufficient numeric data for outlier detection"

// DetectOutliers flags rows holding extreme numeric values by the IQR fence
// rule.
//
// Per qualifying numeric column, a non-missing value is an outlier when it
// falls outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. A column qualifies when it has
// at least 2 non-missing values and nonzero sample standard deviation;
// constant columns never flag anything. A row counts once no matter how many
// of its columns flag it.
//
// When no column qualifies the report carries an error marker instead of
// counts, mirroring how the rest of the profile stays usable when one
// analysis cannot run.
func DetectOutliers(t *table.TypedTable) OutlierReport {
	flagged := make(map[int]bool)
	qualifying := 0

	for i := range t.Columns {
		col := &t.Columns[i]
		if col.Schema.Kind != table.KindNumeric {
			continue
		}

		values := nonMissingFloats(col)
		if len(values) < 2 || sampleStd(values) == 0 {
			continue
		}
		qualifying++

		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		q1 := percentile(sorted, 0.25)
		q3 := percentile(sorted, 0.75)
		iqr := q3 - q1
		lo := q1 - 1.5*iqr
		hi := q3 + 1.5*iqr

		for row, v := range col.Floats {
			if col.Missing[row] {
				continue
			}
			if v < lo || v > hi {
				flagged[row] = true
			}
		}
	}

	if qualifying == 0 {
		return OutlierReport{Err: outlierUnavailable}
	}

	rows := make([]int, 0, len(flagged))
	for row := range flagged {
		rows = append(rows, row)
	}
	sort.Ints(rows)

	report := OutlierReport{TotalOutliers: len(rows)}
	if t.Rows > 0 {
		report.OutlierPercentage = 100 * float64(len(rows)) / float64(t.Rows)
	}
	if len(rows) > OutlierRowSample {
		rows = rows[:OutlierRowSample]
	}
	report.OutlierRows = rows
	return report
}
