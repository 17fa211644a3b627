// Package insight turns a computed profile into a natural-language narrative
// by prompting an external summarizer service.
//
// The narrative is strictly supplemental: any summarizer failure degrades to
// an explicit unavailable marker in the profile instead of failing the run.
package insight

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"datapulse/internal/profile"
)

// SystemMessage frames the summarizer as a data analyst and bounds the
// response length.
const SystemMessage = "You are a data analyst expert. Provide concise, actionable insights about datasets in 2-3 paragraphs."

// unavailablePrefix marks narratives the summarizer could not produce.
const unavailablePrefix = "AI insights unavailable"

// correlationHighlightLimit bounds how many column pairs the prompt calls out.
const correlationHighlightLimit = 5

// Summarizer produces narrative text from a system message and a user prompt.
type Summarizer interface {
	Summarize(ctx context.Context, system, prompt string) (string, error)
}

// Facts is the compact, already-computed view of one dataset handed to the
// prompt builder.
type Facts struct {
	RowCount    int
	ColumnCount int
	Profile     *profile.Profile
}

// Narrative asks the summarizer for insights about the profiled dataset.
//
// Never returns an error: a nil summarizer, a summarizer failure, or a blank
// response all yield an unavailable marker string so the profile completes
// regardless.
func Narrative(ctx context.Context, s Summarizer, facts Facts) string {
	if s == nil {
		return unavailablePrefix + " - summarizer not configured"
	}

	text, err := s.Summarize(ctx, SystemMessage, BuildPrompt(facts))
	if err != nil {
		return fmt.Sprintf("%s - %v", unavailablePrefix, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return unavailablePrefix + " - empty response"
	}
	return text
}

// Unavailable reports whether a narrative is a degradation marker rather than
// summarizer output.
func Unavailable(narrative string) bool {
	return strings.HasPrefix(narrative, unavailablePrefix)
}

// BuildPrompt renders the profile's key findings as the summarizer prompt:
// dataset shape, worst missing columns, outlier counts, and the strongest
// correlations by absolute coefficient. The rendering is deterministic so the
// same profile always produces the same prompt.
func BuildPrompt(facts Facts) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze this dataset and provide key insights:\n\n")
	fmt.Fprintf(&b, "Dataset Info:\n- Rows: %d\n- Columns: %d\n\n", facts.RowCount, facts.ColumnCount)
	b.WriteString("Analysis Results:\n")

	writeMissingLines(&b, facts.Profile.MissingData)
	writeOutlierLine(&b, facts.Profile.Outliers)
	writeCorrelationLines(&b, facts.Profile.Correlations)

	b.WriteString("\nPlease provide:\n")
	b.WriteString("1. Key data quality observations\n")
	b.WriteString("2. Notable patterns or concerns\n")
	b.WriteString("3. Recommendations for further analysis\n\n")
	b.WriteString("Keep it concise and actionable.\n")

	return b.String()
}

func writeMissingLines(b *strings.Builder, m profile.MissingReport) {
	cols := make([]string, 0, len(m.Counts))
	for name, n := range m.Counts {
		if n > 0 {
			cols = append(cols, name)
		}
	}
	if len(cols) == 0 {
		b.WriteString("- Missing Data: none\n")
		return
	}
	sort.Slice(cols, func(i, j int) bool {
		if m.Counts[cols[i]] != m.Counts[cols[j]] {
			return m.Counts[cols[i]] > m.Counts[cols[j]]
		}
		return cols[i] < cols[j]
	})
	parts := make([]string, len(cols))
	for i, name := range cols {
		parts[i] = fmt.Sprintf("%s=%d (%.1f%%)", name, m.Counts[name], m.Percentages[name])
	}
	fmt.Fprintf(b, "- Missing Data: %s\n", strings.Join(parts, ", "))
}

func writeOutlierLine(b *strings.Builder, r profile.OutlierReport) {
	if !r.Available() {
		fmt.Fprintf(b, "- Outliers: %s\n", r.Err)
		return
	}
	fmt.Fprintf(b, "- Outliers: %d rows (%.1f%%)\n", r.TotalOutliers, r.OutlierPercentage)
}

func writeCorrelationLines(b *strings.Builder, m profile.CorrelationMatrix) {
	type pair struct {
		a, b string
		r    float64
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var pairs []pair
	for i, a := range names {
		for _, bn := range names[i+1:] {
			if v := m[a][bn]; v != nil {
				pairs = append(pairs, pair{a: a, b: bn, r: *v})
			}
		}
	}
	if len(pairs) == 0 {
		b.WriteString("- Correlations Available: false\n")
		return
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].r), math.Abs(pairs[j].r)
		if ai != aj {
			return ai > aj
		}
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})
	if len(pairs) > correlationHighlightLimit {
		pairs = pairs[:correlationHighlightLimit]
	}

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s~%s r=%.2f", p.a, p.b, p.r)
	}
	fmt.Fprintf(b, "- Strongest Correlations: %s\n", strings.Join(parts, ", "))
}
