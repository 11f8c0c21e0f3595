package dialogue

import (
	"fmt"
	"math"
)

// CorrelationMatrix holds pairwise Pearson coefficients over numeric feature columns.
// An empty Columns slice is the placeholder for scopes without enough data; Note then
// says why. Undefined cells (constant columns, fewer than two paired values) are NaN.
type CorrelationMatrix struct {
	Columns []string        `json:"columns"`
	Values  [][]Coefficient `json:"values"`
	Rows    int             `json:"rows"`
	Note    string          `json:"note,omitempty"`
}

// Empty reports whether m is a placeholder.
func (m CorrelationMatrix) Empty() bool { return len(m.Columns) == 0 }

// At returns the coefficient for columns a and b, NaN when either is absent.
func (m CorrelationMatrix) At(a, b string) float64 {
	i, j := -1, -1
	for k, c := range m.Columns {
		if c == a {
			i = k
		}
		if c == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return float64(m.Values[i][j])
}

// FeatureTable is a dense numeric view of messages; NaN marks a missing value.
type FeatureTable struct {
	Columns []string
	Rows    [][]float64
}

// NewFeatureTable returns an empty table with the catalog's numeric columns.
func (c *Catalog) NewFeatureTable() *FeatureTable {
	return &FeatureTable{Columns: c.NumericColumns()}
}

// AddMessages appends one row per message.
func (t *FeatureTable) AddMessages(c *Catalog, msgs []Message) {
	for _, m := range msgs {
		t.Rows = append(t.Rows, c.NumericRow(m))
	}
}

var baseNumericColumns = []string{
	"word_count", "token_count", "sentence_count", "response_time",
	"edit_count", "edit_similarity", "sentiment_score", "subjectivity",
	"bleu", "meteor", "rouge1", "rougeL",
	"entropy", "readability", "lexical_diversity", "unique_per_100",
}

var derivedNumericColumns = []string{
	"contradiction_ratio", "epistemic_stance", "cognitive_load_density",
	"reference_density", "entity_continuity", "affective_diversity",
	"rapport_index", "argument_quality", "information_efficiency",
	"lexical_mirroring", "cognitive_asymmetry",
}

// NumericColumns lists every numeric per-message feature. The sequence number is not
// a feature and is excluded.
func (c *Catalog) NumericColumns() []string {
	cols := append([]string(nil), baseNumericColumns...)
	for _, cat := range c.categories {
		for _, l := range cat.labels {
			cols = append(cols, cat.name+"."+l.name)
		}
		cols = append(cols, cat.name+".total")
	}
	return append(cols, derivedNumericColumns...)
}

// NumericRow returns m's values in NumericColumns order.
func (c *Catalog) NumericRow(m Message) []float64 {
	f := m.Features
	row := make([]float64, 0, len(baseNumericColumns)+len(derivedNumericColumns)+64)
	var bleu, meteor, r1, rl = math.NaN(), math.NaN(), math.NaN(), math.NaN()
	if m.Overlap != nil {
		bleu, meteor, r1, rl = m.Overlap.BLEU, m.Overlap.METEOR, m.Overlap.ROUGE1, m.Overlap.ROUGEL
	}
	row = append(row,
		float64(m.WordCount), float64(m.TokenCount), float64(m.SentenceCount), orNaN(m.ResponseTime),
		float64(m.EditCount), orNaN(m.EditSimilarity), m.Sentiment.Score, m.Sentiment.Subjectivity,
		bleu, meteor, r1, rl,
		f.Entropy, f.Readability, f.LexicalDiversity, f.Richness.UniquePer100,
	)
	for _, cat := range c.categories {
		s := f.Categories[cat.name]
		for _, l := range cat.labels {
			row = append(row, float64(s.Counts[l.name]))
		}
		row = append(row, float64(s.Total))
	}
	return append(row,
		float64(f.Structure.ContradictionRatio), float64(f.Structure.EpistemicStance), f.CognitiveLoad.Density,
		f.Coherence.ReferenceDensity, orNaN(f.Coherence.EntityContinuity), float64(f.Affect.Diversity),
		f.Social.Rapport, float64(f.Argumentation.Quality), f.Coupling.InformationEfficiency,
		f.Coupling.LexicalMirroring, f.Coupling.CognitiveAsymmetry,
	)
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Correlate computes the Pearson matrix of t over columns holding at least one finite
// value. Non-finite values count as missing and each pair uses the rows where both
// columns are present. Scopes with fewer than two rows or columns yield a placeholder.
func Correlate(t FeatureTable) CorrelationMatrix {
	var keep []int
	for j := range t.Columns {
		for _, row := range t.Rows {
			if finite(row[j]) {
				keep = append(keep, j)
				break
			}
		}
	}
	if len(t.Rows) < 2 || len(keep) < 2 {
		return CorrelationMatrix{
			Rows: len(t.Rows),
			Note: fmt.Sprintf("insufficient data for correlation: %d rows, %d numeric columns", len(t.Rows), len(keep)),
		}
	}

	m := CorrelationMatrix{
		Columns: make([]string, len(keep)),
		Values:  make([][]Coefficient, len(keep)),
		Rows:    len(t.Rows),
	}
	for i, j := range keep {
		m.Columns[i] = t.Columns[j]
		m.Values[i] = make([]Coefficient, len(keep))
		m.Values[i][i] = 1
	}
	for a := 0; a < len(keep); a++ {
		for b := a + 1; b < len(keep); b++ {
			r := pearson(t.Rows, keep[a], keep[b])
			m.Values[a][b] = Coefficient(r)
			m.Values[b][a] = Coefficient(r)
		}
	}
	return m
}

func pearson(rows [][]float64, a, b int) float64 {
	var n int
	var sx, sy float64
	for _, row := range rows {
		if finite(row[a]) && finite(row[b]) {
			n++
			sx += row[a]
			sy += row[b]
		}
	}
	if n < 2 {
		return math.NaN()
	}
	mx, my := sx/float64(n), sy/float64(n)
	var cov, vx, vy float64
	for _, row := range rows {
		if finite(row[a]) && finite(row[b]) {
			dx, dy := row[a]-mx, row[b]-my
			cov += dx * dy
			vx += dx * dx
			vy += dy * dy
		}
	}
	if vx == 0 || vy == 0 {
		return math.NaN()
	}
	r := cov / math.Sqrt(vx*vy)
	return math.Max(-1, math.Min(1, r))
}
