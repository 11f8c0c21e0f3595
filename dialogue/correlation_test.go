package dialogue

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestCorrelate_DiagonalAndSymmetry(t *testing.T) {
	t.Parallel()

	table := FeatureTable{
		Columns: []string{"a", "b", "c", "missing"},
		Rows: [][]float64{
			{1, 2, 5, math.NaN()},
			{2, 4, 5, math.NaN()},
			{3, 7, 5, math.NaN()},
		},
	}
	m := Correlate(table)
	if strings.Join(m.Columns, ",") != "a,b,c" {
		t.Fatalf("Columns=%v, want [a b c]", m.Columns)
	}
	for i := range m.Columns {
		if m.Values[i][i] != 1 {
			t.Fatalf("diagonal[%d]=%v, want 1", i, m.Values[i][i])
		}
		for j := range m.Columns {
			a, b := float64(m.Values[i][j]), float64(m.Values[j][i])
			if !(a == b || (math.IsNaN(a) && math.IsNaN(b))) {
				t.Fatalf("values[%d][%d]=%v != values[%d][%d]=%v", i, j, a, j, i, b)
			}
		}
	}
	if r := m.At("a", "b"); r <= 0.98 || r > 1 {
		t.Fatalf("r(a,b)=%v, want close to 1", r)
	}
	if r := m.At("a", "c"); !math.IsNaN(r) {
		t.Fatalf("r(a,c)=%v, want NaN for a constant column", r)
	}

	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), "null") {
		t.Fatalf("undefined coefficients should encode as null: %s", b)
	}
}

func TestCorrelate_Placeholder(t *testing.T) {
	t.Parallel()

	m := Correlate(FeatureTable{Columns: []string{"a", "b"}, Rows: [][]float64{{1, 2}}})
	if !m.Empty() || m.Note == "" || m.Rows != 1 {
		t.Fatalf("matrix=%+v, want placeholder with note", m)
	}
}

func TestNumericRow_MatchesColumns(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t)
	text := "Perhaps this framework is better, because the data suggests it."
	fv, _ := c.Score(text, WordCount(text), TurnState{})
	row := c.NumericRow(Message{WordCount: WordCount(text), Features: fv})
	cols := c.NumericColumns()
	if len(row) != len(cols) {
		t.Fatalf("len(row)=%d, len(cols)=%d", len(row), len(cols))
	}
	for i, col := range cols {
		if col == "seq" {
			t.Fatalf("sequence number must not be a feature column")
		}
		if col == "hedge.total" && row[i] != 2 {
			t.Fatalf("hedge.total=%v, want 2 (perhaps, suggests)", row[i])
		}
		if col == "response_time" && !math.IsNaN(row[i]) {
			t.Fatalf("response_time=%v, want NaN when unset", row[i])
		}
	}
}
