package dialogue

import (
	"sort"
)

// TransitionMatrix counts how often one dialogue act is immediately followed by
// another. Labels are sorted; Counts and Probabilities are indexed [from][to].
type TransitionMatrix struct {
	Labels        []string    `json:"labels"`
	Counts        [][]int     `json:"counts"`
	Probabilities [][]float64 `json:"probabilities"`
}

// Empty reports whether no transition was observed.
func (m TransitionMatrix) Empty() bool { return len(m.Labels) == 0 }

func (m TransitionMatrix) index(label string) int {
	i := sort.SearchStrings(m.Labels, label)
	if i < len(m.Labels) && m.Labels[i] == label {
		return i
	}
	return -1
}

// Count returns the from→to count, 0 for unseen labels.
func (m TransitionMatrix) Count(from, to string) int {
	i, j := m.index(from), m.index(to)
	if i < 0 || j < 0 {
		return 0
	}
	return m.Counts[i][j]
}

// Probability returns the row-normalized from→to probability.
func (m TransitionMatrix) Probability(from, to string) float64 {
	i, j := m.index(from), m.index(to)
	if i < 0 || j < 0 {
		return 0
	}
	return m.Probabilities[i][j]
}

// TransitionCounter accumulates act transitions over one or more sequences.
type TransitionCounter struct {
	counts map[string]map[string]int
}

func NewTransitionCounter() *TransitionCounter {
	return &TransitionCounter{counts: make(map[string]map[string]int)}
}

// AddSequence counts every adjacent pair of acts where both are defined. Separate
// sequences are never linked to each other.
func (t *TransitionCounter) AddSequence(acts []string) {
	for i := 0; i+1 < len(acts); i++ {
		from, to := acts[i], acts[i+1]
		if from == "" || to == "" {
			continue
		}
		row, ok := t.counts[from]
		if !ok {
			row = make(map[string]int)
			t.counts[from] = row
		}
		row[to]++
	}
}

// AddMessages counts the dialogue acts of one thread.
func (t *TransitionCounter) AddMessages(msgs []Message) {
	acts := make([]string, len(msgs))
	for i, m := range msgs {
		acts[i] = m.DialogueAct
	}
	t.AddSequence(acts)
}

// Matrix builds count and probability matrices. Rows without outgoing transitions
// have all-zero probabilities.
func (t *TransitionCounter) Matrix() TransitionMatrix {
	set := make(map[string]struct{})
	for from, row := range t.counts {
		set[from] = struct{}{}
		for to := range row {
			set[to] = struct{}{}
		}
	}
	labels := make([]string, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	m := TransitionMatrix{
		Labels:        labels,
		Counts:        make([][]int, len(labels)),
		Probabilities: make([][]float64, len(labels)),
	}
	for i, from := range labels {
		m.Counts[i] = make([]int, len(labels))
		m.Probabilities[i] = make([]float64, len(labels))
		sum := 0
		for j, to := range labels {
			c := t.counts[from][to]
			m.Counts[i][j] = c
			sum += c
		}
		if sum == 0 {
			continue
		}
		for j := range labels {
			m.Probabilities[i][j] = float64(m.Counts[i][j]) / float64(sum)
		}
	}
	return m
}

// TransitionsOf builds the matrix of a single thread.
func TransitionsOf(msgs []Message) TransitionMatrix {
	t := NewTransitionCounter()
	t.AddMessages(msgs)
	return t.Matrix()
}
