package dialogue

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/fileutils"
)

// WriteOptions controls WriteReport.
type WriteOptions struct {
	Pretty    bool
	Overwrite bool
}

// WriteResult counts what WriteReport produced.
type WriteResult struct {
	FilesWritten int
	BytesWritten int64
}

// TransitionFile is the on-disk form of one transition matrix (counts or probabilities).
type TransitionFile struct {
	Scope         string      `json:"scope"`
	Note          string      `json:"note,omitempty"`
	Labels        []string    `json:"labels"`
	Counts        [][]int     `json:"counts,omitempty"`
	Probabilities [][]float64 `json:"probabilities,omitempty"`
}

// ThreadMatrices is the on-disk form of one thread's matrices.
type ThreadMatrices struct {
	Thread        string            `json:"thread"`
	Counts        TransitionFile    `json:"act_counts"`
	Probabilities TransitionFile    `json:"act_probabilities"`
	Correlation   CorrelationMatrix `json:"correlation"`
}

const noTransitionsNote = "no dialogue-act transitions observed"

func countsFile(scope string, m TransitionMatrix) TransitionFile {
	f := TransitionFile{Scope: scope, Labels: nonNilLabels(m.Labels), Counts: m.Counts}
	if m.Empty() {
		f.Note = noTransitionsNote
	}
	return f
}

func probabilitiesFile(scope string, m TransitionMatrix) TransitionFile {
	f := TransitionFile{Scope: scope, Labels: nonNilLabels(m.Labels), Probabilities: m.Probabilities}
	if m.Empty() {
		f.Note = noTransitionsNote
	}
	return f
}

func nonNilLabels(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}

// WriteReport writes the report as JSON files under dir:
//
//	thread_summary.json
//	process_notes.json
//	threads/<thread>.json
//	matrices/global_act_counts.json
//	matrices/global_act_prob.json
//	matrices/global_correlation.json
//	matrices/threads/<thread>.json
func WriteReport(dir string, r Report, opts WriteOptions) (WriteResult, error) {
	if dir == "" {
		return WriteResult{}, errors.New("WriteReport: dir is empty")
	}
	var res WriteResult
	write := func(rel string, v any) error {
		n, err := fileutils.WriteJSONFileAtomic(filepath.Join(dir, rel), v, opts.Pretty, opts.Overwrite)
		if err != nil {
			return fmt.Errorf("WriteReport: %s: %w", rel, err)
		}
		res.FilesWritten++
		res.BytesWritten += n
		return nil
	}

	notes := r.Notes
	if notes == nil {
		notes = []ProcessNote{}
	}
	if err := write("thread_summary.json", r.Summaries()); err != nil {
		return res, err
	}
	if err := write("process_notes.json", notes); err != nil {
		return res, err
	}
	if err := write(filepath.Join("matrices", "global_act_counts.json"), countsFile("global", r.GlobalTransitions)); err != nil {
		return res, err
	}
	if err := write(filepath.Join("matrices", "global_act_prob.json"), probabilitiesFile("global", r.GlobalTransitions)); err != nil {
		return res, err
	}
	if err := write(filepath.Join("matrices", "global_correlation.json"), r.GlobalCorrelation); err != nil {
		return res, err
	}

	names := make(map[string]int, len(r.Threads))
	for _, t := range r.Threads {
		name := uniqueFileName(names, t.Key)
		if err := write(filepath.Join("threads", name), t); err != nil {
			return res, err
		}
		tm := ThreadMatrices{
			Thread:        t.Key,
			Counts:        countsFile(t.Key, t.Transitions),
			Probabilities: probabilitiesFile(t.Key, t.Transitions),
			Correlation:   t.Correlation,
		}
		if err := write(filepath.Join("matrices", "threads", name), tm); err != nil {
			return res, err
		}
	}
	return res, nil
}

// uniqueFileName sanitizes key into a .json file name, suffixing -2, -3, ... on reuse.
func uniqueFileName(seen map[string]int, key string) string {
	base := fileutils.SanitizeFilenameComponent(key)
	if base == "" {
		base = "thread"
	}
	name := base
	for n := 2; seen[name] > 0; n++ {
		name = fmt.Sprintf("%s-%d", base, n)
	}
	seen[name]++
	return name + ".json"
}
