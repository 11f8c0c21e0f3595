package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/fileutils"
)

func TestWriteReport_Layout(t *testing.T) {
	t.Parallel()

	path := writeArchive(t,
		greetingConversation("c1", "Hi"),
		`{"id":"c2","title":"Empty","mapping":{}}`,
	)
	report, err := mustAnalyzer(t).AnalyzeArchive(context.Background(), path, ReadOptions{})
	if err != nil {
		t.Fatalf("AnalyzeArchive: %v", err)
	}
	dir := t.TempDir()
	res, err := WriteReport(dir, report, WriteOptions{})
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if res.FilesWritten != 7 || res.BytesWritten == 0 {
		t.Fatalf("result=%+v, want 7 files", res)
	}

	var summaries []ThreadSummary
	readJSON(t, filepath.Join(dir, "thread_summary.json"), &summaries)
	if len(summaries) != 1 || summaries[0].Thread != "Hi" {
		t.Fatalf("summaries=%+v", summaries)
	}

	var notes []ProcessNote
	readJSON(t, filepath.Join(dir, "process_notes.json"), &notes)
	if len(notes) != 2 || notes[1].Status != NoteSkipped {
		t.Fatalf("notes=%+v", notes)
	}

	var counts TransitionFile
	readJSON(t, filepath.Join(dir, "matrices", "global_act_counts.json"), &counts)
	if counts.Scope != "global" || len(counts.Labels) != 2 || counts.Probabilities != nil {
		t.Fatalf("counts=%+v", counts)
	}

	var tm ThreadMatrices
	readJSON(t, filepath.Join(dir, "matrices", "threads", "Hi.json"), &tm)
	if tm.Thread != "Hi" || tm.Probabilities.Probabilities == nil {
		t.Fatalf("thread matrices=%+v", tm)
	}

	var thread ThreadResult
	readJSON(t, filepath.Join(dir, "threads", "Hi.json"), &thread)
	if len(thread.Messages) != 2 || thread.Summary.TotalMessages != 2 {
		t.Fatalf("thread=%+v", thread)
	}

	// A second write without overwrite refuses to clobber.
	if _, err := WriteReport(dir, report, WriteOptions{}); !errors.Is(err, fileutils.ErrExists) {
		t.Fatalf("err=%v, want ErrExists", err)
	}
	if _, err := WriteReport(dir, report, WriteOptions{Overwrite: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestWriteReport_EmptyRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := WriteReport(dir, mustAnalyzer(t).NewRun().Report(), WriteOptions{}); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	var counts TransitionFile
	readJSON(t, filepath.Join(dir, "matrices", "global_act_counts.json"), &counts)
	if counts.Note == "" || counts.Labels == nil {
		t.Fatalf("counts=%+v, want placeholder note and empty labels", counts)
	}
	var corr CorrelationMatrix
	readJSON(t, filepath.Join(dir, "matrices", "global_correlation.json"), &corr)
	if corr.Note == "" {
		t.Fatalf("correlation=%+v, want placeholder note", corr)
	}
}

func TestUniqueFileName(t *testing.T) {
	t.Parallel()

	seen := map[string]int{}
	got := []string{
		uniqueFileName(seen, "a b"),
		uniqueFileName(seen, "a_b"),
		uniqueFileName(seen, ".."),
		uniqueFileName(seen, "a_b-2"),
		uniqueFileName(seen, "a b"),
	}
	want := []string{"a_b.json", "a_b-2.json", "thread.json", "a_b-2-2.json", "a_b-3.json"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("uniqueFileName #%d=%q, want %q", i, got[i], want[i])
		}
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}
