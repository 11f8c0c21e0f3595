package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "metrics.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleThread(key string, ratio dialogue.Ratio) dialogue.ThreadResult {
	msgs := []dialogue.Message{
		{Seq: 1, Role: dialogue.RoleUser, Content: "What is X?", DialogueAct: "question_information-seeking"},
		{Seq: 2, Role: dialogue.RoleAssistant, Content: "X is Y.", DialogueAct: "answer"},
		{Seq: 3, Role: dialogue.RoleUser, Content: "Thanks!", DialogueAct: "gratitude"},
	}
	return dialogue.ThreadResult{
		ID:       "c-" + key,
		Title:    key,
		Key:      key,
		Messages: msgs,
		Summary: dialogue.ThreadSummary{
			Thread:             key,
			TotalMessages:      len(msgs),
			UserTurns:          2,
			AssistantTurns:     1,
			ContradictionRatio: ratio,
			ConvergenceTrend:   dialogue.InsufficientData,
		},
		Transitions: dialogue.TransitionsOf(msgs),
	}
}

func TestSaveReport_RoundTrip(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()
	a := sampleThread("alpha", dialogue.InfRatio)
	b := sampleThread("beta", dialogue.NewRatio(1, 2))
	counter := dialogue.NewTransitionCounter()
	counter.AddMessages(a.Messages)
	counter.AddMessages(b.Messages)
	report := dialogue.Report{
		Threads:           []dialogue.ThreadResult{a, b},
		GlobalTransitions: counter.Matrix(),
	}

	if err := s.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	// Saving again replaces rather than duplicates.
	if err := s.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport (again): %v", err)
	}

	if n, err := s.CountRows(ctx, "messages"); err != nil || n != 6 {
		t.Fatalf("messages=%d err=%v, want 6", n, err)
	}
	// Two transitions per thread plus the two global ones.
	if n, err := s.CountRows(ctx, "act_transitions"); err != nil || n != 6 {
		t.Fatalf("act_transitions=%d err=%v, want 6", n, err)
	}

	rows, err := s.Threads(ctx)
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows)=%d, want 2", len(rows))
	}
	if rows[0].Thread != "alpha" || !rows[0].ContradictionRatio.IsInf() {
		t.Fatalf("rows[0]=%+v, want alpha with infinite ratio", rows[0])
	}
	if rows[1].ContradictionRatio != 0.5 {
		t.Fatalf("rows[1].ContradictionRatio=%v, want 0.5", rows[1].ContradictionRatio)
	}
	if rows[1].ConvergenceTrend != dialogue.InsufficientData {
		t.Fatalf("ConvergenceTrend=%q, want %q", rows[1].ConvergenceTrend, dialogue.InsufficientData)
	}
}

func TestCountRows_UnknownTable(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	if _, err := s.CountRows(context.Background(), "sqlite_master; DROP TABLE threads"); err == nil {
		t.Fatalf("expected error for unknown table")
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestSaveReport_DuplicateTitlesKeepEveryThread(t *testing.T) {
	t.Parallel()

	catalog, err := dialogue.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	a, err := dialogue.NewAnalyzer(dialogue.Config{Catalog: catalog})
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	ctx := context.Background()
	run := a.NewRun()
	for i, title := range []string{"Chat", "Chat", "Chat-2"} {
		raw := fmt.Sprintf(`{"id":"c%d","title":%q,"mapping":{
"r":{"parent":null,"message":null,"children":["u"]},
"u":{"parent":"r","message":{"author":{"role":"user"},"content":{"parts":["Hello there?"]}},"children":["a"]},
"a":{"parent":"u","message":{"author":{"role":"assistant"},"content":{"parts":["Hi."]}},"children":[]}}}`, i, title)
		conv, err := dialogue.ParseConversation([]byte(raw), i)
		if err != nil {
			t.Fatalf("ParseConversation: %v", err)
		}
		if err := run.Add(ctx, conv); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	s := openTemp(t)
	if err := s.SaveReport(ctx, run.Report()); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if n, err := s.CountRows(ctx, "threads"); err != nil || n != 3 {
		t.Fatalf("threads=%d err=%v, want 3", n, err)
	}
	if n, err := s.CountRows(ctx, "messages"); err != nil || n != 6 {
		t.Fatalf("messages=%d err=%v, want 6", n, err)
	}
}
