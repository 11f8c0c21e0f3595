package dialogue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSplitArchive(t *testing.T) {
	t.Parallel()

	path := writeArchive(t,
		greetingConversation("conv/1", "Hi"),
		`{"id":"c2","title":"Empty","mapping":{}}`,
		greetingConversation("conv 1", "Again"),
	)
	out := filepath.Join(t.TempDir(), "threads")
	res, err := SplitArchive(context.Background(), path, out, SplitOptions{})
	if err != nil {
		t.Fatalf("SplitArchive: %v", err)
	}
	if res.ThreadsWritten != 3 || res.BytesWritten == 0 {
		t.Fatalf("result=%+v, want 3 threads", res)
	}

	var first FlattenedThread
	readJSON(t, filepath.Join(out, "conv_1.json"), &first)
	if first.ConversationID != "conv/1" || len(first.Messages) != 2 {
		t.Fatalf("first=%+v", first)
	}
	if first.Messages[0].Seq != 1 || first.Messages[0].Role != RoleUser || first.Messages[0].WordCount != 4 {
		t.Fatalf("first message=%+v", first.Messages[0])
	}

	var empty FlattenedThread
	readJSON(t, filepath.Join(out, "c2.json"), &empty)
	if empty.Messages == nil || len(empty.Messages) != 0 {
		t.Fatalf("empty thread messages=%v, want []", empty.Messages)
	}

	if _, err := os.Stat(filepath.Join(out, "conv_1-2.json")); err != nil {
		t.Fatalf("expected deduplicated file: %v", err)
	}

	if _, err := SplitArchive(context.Background(), path, out, SplitOptions{}); err == nil {
		t.Fatalf("expected error when outputs exist and overwrite is off")
	}
	if _, err := SplitArchive(context.Background(), path, out, SplitOptions{OverwriteExisting: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}
