package dialogue

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConversation_DefaultsAndStableID(t *testing.T) {
	t.Parallel()

	raw := `{"mapping":{"a":{"message":{"content":{"parts":["hi"]}},"children":[]}}}`
	c1, err := ParseConversation([]byte(raw), 3)
	if err != nil {
		t.Fatalf("ParseConversation: %v", err)
	}
	c2, _ := ParseConversation([]byte(raw), 3)
	if c1.Title != DefaultTitle {
		t.Fatalf("Title=%q, want %q", c1.Title, DefaultTitle)
	}
	if c1.ID == "" || c1.ID != c2.ID {
		t.Fatalf("ID=%q/%q, want equal non-empty ids", c1.ID, c2.ID)
	}
	n, _ := c1.Nodes.Get("a")
	if n.Message.Role != RoleUnknown || n.Message.Model != "unknown" {
		t.Fatalf("message=%+v, want unknown role and model", n.Message)
	}
}

func TestParseConversation_MessageFields(t *testing.T) {
	t.Parallel()

	raw := `{"id":"c1","title":"T","mapping":{
		"a":{"message":{"author":{"role":"assistant"},"create_time":1700000000,
			"metadata":{"model_slug":"gpt-4o"},
			"content":{"parts":["one",{"text":"two"},{"asset_pointer":"x"}]}},"children":[]}}}`
	conv := mustConversation(t, raw)
	n, ok := conv.Nodes.Get("a")
	if !ok {
		t.Fatalf("node a missing")
	}
	m := n.Message
	if m.Role != RoleAssistant || m.Model != "gpt-4o" {
		t.Fatalf("role=%q model=%q", m.Role, m.Model)
	}
	if len(m.Parts) != 2 || m.Text() != "one two" {
		t.Fatalf("parts=%v text=%q, want [one two]", m.Parts, m.Text())
	}
	if m.Timestamp != "2023-11-14 22:13:20" {
		t.Fatalf("Timestamp=%q, want 2023-11-14 22:13:20", m.Timestamp)
	}
}

func TestFlatten_DepthFirstAndSkipsEmpty(t *testing.T) {
	t.Parallel()

	// root(empty) -> [b, c]; b -> [d]; e is orphaned with a missing parent.
	raw := `{"id":"c","mapping":{
		"root":{"parent":null,"message":null,"children":["b","c"]},
		"c":{"parent":"root","message":{"author":{"role":"assistant"},"content":{"parts":["third"]}},"children":[]},
		"b":{"parent":"root","message":{"author":{"role":"user"},"content":{"parts":["  "]}},"children":["d"]},
		"d":{"parent":"b","message":{"author":{"role":"user"},"content":{"parts":["second"]}},"children":[]},
		"e":{"parent":"gone","message":{"author":{"role":"user"},"content":{"parts":["fourth"]}},"children":["d"]}
	}}`
	msgs := Flattener{}.Flatten(mustConversation(t, raw))
	var got []string
	for i, m := range msgs {
		if m.Seq != i+1 {
			t.Fatalf("msgs[%d].Seq=%d, want %d", i, m.Seq, i+1)
		}
		got = append(got, m.Content)
	}
	if strings.Join(got, ",") != "second,third,fourth" {
		t.Fatalf("order=%v, want [second third fourth]", got)
	}
}

func TestFlatten_InlineChildren(t *testing.T) {
	t.Parallel()

	raw := `{"id":"c","mapping":{
		"root":{"message":{"author":{"role":"user"},"content":{"parts":["q"]},
			"children":[{"author":{"role":"assistant"},"content":{"parts":["a1"]}}]},
			"children":[{"message":{"author":{"role":"assistant"},"content":{"parts":["a2"]}},"children":[]}]}
	}}`
	msgs := Flattener{}.Flatten(mustConversation(t, raw))
	var got []string
	for _, m := range msgs {
		got = append(got, m.Role+":"+m.Content)
	}
	if strings.Join(got, ",") != "user:q,assistant:a1,assistant:a2" {
		t.Fatalf("flattened=%v", got)
	}
}

func TestFlatten_CycleVisitedOnce(t *testing.T) {
	t.Parallel()

	raw := `{"id":"c","mapping":{
		"a":{"parent":"b","message":{"author":{"role":"user"},"content":{"parts":["a"]}},"children":["b"]},
		"b":{"parent":"a","message":{"author":{"role":"assistant"},"content":{"parts":["b"]}},"children":["a"]}
	}}`
	msgs := Flattener{}.Flatten(mustConversation(t, raw))
	if len(msgs) != 2 {
		t.Fatalf("len(msgs)=%d, want 2", len(msgs))
	}
}

func TestFlatten_EmptyMapping(t *testing.T) {
	t.Parallel()

	conv := mustConversation(t, `{"id":"c","title":"x","mapping":{}}`)
	if msgs := (Flattener{}).Flatten(conv); len(msgs) != 0 {
		t.Fatalf("len(msgs)=%d, want 0", len(msgs))
	}
}

func TestReadArchive_ArrayAndObject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c1 := linearConversationJSON("c1", "one", turn{role: RoleUser, text: "hi"})
	c2 := linearConversationJSON("c2", "two", turn{role: RoleUser, text: "yo"})

	arrayPath := filepath.Join(dir, "array.json")
	if err := os.WriteFile(arrayPath, []byte("["+c1+","+c2+"]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	objPath := filepath.Join(dir, "object.json")
	if err := os.WriteFile(objPath, []byte(`{"meta":{"x":[1,2]},"items":[`+c1+","+c2+`]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, tc := range []struct {
		path string
		opts ReadOptions
	}{
		{arrayPath, ReadOptions{}},
		{objPath, ReadOptions{}},
		{objPath, ReadOptions{ArrayField: "items"}},
	} {
		var ids []string
		n, err := ReadArchive(context.Background(), tc.path, tc.opts, func(c Conversation) error {
			ids = append(ids, c.ID)
			return nil
		})
		if err != nil {
			t.Fatalf("ReadArchive(%s): %v", tc.path, err)
		}
		if n != 2 || strings.Join(ids, ",") != "c1,c2" {
			t.Fatalf("n=%d ids=%v, want 2 [c1 c2]", n, ids)
		}
	}

	if _, err := ReadArchive(context.Background(), objPath, ReadOptions{ArrayField: "meta"}, func(Conversation) error { return nil }); err == nil {
		t.Fatalf("expected error when the named field is not an array")
	}
}

func TestReadArchive_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c1 := linearConversationJSON("c1", "one", turn{role: RoleUser, text: "hi"})
	_, err := DecodeArchive(ctx, strings.NewReader("["+c1+"]"), ReadOptions{}, func(Conversation) error { return nil })
	if err == nil {
		t.Fatalf("expected context error")
	}
}
