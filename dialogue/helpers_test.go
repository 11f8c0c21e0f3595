package dialogue

import (
	"encoding/json"
	"fmt"
	"testing"
)

type turn struct {
	role string
	text string
	ts   float64
}

// linearConversationJSON builds an export element whose mapping is a single chain
// under an empty root node.
func linearConversationJSON(id, title string, turns ...turn) string {
	type author struct {
		Role string `json:"role"`
	}
	type content struct {
		Parts []string `json:"parts"`
	}
	type message struct {
		Author     author   `json:"author"`
		Content    content  `json:"content"`
		CreateTime *float64 `json:"create_time,omitempty"`
	}
	type node struct {
		Parent   *string  `json:"parent"`
		Message  *message `json:"message"`
		Children []string `json:"children"`
	}

	mapping := make(map[string]node, len(turns)+1)
	order := []string{"root"}
	root := node{Children: []string{}}
	if len(turns) > 0 {
		root.Children = []string{"m1"}
	}
	mapping["root"] = root
	for i, t := range turns {
		id := fmt.Sprintf("m%d", i+1)
		parent := "root"
		if i > 0 {
			parent = fmt.Sprintf("m%d", i)
		}
		n := node{
			Parent:   &parent,
			Message:  &message{Author: author{Role: t.role}, Content: content{Parts: []string{t.text}}},
			Children: []string{},
		}
		if t.ts != 0 {
			ts := t.ts
			n.Message.CreateTime = &ts
		}
		if i+1 < len(turns) {
			n.Children = []string{fmt.Sprintf("m%d", i+2)}
		}
		mapping[id] = n
		order = append(order, id)
	}

	// Emit the mapping in chain order so mapping order is deterministic.
	buf := []byte(`{`)
	for i, k := range order {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(mapping[k])
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')

	head := map[string]any{"title": title}
	if id != "" {
		head["id"] = id
	}
	hb, _ := json.Marshal(head)
	return string(hb[:len(hb)-1]) + `,"mapping":` + string(buf) + `}`
}

func mustConversation(t *testing.T, raw string) Conversation {
	t.Helper()
	conv, err := ParseConversation([]byte(raw), 0)
	if err != nil {
		t.Fatalf("ParseConversation: %v", err)
	}
	return conv
}

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	return c
}

func mustAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(Config{Catalog: mustCatalog(t)})
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}
