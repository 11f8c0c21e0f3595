package dialogue

import (
	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

// Flattener turns a conversation tree into an ordered message list.
type Flattener struct {
	Tokens textprim.TokenCounter
}

// Flatten walks the tree depth-first, pre-order. Roots are nodes whose parent is unset
// or unknown, taken in mapping order; nodes unreachable from any root are walked
// afterwards in mapping order. Each node is visited at most once. Nodes without text
// produce no message but their children are still walked.
func (f Flattener) Flatten(conv Conversation) []Message {
	if conv.Nodes == nil || conv.Nodes.Len() == 0 {
		return nil
	}
	tokens := f.Tokens
	if tokens == nil {
		tokens = textprim.HeuristicCounter{}
	}

	visited := make(map[string]bool, conv.Nodes.Len())
	var out []Message
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.ID != "" {
			if visited[n.ID] {
				return
			}
			visited[n.ID] = true
		}
		if m, ok := newMessage(n.Message, tokens); ok {
			out = append(out, m)
		}
		for _, ref := range n.Children {
			if ref.Inline != nil {
				walk(ref.Inline)
				continue
			}
			if child, ok := conv.Nodes.Get(ref.ID); ok {
				walk(child)
			}
		}
	}

	for pair := conv.Nodes.Oldest(); pair != nil; pair = pair.Next() {
		if isRoot(conv, pair.Value) {
			walk(pair.Value)
		}
	}
	for pair := conv.Nodes.Oldest(); pair != nil; pair = pair.Next() {
		walk(pair.Value)
	}

	for i := range out {
		out[i].Seq = i + 1
	}
	return out
}

func isRoot(conv Conversation, n *Node) bool {
	if n.Parent == "" || n.Parent == n.ID {
		return true
	}
	_, ok := conv.Nodes.Get(n.Parent)
	return !ok
}

func newMessage(nm *NodeMessage, tokens textprim.TokenCounter) (Message, bool) {
	text := nm.Text()
	if text == "" {
		return Message{}, false
	}
	return Message{
		Role:          nm.Role,
		Content:       text,
		Timestamp:     nm.Timestamp,
		WordCount:     WordCount(text),
		TokenCount:    tokens.CountTokens(text),
		SentenceCount: SentenceCount(text),
		Model:         nm.Model,
		Parts:         append([]string(nil), nm.Parts...),
	}, true
}
