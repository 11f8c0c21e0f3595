package dialogue

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultTitle is used for conversations exported without a title.
const DefaultTitle = "Untitled Chat"

// Conversation is one exported conversation: a node mapping kept in file order.
type Conversation struct {
	ID         string
	Title      string
	CreateTime *float64
	Nodes      *orderedmap.OrderedMap[string, *Node]
}

// Node is a conversation tree node with an optional message payload.
type Node struct {
	ID       string
	Parent   string
	Message  *NodeMessage
	Children []NodeRef
}

// NodeRef points at a child either by id (resolved through the mapping) or inline.
type NodeRef struct {
	ID     string
	Inline *Node
}

// NodeMessage is the raw message carried by a node.
type NodeMessage struct {
	Role string
	// Parts holds the text of every text-bearing content fragment, in order.
	Parts     []string
	Timestamp string
	Model     string
}

// Text joins the message fragments with single spaces and trims the result.
func (m *NodeMessage) Text() string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.Join(m.Parts, " "))
}

// ReadOptions controls ReadArchive.
type ReadOptions struct {
	// ArrayField names the conversations array when the top-level value is an object.
	// If empty, the first array-valued field is used.
	ArrayField string
}

// ReadArchive streams a conversations export and calls fn for each conversation in
// file order. The input is a top-level array of conversations, or an object holding
// such an array. It returns the number of conversations read.
func ReadArchive(ctx context.Context, path string, opts ReadOptions, fn func(Conversation) error) (int, error) {
	if ctx == nil {
		return 0, errors.New("ReadArchive: ctx is nil")
	}
	if path == "" {
		return 0, errors.New("ReadArchive: path is empty")
	}
	if fn == nil {
		return 0, errors.New("ReadArchive: fn is nil")
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("ReadArchive: open input: %w", err)
	}
	defer f.Close()
	return DecodeArchive(ctx, bufio.NewReaderSize(f, 1<<20), opts, fn)
}

// DecodeArchive is ReadArchive over an arbitrary reader.
func DecodeArchive(ctx context.Context, r io.Reader, opts ReadOptions, fn func(Conversation) error) (int, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("ReadArchive: read first token: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return 0, fmt.Errorf("ReadArchive: expected JSON array/object, got %T", tok)
	}

	n := 0
	switch delim {
	case '[':
		if err := readArrayFromOpen(ctx, dec, fn, &n); err != nil {
			return n, err
		}
		if err := expectDelim(dec, ']'); err != nil {
			return n, err
		}
		return n, nil
	case '{':
		found := false
		for dec.More() {
			if err := ctx.Err(); err != nil {
				return n, err
			}
			keyTok, err := dec.Token()
			if err != nil {
				return n, fmt.Errorf("ReadArchive: read object key: %w", err)
			}
			key, ok := keyTok.(string)
			if !ok {
				return n, fmt.Errorf("ReadArchive: expected string key, got %T", keyTok)
			}
			valTok, err := dec.Token()
			if err != nil {
				return n, fmt.Errorf("ReadArchive: read value token for key %q: %w", key, err)
			}

			d, isArray := valTok.(json.Delim)
			isArray = isArray && d == '['
			target := (opts.ArrayField != "" && key == opts.ArrayField) || (opts.ArrayField == "" && !found && isArray)
			if target {
				if !isArray {
					return n, fmt.Errorf("ReadArchive: key %q was chosen as array but value isn't an array", key)
				}
				found = true
				if err := readArrayFromOpen(ctx, dec, fn, &n); err != nil {
					return n, err
				}
				if err := expectDelim(dec, ']'); err != nil {
					return n, err
				}
				continue
			}
			if err := skipValue(dec, valTok); err != nil {
				return n, fmt.Errorf("ReadArchive: skip key %q value: %w", key, err)
			}
		}
		if err := expectDelim(dec, '}'); err != nil {
			return n, err
		}
		if !found {
			return n, errors.New("ReadArchive: no conversations array found in top-level object")
		}
		return n, nil
	default:
		return 0, fmt.Errorf("ReadArchive: unsupported top-level delimiter %q", delim)
	}
}

func readArrayFromOpen(ctx context.Context, dec *json.Decoder, fn func(Conversation) error, n *int) error {
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("ReadArchive: decode conversation element %d: %w", *n, err)
		}
		conv, err := ParseConversation(raw, *n)
		if err != nil {
			return err
		}
		*n++
		if err := fn(conv); err != nil {
			return err
		}
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("ReadArchive: read closing %q: %w", want, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("ReadArchive: expected closing %q, got %v", want, tok)
	}
	return nil
}

func skipValue(dec *json.Decoder, first json.Token) error {
	d, ok := first.(json.Delim)
	if !ok {
		return nil
	}
	if d != '{' && d != '[' {
		return fmt.Errorf("skipValue: unexpected delimiter %q", d)
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if dd, ok := tok.(json.Delim); ok {
			switch dd {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

// ParseConversation decodes one conversation element. ordinal is its position in the
// export and seeds a stable id when the element carries none.
func ParseConversation(raw []byte, ordinal int) (Conversation, error) {
	if !gjson.ValidBytes(raw) {
		return Conversation{}, fmt.Errorf("ParseConversation: element %d is not valid JSON", ordinal)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Conversation{}, fmt.Errorf("ParseConversation: element %d is not an object", ordinal)
	}

	conv := Conversation{
		ID:    firstString(doc, "conversation_id", "id"),
		Title: DefaultTitle,
		Nodes: orderedmap.New[string, *Node](),
	}
	if t := doc.Get("title"); t.Type == gjson.String {
		conv.Title = t.Str
	}
	if ct := doc.Get("create_time"); ct.Type == gjson.Number {
		v := ct.Float()
		conv.CreateTime = &v
	}
	if conv.ID == "" {
		name := fmt.Sprintf("conversation/%d/%s", ordinal, conv.Title)
		conv.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
	}

	mapping := doc.Get("mapping")
	if !mapping.Exists() || mapping.Type == gjson.Null {
		return conv, nil
	}
	if !mapping.IsObject() {
		return Conversation{}, fmt.Errorf("ParseConversation: conversation %q: mapping is not an object", conv.ID)
	}
	ordered := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal([]byte(mapping.Raw), ordered); err != nil {
		return Conversation{}, fmt.Errorf("ParseConversation: conversation %q: decode mapping: %w", conv.ID, err)
	}
	for pair := ordered.Oldest(); pair != nil; pair = pair.Next() {
		node := parseNode(gjson.ParseBytes(pair.Value), 0)
		if node == nil {
			continue
		}
		node.ID = pair.Key
		conv.Nodes.Set(pair.Key, node)
	}
	return conv, nil
}

const maxInlineDepth = 10_000

// parseNode accepts either a node object ({"message": ..., "children": [...]}) or a
// bare message object used as an inline child.
func parseNode(r gjson.Result, depth int) *Node {
	if !r.IsObject() || depth > maxInlineDepth {
		return nil
	}
	n := &Node{
		ID:     r.Get("id").String(),
		Parent: r.Get("parent").String(),
	}
	msg := r.Get("message")
	if !msg.Exists() && (r.Get("author").Exists() || r.Get("content").Exists()) {
		msg = r
	}
	if msg.IsObject() {
		n.Message = parseMessage(msg)
		if msg.Raw != r.Raw {
			n.Children = appendChildren(n.Children, msg.Get("children"), depth)
		}
	}
	n.Children = appendChildren(n.Children, r.Get("children"), depth)
	return n
}

func appendChildren(dst []NodeRef, children gjson.Result, depth int) []NodeRef {
	if !children.IsArray() {
		return dst
	}
	children.ForEach(func(_, c gjson.Result) bool {
		switch {
		case c.Type == gjson.String && c.Str != "":
			dst = append(dst, NodeRef{ID: c.Str})
		case c.IsObject():
			if inline := parseNode(c, depth+1); inline != nil {
				dst = append(dst, NodeRef{ID: inline.ID, Inline: inline})
			}
		}
		return true
	})
	return dst
}

func parseMessage(m gjson.Result) *NodeMessage {
	out := &NodeMessage{
		Role:  strings.TrimSpace(m.Get("author.role").String()),
		Model: firstString(m, "metadata.model_slug", "content.model_slug"),
	}
	if out.Role == "" {
		out.Role = RoleUnknown
	}
	if out.Model == "" {
		out.Model = "unknown"
	}
	m.Get("content.parts").ForEach(func(_, p gjson.Result) bool {
		switch {
		case p.Type == gjson.String:
			out.Parts = append(out.Parts, p.Str)
		case p.IsObject():
			if t := p.Get("text"); t.Type == gjson.String {
				out.Parts = append(out.Parts, t.Str)
			}
		}
		return true
	})
	switch ct := m.Get("create_time"); ct.Type {
	case gjson.Number:
		out.Timestamp = formatEpoch(ct.Float())
	case gjson.String:
		out.Timestamp = ct.Str
	}
	return out
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			return strings.TrimSpace(v.Str)
		}
	}
	return ""
}
