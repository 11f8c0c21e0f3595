package dialogue

import (
	"strings"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

// TurnPair describes a user turn immediately answered by an assistant turn.
type TurnPair struct {
	// PairIndex is the zero-based position of the user turn in the thread.
	PairIndex       int      `json:"pair_index"`
	UserLength      int      `json:"user_length"`
	AssistantLength int      `json:"assistant_length"`
	ResponseRatio   float64  `json:"response_ratio"`
	SemanticOverlap float64  `json:"semantic_overlap"`
	QuestionType    *string  `json:"question_type"`
	ResponseTime    *float64 `json:"response_time"`
}

// AnalyzePairs scans adjacent (user, assistant) turns. Turns of other roles break
// adjacency; no pairing is attempted across them.
func (c *Catalog) AnalyzePairs(msgs []Message) []TurnPair {
	var pairs []TurnPair
	for i := 0; i+1 < len(msgs); i++ {
		u, a := msgs[i], msgs[i+1]
		if u.Role != RoleUser || a.Role != RoleAssistant {
			continue
		}
		p := TurnPair{
			PairIndex:       i,
			UserLength:      u.WordCount,
			AssistantLength: a.WordCount,
			SemanticOverlap: textprim.Round(c.fieldOverlap(u.Content, a.Content), 3),
			ResponseTime:    a.ResponseTime,
		}
		if u.WordCount > 0 {
			p.ResponseRatio = textprim.Round(float64(a.WordCount)/float64(u.WordCount), 2)
		}
		if qt := c.QuestionType(u.Content); qt != "" {
			p.QuestionType = &qt
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// fieldOverlap is the Jaccard index of the stopword-filtered lowercase whitespace
// tokens of a and b, 0 when both are empty.
func (c *Catalog) fieldOverlap(a, b string) float64 {
	sa, sb := c.fieldSet(a), c.fieldSet(b)
	union := len(sa)
	for w := range sb {
		if _, ok := sa[w]; !ok {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersectCount(sa, sb)) / float64(union)
}

func (c *Catalog) fieldSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if !c.IsStopword(w) {
			out[w] = struct{}{}
		}
	}
	return out
}
