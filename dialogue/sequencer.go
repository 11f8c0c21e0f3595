package dialogue

import (
	"strings"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

// DefaultEditThreshold is the similarity below which a repeated assistant turn counts
// as a revision.
const DefaultEditThreshold = 0.9

// Sequencer adds the turn-order features: response time, dialogue act and edit signal.
type Sequencer struct {
	Catalog       *Catalog
	Similarity    textprim.SimilarityFunc
	EditThreshold float64
}

// Sequence fills ResponseTime, DialogueAct, EditCount and EditSimilarity in place.
func (s Sequencer) Sequence(msgs []Message) {
	sim := s.Similarity
	if sim == nil {
		sim = textprim.MatchingBlocksRatio
	}
	threshold := s.EditThreshold
	if threshold <= 0 {
		threshold = DefaultEditThreshold
	}

	assignResponseTimes(msgs)

	prevAssistant := ""
	for i := range msgs {
		m := &msgs[i]
		m.DialogueAct = s.Catalog.DialogueAct(m.Content, m.Role)

		m.EditCount, m.EditSimilarity = 0, nil
		switch {
		case len(m.Parts) > 1:
			m.EditCount = len(m.Parts) - 1
			m.EditSimilarity = floatPtr(textprim.Round(sim(m.Parts[0], m.Parts[len(m.Parts)-1]), 3))
		case m.Role == RoleAssistant && prevAssistant != "":
			r := sim(prevAssistant, m.Content)
			m.EditSimilarity = floatPtr(textprim.Round(r, 3))
			if r < threshold {
				m.EditCount = 1
			}
		}
		if m.Role == RoleAssistant {
			prevAssistant = m.Content
		}
	}
}

// assignResponseTimes sets each message's seconds since the previous parseable
// timestamp, regardless of role.
func assignResponseTimes(msgs []Message) {
	var (
		last    int64
		hasPrev bool
	)
	for i := range msgs {
		msgs[i].ResponseTime = nil
		t, ok := parseTimestamp(msgs[i].Timestamp)
		if !ok {
			continue
		}
		if hasPrev {
			msgs[i].ResponseTime = floatPtr(float64(t.Unix() - last))
		}
		last = t.Unix()
		hasPrev = true
	}
}

// DialogueAct classifies text by fixed precedence: question (sub-typed), then the
// catalog's phrase acts, then "answer" for the assistant, else "statement".
func (c *Catalog) DialogueAct(text, role string) string {
	lower := strings.ToLower(text)
	if strings.HasSuffix(lower, "?") {
		return "question_" + c.QuestionType(text)
	}
	if act := c.PhraseAct(lower); act != "" {
		return act
	}
	if role == RoleAssistant {
		return "answer"
	}
	return "statement"
}
