package dialogue

import (
	"math"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

// TurnState is the previous-turn context threaded through scoring.
type TurnState struct {
	Text        string
	Readability float64
	HasPrev     bool
}

// Score computes the full feature vector of one message and returns the state to pass
// when scoring the next message. It never fails: empty text scores zeros and neutral
// labels.
func (c *Catalog) Score(text string, wordCount int, prev TurnState) (FeatureVector, TurnState) {
	scores := c.ScoreCategories(text)
	entropy := Entropy(text)
	readability := Readability(text)

	fv := FeatureVector{
		Entropy:          entropy,
		Readability:      readability,
		LexicalDiversity: LexicalDiversity(text),
		Richness:         Richness(text),
		Categories:       scores,
		Structure:        structureFeatures(scores),
		CognitiveLoad:    cognitiveLoadFeatures(scores[CatCognitiveLoad], wordCount),
		Coherence:        c.coherenceFeatures(scores[CatReference], text, wordCount, prev),
		Affect:           c.affectFeatures(scores[CatAffect]),
		Repair:           repairFeatures(scores[CatRepair]),
		Knowledge:        knowledgeFeatures(scores[CatKnowledge]),
		Social:           socialFeatures(scores[CatSocial]),
		Argumentation:    argumentFeatures(scores[CatArgumentation]),
		Temporal:         temporalFeatures(scores[CatTemporal]),
		Coupling: CouplingFeatures{
			InformationEfficiency: informationEfficiency(entropy, wordCount),
			LexicalMirroring:      lexicalMirroring(prev.Text, text),
			RefusalMarkers:        scores[CatRefusal].Total,
		},
	}
	if prev.HasPrev {
		fv.Coupling.CognitiveAsymmetry = textprim.Round(math.Abs(readability-prev.Readability), 2)
	}
	return fv, TurnState{Text: text, Readability: readability, HasPrev: true}
}

func structureFeatures(scores map[string]CategoryScore) StructureFeatures {
	contra := scores[CatContradiction].Total
	elab := scores[CatElaboration].Total
	hedges := scores[CatHedge].Total
	conf := scores[CatConfidence].Total
	return StructureFeatures{
		Contradictions:     contra,
		Elaborations:       elab,
		ContradictionRatio: NewRatio(contra, elab),
		Hedges:             hedges,
		Confidence:         conf,
		EpistemicStance:    conf - hedges,
	}
}

// per100 is n per hundred words, 0 when there are no words.
func per100(n, wordCount int) float64 {
	if wordCount <= 0 {
		return 0
	}
	return textprim.Round(float64(n)/float64(wordCount)*100, 2)
}

func cognitiveLoadFeatures(s CategoryScore, wordCount int) CognitiveLoadFeatures {
	return CognitiveLoadFeatures{Total: s.Total, Density: per100(s.Total, wordCount)}
}

func (c *Catalog) coherenceFeatures(s CategoryScore, text string, wordCount int, prev TurnState) CoherenceFeatures {
	out := CoherenceFeatures{
		References:       s.Total,
		ReferenceDensity: per100(s.Total, wordCount),
	}
	if !prev.HasPrev {
		return out
	}
	prevWords := c.contentWords(prev.Text)
	if len(prevWords) == 0 {
		return out
	}
	shared := intersectCount(prevWords, c.contentWords(text))
	out.EntityContinuity = floatPtr(textprim.Round(float64(shared)/float64(len(prevWords)), 3))
	return out
}

func (c *Catalog) affectFeatures(s CategoryScore) AffectFeatures {
	out := AffectFeatures{Dominant: "neutral", Intensity: s.Total}
	best := 0
	for _, l := range c.Labels(CatAffect) {
		n := s.Count(l)
		if n > 0 {
			out.Diversity++
		}
		// Strict comparison keeps the earliest declared label on ties.
		if n > best {
			best = n
			out.Dominant = l
		}
	}
	return out
}

var repairPrecedence = []struct{ label, kind string }{
	{"self_correction", "self_repair"},
	{"clarification_request", "other_repair_request"},
	{"confirmation_check", "confirmation"},
	{"elaboration_request", "elaboration_request"},
}

func repairFeatures(s CategoryScore) RepairFeatures {
	out := RepairFeatures{Total: s.Total, Type: "none"}
	for _, p := range repairPrecedence {
		if s.Count(p.label) > 0 {
			out.Type = p.kind
			break
		}
	}
	return out
}

func knowledgeFeatures(s CategoryScore) KnowledgeFeatures {
	phase := "information_exchange"
	switch {
	case s.Count("hypothesis") > s.Count("synthesis"):
		phase = "hypothesis_generation"
	case s.Count("evidence") > 0:
		phase = "evidence_evaluation"
	case s.Count("synthesis") > 0:
		phase = "synthesis_integration"
	}
	return KnowledgeFeatures{Score: s.Total, Phase: phase}
}

func socialFeatures(s CategoryScore) SocialFeatures {
	rapport := 2*float64(s.Count("solidarity")) + 1.5*float64(s.Count("acknowledgment")) + float64(s.Count("empathy"))
	return SocialFeatures{Score: s.Total, Rapport: textprim.Round(rapport, 2)}
}

func argumentFeatures(s CategoryScore) ArgumentFeatures {
	out := ArgumentFeatures{
		HasClaim:    s.Count("claim") > 0,
		HasEvidence: s.Count("evidence_marker") > 0,
		HasWarrant:  s.Count("warrant") > 0,
	}
	switch {
	case out.HasClaim && out.HasEvidence && out.HasWarrant:
		out.Structure = "complete_argument"
	case out.HasClaim && out.HasEvidence:
		out.Structure = "claim_evidence"
	case out.HasClaim:
		out.Structure = "assertion_only"
	default:
		out.Structure = "no_explicit_argument"
	}
	for _, present := range []bool{out.HasClaim, out.HasEvidence, out.HasWarrant, s.Count("qualifier") > 0} {
		if present {
			out.Quality++
		}
	}
	return out
}

func temporalFeatures(s CategoryScore) TemporalFeatures {
	out := TemporalFeatures{Orientation: "present_focused", UrgencyLevel: "low"}
	switch r, p := s.Count("reflection"), s.Count("projection"); {
	case r > p:
		out.Orientation = "past_focused"
	case p > r:
		out.Orientation = "future_focused"
	}
	switch u := s.Count("urgency"); {
	case u > 2:
		out.UrgencyLevel = "high"
	case u > 0:
		out.UrgencyLevel = "medium"
	}
	return out
}

func informationEfficiency(entropy float64, wordCount int) float64 {
	if wordCount <= 0 {
		return 0
	}
	return textprim.Round(entropy/float64(wordCount), 4)
}

// lexicalMirroring is the share of the previous turn's long words reused by text.
func lexicalMirroring(prevText, text string) float64 {
	if prevText == "" || text == "" {
		return 0
	}
	prevWords := longWords(prevText)
	if len(prevWords) == 0 {
		return 0
	}
	return textprim.Round(float64(intersectCount(prevWords, longWords(text)))/float64(len(prevWords)), 4)
}
