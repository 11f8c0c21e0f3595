package dialogue

import (
	"math"
	"sort"
	"time"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

// DefaultTopKeywords is the number of keywords reported per thread.
const DefaultTopKeywords = 15

// ThreadSummary is the one-row reduction of a thread.
type ThreadSummary struct {
	ThreadID        string         `json:"thread_id"`
	Thread          string         `json:"thread"`
	Title           string         `json:"title"`
	Duration        string         `json:"duration"`
	DurationSeconds *float64       `json:"duration_seconds"`
	TotalMessages   int            `json:"total_messages"`
	UserTurns       int            `json:"user_turns"`
	AssistantTurns  int            `json:"assistant_turns"`
	RoleCounts      map[string]int `json:"role_counts"`
	AvgWords        float64        `json:"avg_words"`
	TotalTokens     int            `json:"total_tokens"`

	SentimentShift      float64  `json:"sentiment_shift"`
	AvgResponseTime     *float64 `json:"avg_response_time"`
	AvgEntropy          float64  `json:"avg_entropy"`
	AvgReadability      float64  `json:"avg_readability"`
	AvgLexicalDiversity float64  `json:"avg_lexical_diversity"`

	KeywordFlow KeywordFlow `json:"keyword_flow"`

	TotalEdits        int      `json:"total_edits"`
	AvgEditSimilarity *float64 `json:"avg_edit_similarity"`

	TotalElaborations   int     `json:"total_elaborations"`
	TotalContradictions int     `json:"total_contradictions"`
	ContradictionRatio  Ratio   `json:"contradiction_ratio"`
	AvgHedges           float64 `json:"avg_hedges"`
	AvgConfidence       float64 `json:"avg_confidence"`

	AvgResponseRatio   float64 `json:"avg_response_ratio"`
	AvgSemanticOverlap float64 `json:"avg_semantic_overlap"`
	ConvergenceTrend   string  `json:"convergence_trend"`

	AvgCognitiveLoad    float64  `json:"avg_cognitive_load"`
	AvgCoherence        *float64 `json:"avg_coherence"`
	DominantAffect      string   `json:"dominant_affect"`
	TotalRepairs        int      `json:"total_repairs"`
	SelfRepairRate      float64  `json:"self_repair_rate"`
	KnowledgePhaseFinal string   `json:"knowledge_phase_final"`
	AvgSocialPresence   float64  `json:"avg_social_presence"`
	AvgRapport          float64  `json:"avg_rapport"`
	CompleteArguments   int      `json:"complete_arguments"`
	UrgencyHighCount    int      `json:"urgency_high_count"`
	TemporalFocus       string   `json:"temporal_focus"`

	// Per-category totals and per-message means, keyed by category name.
	CategoryTotals map[string]int     `json:"category_totals"`
	CategoryMeans  map[string]float64 `json:"category_means"`
}

// KeywordFlow tracks content words shared by consecutive turns.
type KeywordFlow struct {
	FlowEdges      int      `json:"flow_edges"`
	AvgPersistence float64  `json:"avg_persistence"`
	TopKeywords    []string `json:"top_keywords"`
}

// SummaryInput is what Summarize reduces.
type SummaryInput struct {
	ThreadID    string
	Thread      string
	Title       string
	Messages    []Message
	Pairs       []TurnPair
	Convergence Convergence
	TopKeywords int
}

// Summarize reduces a fully scored thread.
func (c *Catalog) Summarize(in SummaryInput) ThreadSummary {
	msgs := in.Messages
	n := len(msgs)
	s := ThreadSummary{
		ThreadID:         in.ThreadID,
		Thread:           in.Thread,
		Title:            in.Title,
		TotalMessages:    n,
		RoleCounts:       make(map[string]int),
		ConvergenceTrend: in.Convergence.Verdict,
		CategoryTotals:   make(map[string]int),
		CategoryMeans:    make(map[string]float64),
		DominantAffect:   "neutral",
		TemporalFocus:    "present_focused",
	}
	if s.ConvergenceTrend == "" {
		s.ConvergenceTrend = InsufficientData
	}
	s.Duration, s.DurationSeconds = threadDuration(msgs)
	s.KeywordFlow = c.keywordFlow(msgs, in.TopKeywords)
	if n == 0 {
		s.ContradictionRatio = InfRatio
		s.KnowledgePhaseFinal = "unknown"
		return s
	}

	var words, hedges, conf, load, social, rapport float64
	var entropy, readability, lexdiv float64
	var rts, edits, coherence []float64
	selfCorrections := 0
	affects := make([]string, 0, n)
	orientations := make([]string, 0, n)
	sentiments := make([]string, 0, n)
	for _, m := range msgs {
		f := m.Features
		s.RoleCounts[m.Role]++
		words += float64(m.WordCount)
		s.TotalTokens += m.TokenCount
		if m.ResponseTime != nil {
			rts = append(rts, *m.ResponseTime)
		}
		entropy += f.Entropy
		readability += f.Readability
		lexdiv += f.LexicalDiversity
		s.TotalEdits += m.EditCount
		if m.EditSimilarity != nil {
			edits = append(edits, *m.EditSimilarity)
		}
		s.TotalElaborations += f.Structure.Elaborations
		s.TotalContradictions += f.Structure.Contradictions
		hedges += float64(f.Structure.Hedges)
		conf += float64(f.Structure.Confidence)
		load += f.CognitiveLoad.Density
		if f.Coherence.EntityContinuity != nil {
			coherence = append(coherence, *f.Coherence.EntityContinuity)
		}
		affects = append(affects, f.Affect.Dominant)
		orientations = append(orientations, f.Temporal.Orientation)
		sentiments = append(sentiments, m.Sentiment.Label)
		s.TotalRepairs += f.Repair.Total
		selfCorrections += f.Category(CatRepair).Count("self_correction")
		social += float64(f.Social.Score)
		rapport += f.Social.Rapport
		if f.Argumentation.Structure == "complete_argument" {
			s.CompleteArguments++
		}
		if f.Temporal.UrgencyLevel == "high" {
			s.UrgencyHighCount++
		}
		for name, cs := range f.Categories {
			s.CategoryTotals[name] += cs.Total
		}
	}
	nf := float64(n)
	s.UserTurns = s.RoleCounts[RoleUser]
	s.AssistantTurns = s.RoleCounts[RoleAssistant]
	s.AvgWords = textprim.Round(words/nf, 1)
	s.SentimentShift = sentimentShift(sentiments)
	if len(rts) > 0 {
		s.AvgResponseTime = floatPtr(textprim.Round(mean(rts), 1))
	}
	s.AvgEntropy = textprim.Round(entropy/nf, 2)
	s.AvgReadability = textprim.Round(readability/nf, 1)
	s.AvgLexicalDiversity = textprim.Round(lexdiv/nf, 3)
	if len(edits) > 0 {
		s.AvgEditSimilarity = floatPtr(textprim.Round(mean(edits), 3))
	}
	s.ContradictionRatio = NewRatio(s.TotalContradictions, s.TotalElaborations)
	s.AvgHedges = textprim.Round(hedges/nf, 1)
	s.AvgConfidence = textprim.Round(conf/nf, 1)
	if len(in.Pairs) > 0 {
		var ratio, overlap float64
		for _, p := range in.Pairs {
			ratio += p.ResponseRatio
			overlap += p.SemanticOverlap
		}
		s.AvgResponseRatio = textprim.Round(ratio/float64(len(in.Pairs)), 2)
		s.AvgSemanticOverlap = textprim.Round(overlap/float64(len(in.Pairs)), 3)
	}
	s.AvgCognitiveLoad = textprim.Round(load/nf, 2)
	if len(coherence) > 0 {
		s.AvgCoherence = floatPtr(textprim.Round(mean(coherence), 3))
	}
	s.DominantAffect = mode(affects)
	s.SelfRepairRate = textprim.Round(float64(selfCorrections)/nf, 3)
	s.KnowledgePhaseFinal = msgs[n-1].Features.Knowledge.Phase
	s.AvgSocialPresence = textprim.Round(social/nf, 2)
	s.AvgRapport = textprim.Round(rapport/nf, 2)
	s.TemporalFocus = mode(orientations)
	for name, total := range s.CategoryTotals {
		s.CategoryMeans[name] = textprim.Round(float64(total)/nf, 2)
	}
	return s
}

// threadDuration is max minus min over parseable timestamps.
func threadDuration(msgs []Message) (string, *float64) {
	var lo, hi time.Time
	found := false
	for _, m := range msgs {
		t, ok := parseTimestamp(m.Timestamp)
		if !ok {
			continue
		}
		if !found || t.Before(lo) {
			lo = t
		}
		if !found || t.After(hi) {
			hi = t
		}
		found = true
	}
	if !found {
		return "", nil
	}
	d := hi.Sub(lo)
	return formatDuration(d), floatPtr(d.Seconds())
}

// sentimentShift is the mean absolute step between consecutive sentiment ordinals.
func sentimentShift(labels []string) float64 {
	if len(labels) <= 1 {
		return 0
	}
	var sum float64
	for i := 1; i < len(labels); i++ {
		sum += math.Abs(float64(textprim.SentimentOrdinal(labels[i]) - textprim.SentimentOrdinal(labels[i-1])))
	}
	return textprim.Round(sum/float64(len(labels)-1), 3)
}

func (c *Catalog) keywordFlow(msgs []Message, topK int) KeywordFlow {
	if topK <= 0 {
		topK = DefaultTopKeywords
	}
	out := KeywordFlow{TopKeywords: []string{}}
	freq := make(map[string]int)
	var persistence []float64
	for i := 1; i < len(msgs); i++ {
		prev := c.contentWords(msgs[i-1].Content)
		cur := c.contentWords(msgs[i].Content)
		shared := intersectCount(prev, cur)
		out.FlowEdges += shared
		for w := range cur {
			freq[w]++
		}
		if len(prev) > 0 {
			persistence = append(persistence, float64(shared)/float64(len(prev)))
		}
	}
	out.AvgPersistence = textprim.Round(mean(persistence), 3)

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > topK {
		words = words[:topK]
	}
	out.TopKeywords = append(out.TopKeywords, words...)
	return out
}

// mode returns the most frequent value, the lexically smallest on ties.
func mode(values []string) string {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}
