// Package dialogue turns tree-shaped conversation exports into per-message discourse
// feature tables, thread summaries and act-transition / feature-correlation matrices.
package dialogue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/invopop/jsonschema"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

// Well-known roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleUnknown   = "unknown"
)

// Message is one dialogue turn plus everything derived for it.
type Message struct {
	Seq           int      `json:"seq"`
	Role          string   `json:"role"`
	Content       string   `json:"content"`
	Timestamp     string   `json:"timestamp"`
	WordCount     int      `json:"word_count"`
	TokenCount    int      `json:"token_count"`
	SentenceCount int      `json:"sentence_count"`
	Model         string   `json:"model"`
	Parts         []string `json:"parts"`

	ResponseTime   *float64 `json:"response_time"`
	DialogueAct    string   `json:"dialogue_act"`
	EditCount      int      `json:"edit_count"`
	EditSimilarity *float64 `json:"edit_similarity"`

	Sentiment textprim.Sentiment `json:"sentiment"`
	// Overlap is set only for assistant turns that follow another turn.
	Overlap  *textprim.Overlap `json:"overlap"`
	Features FeatureVector     `json:"features"`
}

// CategoryScore holds per-label match counts for one catalog category.
type CategoryScore struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// Count returns the count for label, 0 when absent.
func (s CategoryScore) Count(label string) int {
	return s.Counts[label]
}

// FeatureVector is the scored feature record of one message.
type FeatureVector struct {
	Entropy          float64         `json:"entropy"`
	Readability      float64         `json:"readability"`
	LexicalDiversity float64         `json:"lexical_diversity"`
	Richness         LexicalRichness `json:"lexical_richness"`

	// Categories carries the raw counts of every catalog category, keyed by name.
	Categories map[string]CategoryScore `json:"categories"`

	Structure     StructureFeatures     `json:"structure"`
	CognitiveLoad CognitiveLoadFeatures `json:"cognitive_load"`
	Coherence     CoherenceFeatures     `json:"coherence"`
	Affect        AffectFeatures        `json:"affect"`
	Repair        RepairFeatures        `json:"repair"`
	Knowledge     KnowledgeFeatures     `json:"knowledge"`
	Social        SocialFeatures        `json:"social"`
	Argumentation ArgumentFeatures      `json:"argumentation"`
	Temporal      TemporalFeatures      `json:"temporal"`
	Coupling      CouplingFeatures      `json:"coupling"`
}

// Category returns the score for name, zero when the catalog has no such category.
func (f FeatureVector) Category(name string) CategoryScore {
	return f.Categories[name]
}

type LexicalRichness struct {
	TTR          float64 `json:"ttr"`
	UniquePer100 float64 `json:"unique_per_100"`
}

// StructureFeatures covers contradiction/elaboration markers and epistemic stance.
type StructureFeatures struct {
	Contradictions     int   `json:"contradictions"`
	Elaborations       int   `json:"elaborations"`
	ContradictionRatio Ratio `json:"contradiction_ratio"`
	Hedges             int   `json:"hedges"`
	Confidence         int   `json:"confidence_markers"`
	EpistemicStance    int   `json:"epistemic_stance"`
}

type CognitiveLoadFeatures struct {
	Total   int     `json:"total"`
	Density float64 `json:"density"`
}

type CoherenceFeatures struct {
	References       int      `json:"references"`
	ReferenceDensity float64  `json:"reference_density"`
	EntityContinuity *float64 `json:"entity_continuity"`
}

type AffectFeatures struct {
	Dominant  string `json:"dominant_affect"`
	Intensity int    `json:"affective_intensity"`
	Diversity int    `json:"affective_diversity"`
}

type RepairFeatures struct {
	Total int    `json:"total_repair_markers"`
	Type  string `json:"repair_type"`
}

type KnowledgeFeatures struct {
	Score int    `json:"knowledge_construction_score"`
	Phase string `json:"construction_phase"`
}

type SocialFeatures struct {
	Score   int     `json:"social_presence_score"`
	Rapport float64 `json:"rapport_index"`
}

type ArgumentFeatures struct {
	HasClaim    bool   `json:"has_claim"`
	HasEvidence bool   `json:"has_evidence"`
	HasWarrant  bool   `json:"has_warrant"`
	Structure   string `json:"argument_structure"`
	Quality     int    `json:"argument_quality"`
}

type TemporalFeatures struct {
	Orientation  string `json:"temporal_orientation"`
	UrgencyLevel string `json:"urgency_level"`
}

// CouplingFeatures depend on the previous turn.
type CouplingFeatures struct {
	InformationEfficiency float64 `json:"information_efficiency"`
	LexicalMirroring      float64 `json:"lexical_mirroring"`
	CognitiveAsymmetry    float64 `json:"cognitive_asymmetry"`
	RefusalMarkers        int     `json:"refusal_markers"`
}

// Ratio is a quotient whose zero-denominator value is +Inf. +Inf encodes as "inf".
type Ratio float64

// InfRatio is the zero-denominator sentinel.
var InfRatio = Ratio(math.Inf(1))

// NewRatio returns num/den rounded to two decimals, or InfRatio when den is 0.
func NewRatio(num, den int) Ratio {
	if den == 0 {
		return InfRatio
	}
	return Ratio(textprim.Round(float64(num)/float64(den), 2))
}

func (r Ratio) IsInf() bool { return math.IsInf(float64(r), 1) }

func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.IsInf() {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(float64(r))
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte(`"inf"`)) {
		*r = InfRatio
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("Ratio: %w", err)
	}
	*r = Ratio(f)
	return nil
}

func (Ratio) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "number", Minimum: json.Number("0")},
			{Type: "string", Enum: []any{"inf"}},
		},
	}
}

// Coefficient is a correlation cell; NaN (undefined) encodes as null.
type Coefficient float64

func (c Coefficient) MarshalJSON() ([]byte, error) {
	f := float64(c)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (c *Coefficient) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*c = Coefficient(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("Coefficient: %w", err)
	}
	*c = Coefficient(f)
	return nil
}

func (Coefficient) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "number", Minimum: json.Number("-1"), Maximum: json.Number("1")},
			{Type: "null"},
		},
	}
}

func floatPtr(v float64) *float64 { return &v }
