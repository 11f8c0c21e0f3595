package dialogue

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog_default.yaml
var defaultCatalogYAML []byte

// ErrInvalidCatalog is returned when a catalog document is malformed or lacks a
// category or label the derived features depend on.
var ErrInvalidCatalog = errors.New("invalid feature catalog")

// Category names the derived features are computed from.
const (
	CatContradiction = "contradiction"
	CatElaboration   = "elaboration"
	CatHedge         = "hedge"
	CatConfidence    = "confidence"
	CatCognitiveLoad = "cognitive_load"
	CatReference     = "reference"
	CatAffect        = "affect"
	CatRepair        = "repair"
	CatKnowledge     = "knowledge"
	CatSocial        = "social"
	CatArgumentation = "argumentation"
	CatTemporal      = "temporal"
	CatRefusal       = "refusal"
)

var requiredLabels = map[string][]string{
	CatContradiction: nil,
	CatElaboration:   nil,
	CatHedge:         nil,
	CatConfidence:    nil,
	CatCognitiveLoad: nil,
	CatReference:     nil,
	CatAffect:        nil,
	CatRepair:        {"self_correction", "clarification_request", "confirmation_check", "elaboration_request"},
	CatKnowledge:     {"hypothesis", "evidence", "synthesis"},
	CatSocial:        {"acknowledgment", "empathy", "solidarity"},
	CatArgumentation: {"claim", "evidence_marker", "warrant", "qualifier"},
	CatTemporal:      {"urgency", "reflection", "projection"},
	CatRefusal:       nil,
}

// CatalogSpec is the YAML form of a catalog.
type CatalogSpec struct {
	Stopwords       []string          `yaml:"stopwords"`
	Categories      []CategorySpec    `yaml:"categories"`
	QuestionTypes   []LabelSpec       `yaml:"question_types"`
	QuestionOpeners []QuestionOpener  `yaml:"question_openers"`
	QuestionDefault string            `yaml:"question_default"`
	DialogueActs    []DialogueActSpec `yaml:"dialogue_acts"`
}

type CategorySpec struct {
	Name   string      `yaml:"name"`
	Labels []LabelSpec `yaml:"labels"`
}

// LabelSpec defines one sub-label by literal terms or by a raw pattern.
type LabelSpec struct {
	Name    string   `yaml:"name"`
	Terms   []string `yaml:"terms"`
	Pattern string   `yaml:"pattern"`
}

type QuestionOpener struct {
	Prefix string `yaml:"prefix"`
	Type   string `yaml:"type"`
}

type DialogueActSpec struct {
	Act     string   `yaml:"act"`
	Phrases []string `yaml:"phrases"`
}

// Catalog is an immutable set of compiled scoring categories and act vocabularies.
// It is safe for concurrent use.
type Catalog struct {
	categories      []category
	stopwords       map[string]struct{}
	questionTypes   []label
	questionOpeners []QuestionOpener
	questionDefault string
	acts            []DialogueActSpec
}

type category struct {
	name   string
	labels []label
}

type label struct {
	name string
	re   *regexp.Regexp
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a catalog document from path; an empty path yields the default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadCatalog: read: %w", err)
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes and compiles a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var spec CatalogSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidCatalog, err)
	}
	return NewCatalog(spec)
}

// NewCatalog compiles spec.
func NewCatalog(spec CatalogSpec) (*Catalog, error) {
	c := &Catalog{
		stopwords:       make(map[string]struct{}, len(spec.Stopwords)),
		questionOpeners: spec.QuestionOpeners,
		questionDefault: spec.QuestionDefault,
		acts:            spec.DialogueActs,
	}
	if c.questionDefault == "" {
		c.questionDefault = "other"
	}
	for _, w := range spec.Stopwords {
		c.stopwords[strings.ToLower(w)] = struct{}{}
	}

	seen := make(map[string]bool, len(spec.Categories))
	for _, cs := range spec.Categories {
		if cs.Name == "" {
			return nil, fmt.Errorf("%w: category without name", ErrInvalidCatalog)
		}
		if seen[cs.Name] {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidCatalog, cs.Name)
		}
		seen[cs.Name] = true
		if len(cs.Labels) == 0 {
			return nil, fmt.Errorf("%w: category %q has no labels", ErrInvalidCatalog, cs.Name)
		}
		cat := category{name: cs.Name}
		labelSeen := make(map[string]bool, len(cs.Labels))
		for _, ls := range cs.Labels {
			if labelSeen[ls.Name] {
				return nil, fmt.Errorf("%w: duplicate label %q in %q", ErrInvalidCatalog, ls.Name, cs.Name)
			}
			labelSeen[ls.Name] = true
			l, err := compileLabel(ls)
			if err != nil {
				return nil, fmt.Errorf("%w: category %q: %v", ErrInvalidCatalog, cs.Name, err)
			}
			cat.labels = append(cat.labels, l)
		}
		c.categories = append(c.categories, cat)
	}

	for name, labels := range requiredLabels {
		cat, ok := c.category(name)
		if !ok {
			return nil, fmt.Errorf("%w: missing category %q", ErrInvalidCatalog, name)
		}
		for _, want := range labels {
			if !cat.hasLabel(want) {
				return nil, fmt.Errorf("%w: category %q missing label %q", ErrInvalidCatalog, name, want)
			}
		}
	}

	for _, qs := range spec.QuestionTypes {
		l, err := compileLabel(qs)
		if err != nil {
			return nil, fmt.Errorf("%w: question type: %v", ErrInvalidCatalog, err)
		}
		c.questionTypes = append(c.questionTypes, l)
	}
	for i, a := range c.acts {
		if a.Act == "" {
			return nil, fmt.Errorf("%w: dialogue act %d has no name", ErrInvalidCatalog, i)
		}
	}
	return c, nil
}

func compileLabel(ls LabelSpec) (label, error) {
	if ls.Name == "" {
		return label{}, errors.New("label without name")
	}
	var expr string
	switch {
	case ls.Pattern != "" && len(ls.Terms) > 0:
		return label{}, fmt.Errorf("label %q sets both terms and pattern", ls.Name)
	case ls.Pattern != "":
		expr = "(?i)" + ls.Pattern
	case len(ls.Terms) > 0:
		quoted := make([]string, 0, len(ls.Terms))
		for _, t := range ls.Terms {
			if t = strings.TrimSpace(t); t != "" {
				quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(t)))
			}
		}
		if len(quoted) == 0 {
			return label{}, fmt.Errorf("label %q has only empty terms", ls.Name)
		}
		expr = `(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`
	default:
		return label{}, fmt.Errorf("label %q has neither terms nor pattern", ls.Name)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return label{}, fmt.Errorf("label %q: %v", ls.Name, err)
	}
	return label{name: ls.Name, re: re}, nil
}

func (c *Catalog) category(name string) (category, bool) {
	for _, cat := range c.categories {
		if cat.name == name {
			return cat, true
		}
	}
	return category{}, false
}

func (cat category) hasLabel(name string) bool {
	for _, l := range cat.labels {
		if l.name == name {
			return true
		}
	}
	return false
}

// CategoryNames returns category names in declaration order.
func (c *Catalog) CategoryNames() []string {
	out := make([]string, len(c.categories))
	for i, cat := range c.categories {
		out[i] = cat.name
	}
	return out
}

// Labels returns the labels of a category in declaration order.
func (c *Catalog) Labels(categoryName string) []string {
	cat, ok := c.category(categoryName)
	if !ok {
		return nil
	}
	out := make([]string, len(cat.labels))
	for i, l := range cat.labels {
		out[i] = l.name
	}
	return out
}

// IsStopword reports whether the lowercase word w is a stopword.
func (c *Catalog) IsStopword(w string) bool {
	_, ok := c.stopwords[w]
	return ok
}

// ScoreCategories counts non-overlapping matches of every label against text.
func (c *Catalog) ScoreCategories(text string) map[string]CategoryScore {
	lower := strings.ToLower(text)
	out := make(map[string]CategoryScore, len(c.categories))
	for _, cat := range c.categories {
		s := CategoryScore{Counts: make(map[string]int, len(cat.labels))}
		for _, l := range cat.labels {
			n := len(l.re.FindAllStringIndex(lower, -1))
			s.Counts[l.name] = n
			s.Total += n
		}
		out[cat.name] = s
	}
	return out
}

// QuestionType classifies a question. It returns "" when text does not end in "?".
func (c *Catalog) QuestionType(text string) string {
	if !strings.HasSuffix(strings.TrimSpace(text), "?") {
		return ""
	}
	lower := strings.ToLower(text)
	for _, q := range c.questionTypes {
		if q.re.MatchString(lower) {
			return q.name
		}
	}
	for _, o := range c.questionOpeners {
		if strings.HasPrefix(lower, o.Prefix) {
			return o.Type
		}
	}
	return c.questionDefault
}

// PhraseAct returns the first dialogue act whose phrase occurs in lower, or "".
func (c *Catalog) PhraseAct(lower string) string {
	for _, a := range c.acts {
		for _, p := range a.Phrases {
			if p != "" && strings.Contains(lower, p) {
				return a.Act
			}
		}
	}
	return ""
}
