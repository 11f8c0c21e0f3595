package textprim

import (
	"math"
	"strings"
	"sync"

	"github.com/jonreiter/govader"
)

// Sentiment labels.
const (
	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
)

// Sentiment is a polarity/subjectivity judgement of one text.
type Sentiment struct {
	Label        string  `json:"label"`
	Score        float64 `json:"score"`
	Subjectivity float64 `json:"subjectivity"`
}

// NewSentiment rounds polarity and subjectivity to three decimals and derives the label
// with a +/-0.05 neutral band.
func NewSentiment(polarity, subjectivity float64) Sentiment {
	label := SentimentNeutral
	switch {
	case polarity > 0.05:
		label = SentimentPositive
	case polarity < -0.05:
		label = SentimentNegative
	}
	return Sentiment{
		Label:        label,
		Score:        Round(polarity, 3),
		Subjectivity: Round(subjectivity, 3),
	}
}

// SentimentOrdinal maps a label to -1/0/1.
func SentimentOrdinal(label string) int {
	switch label {
	case SentimentPositive:
		return 1
	case SentimentNegative:
		return -1
	default:
		return 0
	}
}

var vader = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// LexiconSentiment scores texts with the VADER lexicon and rules. Polarity is the
// compound score; subjectivity is the non-neutral share of the text. Blank texts score
// 0/0.
type LexiconSentiment struct{}

func (LexiconSentiment) Analyze(text string) Sentiment {
	if strings.TrimSpace(text) == "" {
		return NewSentiment(0, 0)
	}
	scores := vader().PolarityScores(text)
	pol, subj := scores.Compound, 1-scores.Neutral
	if math.IsNaN(pol) || math.IsNaN(subj) {
		return NewSentiment(0, 0)
	}
	return NewSentiment(clamp(pol, -1, 1), clamp(subj, 0, 1))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
