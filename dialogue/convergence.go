package dialogue

import (
	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

// Convergence verdicts.
const (
	TrendDecreasing  = "decreasing"
	TrendStable      = "stable"
	InsufficientData = "insufficient_data"
)

// ConvergenceOptions configures the sliding-window detector.
type ConvergenceOptions struct {
	WindowSize  int
	MinMessages int
	// Stride is the distance between consecutive evaluation points.
	Stride int
}

// DefaultConvergenceOptions returns window 10, at least 20 messages, stride 1.
func DefaultConvergenceOptions() ConvergenceOptions {
	return ConvergenceOptions{WindowSize: 10, MinMessages: 20, Stride: 1}
}

// ConvergenceWindow is one evaluation of the window [WindowStart, MessageIndex].
type ConvergenceWindow struct {
	WindowStart        int      `json:"window_start"`
	MessageIndex       int      `json:"message_index"`
	AvgContradictions  float64  `json:"avg_contradictions_window"`
	AvgElaborations    float64  `json:"avg_elaborations_window"`
	ContradictionTrend string   `json:"contradiction_trend"`
	AvgResponseTime    *float64 `json:"avg_response_time_window"`
	SentimentStability *float64 `json:"sentiment_stability"`
	CognitiveLoad      float64  `json:"cognitive_load_window"`
	RepairFrequency    int      `json:"repair_frequency_window"`
}

// Convergence is the detector output for one thread. Verdict is the trend of the last
// window, or InsufficientData.
type Convergence struct {
	Verdict string              `json:"verdict"`
	Windows []ConvergenceWindow `json:"windows"`
}

// DetectConvergence evaluates trailing windows of opts.WindowSize messages. Windows are
// indexed by their exclusive end e = 2w, 2w+stride, ... <= n, so every evaluated window
// [e-w, e) has a full prior window [e-2w, e-w) to compare against. The trend is
// "decreasing" when the current mean contradiction count is below the prior one.
// Threads shorter than max(MinMessages, 2w) yield InsufficientData and no windows.
func DetectConvergence(msgs []Message, opts ConvergenceOptions) Convergence {
	def := DefaultConvergenceOptions()
	if opts.WindowSize <= 0 {
		opts.WindowSize = def.WindowSize
	}
	if opts.MinMessages <= 0 {
		opts.MinMessages = def.MinMessages
	}
	if opts.Stride <= 0 {
		opts.Stride = def.Stride
	}
	w := opts.WindowSize
	n := len(msgs)
	out := Convergence{Verdict: InsufficientData}
	if n < opts.MinMessages || n < 2*w {
		return out
	}

	for e := 2 * w; e <= n; e += opts.Stride {
		cur := msgs[e-w : e]
		prior := msgs[e-2*w : e-w]

		avgContra := meanOf(cur, func(m Message) float64 { return float64(m.Features.Structure.Contradictions) })
		priorContra := meanOf(prior, func(m Message) float64 { return float64(m.Features.Structure.Contradictions) })

		win := ConvergenceWindow{
			WindowStart:        e - w,
			MessageIndex:       e - 1,
			AvgContradictions:  textprim.Round(avgContra, 2),
			AvgElaborations:    textprim.Round(meanOf(cur, func(m Message) float64 { return float64(m.Features.Structure.Elaborations) }), 2),
			ContradictionTrend: TrendStable,
			CognitiveLoad:      textprim.Round(meanOf(cur, func(m Message) float64 { return m.Features.CognitiveLoad.Density }), 2),
		}
		if avgContra < priorContra {
			win.ContradictionTrend = TrendDecreasing
		}

		var rts []float64
		scores := make([]float64, 0, len(cur))
		for _, m := range cur {
			if m.ResponseTime != nil {
				rts = append(rts, *m.ResponseTime)
			}
			scores = append(scores, m.Sentiment.Score)
			win.RepairFrequency += m.Features.Repair.Total
		}
		if len(rts) > 0 {
			win.AvgResponseTime = floatPtr(textprim.Round(mean(rts), 1))
		}
		if v, ok := sampleVariance(scores); ok {
			win.SentimentStability = floatPtr(textprim.Round(1-v, 3))
		}
		out.Windows = append(out.Windows, win)
	}
	if len(out.Windows) > 0 {
		out.Verdict = out.Windows[len(out.Windows)-1].ContradictionTrend
	}
	return out
}

func meanOf(msgs []Message, f func(Message) float64) float64 {
	if len(msgs) == 0 {
		return 0
	}
	var sum float64
	for _, m := range msgs {
		sum += f(m)
	}
	return sum / float64(len(msgs))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleVariance uses n-1 in the denominator; undefined below two values.
func sampleVariance(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return ss / float64(len(xs)-1), true
}
