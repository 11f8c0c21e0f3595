package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

// ErrNoMessages is returned for a conversation that flattens to zero messages.
var ErrNoMessages = errors.New("no messages found")

// SentimentScorer scores one message text.
type SentimentScorer interface {
	Sentiment(ctx context.Context, text string) (textprim.Sentiment, error)
}

// LexiconScorer is the offline SentimentScorer.
type LexiconScorer struct{}

func (LexiconScorer) Sentiment(_ context.Context, text string) (textprim.Sentiment, error) {
	return textprim.LexiconSentiment{}.Analyze(text), nil
}

// OverlapFunc scores a candidate text against a reference text.
type OverlapFunc func(reference, candidate string) textprim.Overlap

// Config wires an Analyzer. Only Catalog is required.
type Config struct {
	Catalog       *Catalog
	Tokens        textprim.TokenCounter
	Sentiment     SentimentScorer
	Overlap       OverlapFunc
	Similarity    textprim.SimilarityFunc
	Convergence   ConvergenceOptions
	EditThreshold float64
	TopKeywords   int
	Logger        *slog.Logger
}

// Analyzer runs the per-thread pipeline: flatten, sequence, score, then reduce.
type Analyzer struct {
	cfg       Config
	flattener Flattener
	sequencer Sequencer
	log       *slog.Logger
}

func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("NewAnalyzer: catalog is nil")
	}
	if cfg.Tokens == nil {
		cfg.Tokens = textprim.HeuristicCounter{}
	}
	if cfg.Sentiment == nil {
		cfg.Sentiment = LexiconScorer{}
	}
	if cfg.Overlap == nil {
		cfg.Overlap = textprim.TranslationOverlap
	}
	if cfg.Similarity == nil {
		cfg.Similarity = textprim.MatchingBlocksRatio
	}
	if cfg.EditThreshold <= 0 {
		cfg.EditThreshold = DefaultEditThreshold
	}
	if cfg.TopKeywords <= 0 {
		cfg.TopKeywords = DefaultTopKeywords
	}
	if cfg.Convergence == (ConvergenceOptions{}) {
		cfg.Convergence = DefaultConvergenceOptions()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{
		cfg:       cfg,
		flattener: Flattener{Tokens: cfg.Tokens},
		sequencer: Sequencer{Catalog: cfg.Catalog, Similarity: cfg.Similarity, EditThreshold: cfg.EditThreshold},
		log:       log,
	}, nil
}

// Catalog returns the analyzer's catalog.
func (a *Analyzer) Catalog() *Catalog { return a.cfg.Catalog }

// ThreadResult is everything derived for one conversation.
type ThreadResult struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Key         string            `json:"key"`
	Messages    []Message         `json:"messages"`
	Pairs       []TurnPair        `json:"pairs"`
	Convergence Convergence       `json:"convergence"`
	Summary     ThreadSummary     `json:"summary"`
	Transitions TransitionMatrix  `json:"-"`
	Correlation CorrelationMatrix `json:"-"`
}

// AnalyzeThread runs the full pipeline over one conversation. key names the thread
// in summaries and reports.
func (a *Analyzer) AnalyzeThread(ctx context.Context, conv Conversation, key string) (ThreadResult, error) {
	if ctx == nil {
		return ThreadResult{}, errors.New("AnalyzeThread: ctx is nil")
	}
	cat := a.cfg.Catalog
	msgs := a.flattener.Flatten(conv)
	if len(msgs) == 0 {
		return ThreadResult{}, ErrNoMessages
	}
	a.sequencer.Sequence(msgs)

	var state TurnState
	for i := range msgs {
		if err := ctx.Err(); err != nil {
			return ThreadResult{}, err
		}
		m := &msgs[i]
		sent, err := a.cfg.Sentiment.Sentiment(ctx, m.Content)
		if err != nil {
			return ThreadResult{}, fmt.Errorf("AnalyzeThread: sentiment of message %d: %w", m.Seq, err)
		}
		m.Sentiment = sent
		m.Features, state = cat.Score(m.Content, m.WordCount, state)
		if m.Role == RoleAssistant && i > 0 {
			ov := a.cfg.Overlap(msgs[i-1].Content, m.Content)
			m.Overlap = &ov
		}
	}

	res := ThreadResult{
		ID:       conv.ID,
		Title:    conv.Title,
		Key:      key,
		Messages: msgs,
		Pairs:    cat.AnalyzePairs(msgs),
	}
	res.Convergence = DetectConvergence(msgs, a.cfg.Convergence)
	res.Summary = cat.Summarize(SummaryInput{
		ThreadID:    conv.ID,
		Thread:      key,
		Title:       conv.Title,
		Messages:    msgs,
		Pairs:       res.Pairs,
		Convergence: res.Convergence,
		TopKeywords: a.cfg.TopKeywords,
	})
	res.Transitions = TransitionsOf(msgs)
	table := cat.NewFeatureTable()
	table.AddMessages(cat, msgs)
	res.Correlation = Correlate(*table)
	return res, nil
}

// Note statuses.
const (
	NoteAnalyzed = "analyzed"
	NoteSkipped  = "skipped"
	NoteFailed   = "failed"
)

// ProcessNote records the outcome for one conversation.
type ProcessNote struct {
	Thread   string `json:"thread"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Messages int    `json:"messages"`
	Detail   string `json:"detail,omitempty"`
}

// Report is the outcome of a whole run.
type Report struct {
	Threads           []ThreadResult    `json:"threads"`
	GlobalTransitions TransitionMatrix  `json:"global_transitions"`
	GlobalCorrelation CorrelationMatrix `json:"global_correlation"`
	Notes             []ProcessNote     `json:"notes"`
}

// Summaries returns the thread summaries in processing order.
func (r Report) Summaries() []ThreadSummary {
	out := make([]ThreadSummary, len(r.Threads))
	for i, t := range r.Threads {
		out[i] = t.Summary
	}
	return out
}

// Run accumulates threads one at a time; global matrices are built by Report once
// every thread has been added.
type Run struct {
	a           *Analyzer
	transitions *TransitionCounter
	table       *FeatureTable
	keys        map[string]struct{}
	threads     []ThreadResult
	notes       []ProcessNote
}

func (a *Analyzer) NewRun() *Run {
	return &Run{
		a:           a,
		transitions: NewTransitionCounter(),
		table:       a.cfg.Catalog.NewFeatureTable(),
		keys:        make(map[string]struct{}),
	}
}

// Add analyzes one conversation. A failing thread is recorded as a note and does not
// stop the run; only context cancellation is returned.
func (r *Run) Add(ctx context.Context, conv Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := r.uniqueKey(SafeTitle(conv.Title))
	log := r.a.log.With("thread", key, "conversation_id", conv.ID)

	res, err := r.analyzeIsolated(ctx, conv, key)
	switch {
	case errors.Is(err, ErrNoMessages):
		log.Warn("skipping thread", "reason", err)
		r.notes = append(r.notes, ProcessNote{Thread: key, Title: conv.Title, Status: NoteSkipped, Detail: err.Error()})
		return nil
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Error("thread failed", "err", err)
		r.notes = append(r.notes, ProcessNote{Thread: key, Title: conv.Title, Status: NoteFailed, Detail: err.Error()})
		return nil
	}

	r.transitions.AddMessages(res.Messages)
	r.table.AddMessages(r.a.cfg.Catalog, res.Messages)
	r.threads = append(r.threads, res)
	r.notes = append(r.notes, ProcessNote{Thread: key, Title: conv.Title, Status: NoteAnalyzed, Messages: len(res.Messages)})
	log.Info("thread analyzed", "messages", len(res.Messages), "convergence", res.Convergence.Verdict)
	return nil
}

func (r *Run) analyzeIsolated(ctx context.Context, conv Conversation, key string) (res ThreadResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("AnalyzeThread: panic: %v", p)
		}
	}()
	return r.a.AnalyzeThread(ctx, conv, key)
}

func (r *Run) uniqueKey(base string) string {
	key := base
	for n := 2; ; n++ {
		if _, taken := r.keys[key]; !taken {
			break
		}
		key = fmt.Sprintf("%s-%d", base, n)
	}
	r.keys[key] = struct{}{}
	return key
}

// Report builds the global matrices and returns the accumulated results.
func (r *Run) Report() Report {
	return Report{
		Threads:           r.threads,
		GlobalTransitions: r.transitions.Matrix(),
		GlobalCorrelation: Correlate(*r.table),
		Notes:             r.notes,
	}
}

// AnalyzeArchive streams the export at path through a new Run.
func (a *Analyzer) AnalyzeArchive(ctx context.Context, path string, opts ReadOptions) (Report, error) {
	run := a.NewRun()
	n, err := ReadArchive(ctx, path, opts, func(conv Conversation) error {
		return run.Add(ctx, conv)
	})
	if err != nil {
		return Report{}, err
	}
	a.log.Info("archive read", "conversations", n)
	return run.Report(), nil
}

const maxSafeTitle = 31

// SafeTitle replaces characters that are unsafe in sheet and file names and caps the
// length.
func SafeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	var b strings.Builder
	for _, r := range title {
		switch r {
		case '\\', '/', '*', '?', ':', '[', ']':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if utf8.RuneCountInString(out) > maxSafeTitle {
		out = string([]rune(out)[:maxSafeTitle])
	}
	return out
}
