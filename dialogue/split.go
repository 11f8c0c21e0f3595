package dialogue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/fileutils"
	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

// FlattenedThread is the per-conversation output of SplitArchive: the flattened turn
// sequence before any scoring.
type FlattenedThread struct {
	ConversationID string   `json:"conversation_id"`
	Title          string   `json:"title"`
	CreateTime     *float64 `json:"create_time,omitempty"`
	Messages       []Turn   `json:"messages"`
}

// Turn is the unscored part of a Message.
type Turn struct {
	Seq           int      `json:"seq"`
	Role          string   `json:"role"`
	Content       string   `json:"content"`
	Timestamp     string   `json:"timestamp,omitempty"`
	WordCount     int      `json:"word_count"`
	TokenCount    int      `json:"token_count"`
	SentenceCount int      `json:"sentence_count"`
	Model         string   `json:"model"`
	Parts         []string `json:"parts"`
}

// Turn returns the unscored fields of m.
func (m Message) Turn() Turn {
	return Turn{
		Seq:           m.Seq,
		Role:          m.Role,
		Content:       m.Content,
		Timestamp:     m.Timestamp,
		WordCount:     m.WordCount,
		TokenCount:    m.TokenCount,
		SentenceCount: m.SentenceCount,
		Model:         m.Model,
		Parts:         m.Parts,
	}
}

// SplitOptions controls SplitArchive.
type SplitOptions struct {
	ArrayField        string
	OverwriteExisting bool
	Pretty            bool
	Tokens            textprim.TokenCounter
}

// SplitResult contains basic stats from a split run.
type SplitResult struct {
	ThreadsWritten int
	BytesWritten   int64
}

// SplitArchive streams a conversations export and writes one flattened thread file per
// conversation into outputDir, named after the conversation id.
func SplitArchive(ctx context.Context, inputPath, outputDir string, opts SplitOptions) (SplitResult, error) {
	if ctx == nil {
		return SplitResult{}, errors.New("SplitArchive: ctx is nil")
	}
	if outputDir == "" {
		return SplitResult{}, errors.New("SplitArchive: outputDir is empty")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return SplitResult{}, fmt.Errorf("SplitArchive: mkdir outputDir: %w", err)
	}

	fl := Flattener{Tokens: opts.Tokens}
	seen := make(map[string]int)
	var res SplitResult
	_, err := ReadArchive(ctx, inputPath, ReadOptions{ArrayField: opts.ArrayField}, func(conv Conversation) error {
		msgs := fl.Flatten(conv)
		out := FlattenedThread{
			ConversationID: conv.ID,
			Title:          conv.Title,
			CreateTime:     conv.CreateTime,
			Messages:       make([]Turn, len(msgs)),
		}
		for i, m := range msgs {
			out.Messages[i] = m.Turn()
		}

		path := filepath.Join(outputDir, uniqueFileName(seen, conv.ID))
		n, err := fileutils.WriteJSONFileAtomic(path, out, opts.Pretty, opts.OverwriteExisting)
		if err != nil {
			return fmt.Errorf("SplitArchive: write output (id=%q): %w", conv.ID, err)
		}
		res.ThreadsWritten++
		res.BytesWritten += n
		return nil
	})
	if err != nil {
		return res, err
	}
	return res, nil
}
