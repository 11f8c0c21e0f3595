package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue"
	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/provider"
	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

const (
	sentimentLexicon = "lexicon"
	sentimentOpenAI  = "openai"
)

type Config struct {
	InPath      string
	OutDir      string
	ArrayField  string
	CatalogPath string
	DBPath      string

	Sentiment string
	Model     string
	APIKey    string
	Tokenizer string

	WindowSize     int
	MinConvergence int
	Stride         int
	EditThreshold  float64
	TopKeywords    int

	Pretty    bool
	Overwrite bool
	LogLevel  string
}

func (c Config) Validate() error {
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	if c.OutDir == "" {
		return errors.New("missing -out")
	}
	switch c.Sentiment {
	case sentimentLexicon, sentimentOpenAI:
	default:
		return fmt.Errorf("-sentiment must be %q or %q, got %q", sentimentLexicon, sentimentOpenAI, c.Sentiment)
	}
	if c.Sentiment == sentimentOpenAI && c.Model == "" {
		return errors.New("missing -model")
	}
	if c.Tokenizer == "" {
		return errors.New("missing -tokenizer")
	}
	if c.WindowSize <= 0 {
		return errors.New("window-size must be > 0")
	}
	if c.MinConvergence <= 0 {
		return errors.New("min-convergence must be > 0")
	}
	if c.Stride <= 0 {
		return errors.New("stride must be > 0")
	}
	if c.EditThreshold <= 0 || c.EditThreshold > 1 {
		return errors.New("edit-threshold must be in (0, 1]")
	}
	if c.TopKeywords <= 0 {
		return errors.New("top-keywords must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown -log-level %q", c.LogLevel)
	}
	return nil
}

func defaultConfig() Config {
	conv := dialogue.DefaultConvergenceOptions()
	return Config{
		InPath:         filepath.FromSlash("docs/export/conversations.json"),
		OutDir:         filepath.FromSlash("docs/export/metrics"),
		Sentiment:      sentimentLexicon,
		Model:          provider.DefaultSentimentModel,
		Tokenizer:      textprim.DefaultEncoding,
		WindowSize:     conv.WindowSize,
		MinConvergence: conv.MinMessages,
		Stride:         conv.Stride,
		EditThreshold:  dialogue.DefaultEditThreshold,
		TopKeywords:    dialogue.DefaultTopKeywords,
		LogLevel:       "info",
	}
}
