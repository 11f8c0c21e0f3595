package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var allStages = []string{"split", "metrics", "schema"}

type Config struct {
	ConversationsPath string
	BaseDir           string
	ArrayField        string

	Tokenizer   string
	Sentiment   string
	Model       string
	CatalogPath string
	WithDB      bool

	FromStage string
	OnlyStage string

	Pretty    bool
	Overwrite bool
}

func (c Config) Validate() error {
	if c.ConversationsPath == "" {
		return errors.New("missing -conversations")
	}
	if c.BaseDir == "" {
		return errors.New("missing -base-dir")
	}
	if c.OnlyStage != "" && c.FromStage != "" {
		return errors.New("use only one of -only-stage or -from-stage")
	}
	for _, s := range []string{c.OnlyStage, c.FromStage} {
		if s != "" && !isStage(s) {
			return fmt.Errorf("unknown stage %q (want %s)", s, strings.Join(allStages, "|"))
		}
	}
	return nil
}

func isStage(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range allStages {
		if st == s {
			return true
		}
	}
	return false
}

func defaultConfig() Config {
	return Config{
		ConversationsPath: filepath.FromSlash("docs/export/conversations.json"),
		BaseDir:           filepath.FromSlash("docs/export"),
		Tokenizer:         "cl100k_base",
		Sentiment:         "lexicon",
		Model:             "gpt-5-mini",
	}
}
