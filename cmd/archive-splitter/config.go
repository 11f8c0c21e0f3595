package main

import (
	"errors"
	"path/filepath"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

type Config struct {
	InputPath  string
	OutputDir  string
	ArrayField string
	Tokenizer  string
	Pretty     bool
	Overwrite  bool
}

func (c Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("missing -in")
	}
	if c.OutputDir == "" {
		return errors.New("missing -out")
	}
	if c.Tokenizer == "" {
		return errors.New("missing -tokenizer")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		InputPath: filepath.FromSlash("docs/export/conversations.json"),
		OutputDir: filepath.FromSlash("docs/export/threads"),
		Tokenizer: textprim.DefaultEncoding,
	}
}
