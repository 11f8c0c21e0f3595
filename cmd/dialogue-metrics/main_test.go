package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/store"
)

func TestParseFlags_Defaults(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("dialogue-metrics", flag.ContinueOnError)
	cfg, err := parseFlags(fs, nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.InPath == "" || cfg.OutDir == "" {
		t.Fatalf("expected default paths, got in=%q out=%q", cfg.InPath, cfg.OutDir)
	}
	if cfg.Sentiment != sentimentLexicon {
		t.Fatalf("Sentiment=%q, want %q", cfg.Sentiment, sentimentLexicon)
	}
	if cfg.WindowSize != 10 || cfg.MinConvergence != 20 || cfg.Stride != 1 {
		t.Fatalf("convergence=%d/%d/%d, want 10/20/1", cfg.WindowSize, cfg.MinConvergence, cfg.Stride)
	}
	if cfg.EditThreshold != 0.9 {
		t.Fatalf("EditThreshold=%v, want 0.9", cfg.EditThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestParseFlags_Overrides(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("dialogue-metrics", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{
		"-in", "a/b/c.json",
		"-out", "x/y",
		"-array-field", "conversations",
		"-db", "m.db",
		"-sentiment", "openai",
		"-model", "gpt-x",
		"-tokenizer", "heuristic",
		"-window-size", "5",
		"-min-convergence", "12",
		"-stride", "2",
		"-edit-threshold", "0.8",
		"-top-keywords", "7",
		"-pretty",
		"-overwrite",
		"-log-level", "debug",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.InPath != "a/b/c.json" || cfg.OutDir != "x/y" {
		t.Fatalf("paths=%q/%q", cfg.InPath, cfg.OutDir)
	}
	if cfg.ArrayField != "conversations" || cfg.DBPath != "m.db" {
		t.Fatalf("ArrayField=%q DBPath=%q", cfg.ArrayField, cfg.DBPath)
	}
	if cfg.Sentiment != sentimentOpenAI || cfg.Model != "gpt-x" || cfg.Tokenizer != "heuristic" {
		t.Fatalf("sentiment=%q model=%q tokenizer=%q", cfg.Sentiment, cfg.Model, cfg.Tokenizer)
	}
	if cfg.WindowSize != 5 || cfg.MinConvergence != 12 || cfg.Stride != 2 {
		t.Fatalf("convergence=%d/%d/%d", cfg.WindowSize, cfg.MinConvergence, cfg.Stride)
	}
	if cfg.EditThreshold != 0.8 || cfg.TopKeywords != 7 {
		t.Fatalf("EditThreshold=%v TopKeywords=%d", cfg.EditThreshold, cfg.TopKeywords)
	}
	if !cfg.Pretty || !cfg.Overwrite || cfg.LogLevel != "debug" {
		t.Fatalf("Pretty=%v Overwrite=%v LogLevel=%q", cfg.Pretty, cfg.Overwrite, cfg.LogLevel)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("expected error for empty config")
	}
	bad := []func(*Config){
		func(c *Config) { c.Sentiment = "vader" },
		func(c *Config) { c.WindowSize = 0 },
		func(c *Config) { c.Stride = 0 },
		func(c *Config) { c.MinConvergence = 0 },
		func(c *Config) { c.EditThreshold = 1.5 },
		func(c *Config) { c.TopKeywords = 0 },
		func(c *Config) { c.LogLevel = "loud" },
		func(c *Config) { c.Tokenizer = "" },
	}
	for i, mutate := range bad {
		cfg := defaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

const sampleArchive = `{"conversations":[
{"id":"c1","title":"Retries","mapping":{
 "r":{"parent":null,"message":null,"children":["u"]},
 "u":{"parent":"r","message":{"author":{"role":"user"},"create_time":1700000000,"content":{"parts":["Why do retries fail?"]}},"children":["a"]},
 "a":{"parent":"u","message":{"author":{"role":"assistant"},"create_time":1700000004,"metadata":{"model_slug":"gpt-4o"},"content":{"parts":["Retries fail because the token expired."]}},"children":[]}
}},
{"id":"c2","title":"Empty","mapping":{}}
]}`

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "conversations.json")
	if err := os.WriteFile(in, []byte(sampleArchive), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	cfg := defaultConfig()
	cfg.InPath = in
	cfg.OutDir = filepath.Join(dir, "metrics")
	cfg.DBPath = filepath.Join(dir, "metrics.db")
	cfg.Tokenizer = "heuristic"

	res, err := run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Analyzed != 1 || res.Skipped != 1 || res.Failed != 0 {
		t.Fatalf("result=%+v, want 1 analyzed 1 skipped", res)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutDir, "threads", "Retries.json")); err != nil {
		t.Fatalf("thread file: %v", err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer db.Close()
	n, err := db.CountRows(context.Background(), "messages")
	if err != nil || n != 2 {
		t.Fatalf("messages=%d err=%v, want 2", n, err)
	}

	// Re-running without -overwrite refuses to clobber the report.
	if _, err := run(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error on second run without overwrite")
	}
	cfg.Overwrite = true
	if _, err := run(context.Background(), cfg, nil); err != nil {
		t.Fatalf("run with overwrite: %v", err)
	}
}
