package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue"
	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, err := textprim.NewTokenCounter(cfg.Tokenizer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokenizer %s unavailable, using heuristic counts: %v\n", cfg.Tokenizer, err)
	}

	res, err := dialogue.SplitArchive(ctx, cfg.InputPath, cfg.OutputDir, dialogue.SplitOptions{
		ArrayField:        cfg.ArrayField,
		OverwriteExisting: cfg.Overwrite,
		Pretty:            cfg.Pretty,
		Tokens:            tokens,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "threads_written=%d bytes_written=%d out_dir=%s\n", res.ThreadsWritten, res.BytesWritten, cfg.OutputDir)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()

	// Avoid mutating the global FlagSet if called from tests.
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InputPath, "in", cfg.InputPath, "Path to conversations.json (OpenAI export)")
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Directory to write flattened per-thread JSON files into")
	fs.StringVar(&cfg.Tokenizer, "tokenizer", cfg.Tokenizer, "tiktoken encoding for token counts, or \"heuristic\"")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print each output JSON file (more CPU/memory per thread)")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "Overwrite existing output files")
	fs.StringVar(&cfg.ArrayField, "array-field", "", "If top-level JSON is an object, name of field containing conversations array (e.g. conversations)")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExamples:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/archive-splitter -pretty -overwrite")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/archive-splitter -in docs/export/conversations.json -out docs/export/threads -tokenizer heuristic")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.InputPath = filepath.Clean(cfg.InputPath)
	cfg.OutputDir = filepath.Clean(cfg.OutputDir)
	return cfg, nil
}
