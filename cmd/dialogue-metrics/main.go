package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue"
	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/provider"
	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/store"
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

	if cfg.Sentiment == sentimentOpenAI {
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.APIKey == "" {
			fmt.Fprintln(os.Stderr, "missing OPENAI_API_KEY (or pass -api-key) for -sentiment openai")
			os.Exit(2)
		}
	}

	log := setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := run(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "threads_analyzed=%d threads_skipped=%d threads_failed=%d files_written=%d bytes_written=%d out_dir=%s\n",
		res.Analyzed, res.Skipped, res.Failed, res.FilesWritten, res.BytesWritten, cfg.OutDir)
}

func setupLogging(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(log)
	return log
}

type runResult struct {
	Analyzed     int
	Skipped      int
	Failed       int
	FilesWritten int
	BytesWritten int64
}

func run(ctx context.Context, cfg Config, log *slog.Logger) (runResult, error) {
	if ctx == nil {
		return runResult{}, errors.New("run: ctx is nil")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	catalog, err := dialogue.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return runResult{}, err
	}

	tokens, err := textprim.NewTokenCounter(cfg.Tokenizer)
	if err != nil {
		log.Warn("tokenizer unavailable, using heuristic token counts", "tokenizer", cfg.Tokenizer, "err", err)
	}

	var scorer dialogue.SentimentScorer = dialogue.LexiconScorer{}
	if cfg.Sentiment == sentimentOpenAI {
		s, err := provider.NewOpenAISentiment(cfg.APIKey, cfg.Model)
		if err != nil {
			return runResult{}, err
		}
		scorer = s
	}

	analyzer, err := dialogue.NewAnalyzer(dialogue.Config{
		Catalog:   catalog,
		Tokens:    tokens,
		Sentiment: scorer,
		Convergence: dialogue.ConvergenceOptions{
			WindowSize:  cfg.WindowSize,
			MinMessages: cfg.MinConvergence,
			Stride:      cfg.Stride,
		},
		EditThreshold: cfg.EditThreshold,
		TopKeywords:   cfg.TopKeywords,
		Logger:        log,
	})
	if err != nil {
		return runResult{}, err
	}

	report, err := analyzer.AnalyzeArchive(ctx, cfg.InPath, dialogue.ReadOptions{ArrayField: cfg.ArrayField})
	if err != nil {
		return runResult{}, err
	}

	var res runResult
	for _, n := range report.Notes {
		switch n.Status {
		case dialogue.NoteAnalyzed:
			res.Analyzed++
		case dialogue.NoteSkipped:
			res.Skipped++
		case dialogue.NoteFailed:
			res.Failed++
		}
	}

	wr, err := dialogue.WriteReport(cfg.OutDir, report, dialogue.WriteOptions{Pretty: cfg.Pretty, Overwrite: cfg.Overwrite})
	if err != nil {
		return res, err
	}
	res.FilesWritten, res.BytesWritten = wr.FilesWritten, wr.BytesWritten
	log.Info("report written", "dir", cfg.OutDir, "files", wr.FilesWritten, "bytes", wr.BytesWritten)

	if cfg.DBPath != "" {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return res, err
		}
		defer db.Close()
		if err := db.SaveReport(ctx, report); err != nil {
			return res, fmt.Errorf("save report to %s: %w", cfg.DBPath, err)
		}
		log.Info("report stored", "db", cfg.DBPath, "threads", len(report.Threads))
	}
	return res, nil
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()

	// Avoid mutating the global FlagSet if called from tests.
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InPath, "in", cfg.InPath, "Path to conversations.json (OpenAI export)")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Directory to write the metrics report into")
	fs.StringVar(&cfg.ArrayField, "array-field", "", "If top-level JSON is an object, name of field containing conversations array (e.g. conversations)")
	fs.StringVar(&cfg.CatalogPath, "catalog", "", "Optional YAML feature catalog (default: built-in vocabularies)")
	fs.StringVar(&cfg.DBPath, "db", "", "Optional SQLite database to store threads, messages and act transitions in")
	fs.StringVar(&cfg.Sentiment, "sentiment", cfg.Sentiment, "Sentiment scorer: lexicon or openai")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model for -sentiment openai")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (default: OPENAI_API_KEY)")
	fs.StringVar(&cfg.Tokenizer, "tokenizer", cfg.Tokenizer, "tiktoken encoding for token counts, or \"heuristic\"")
	fs.IntVar(&cfg.WindowSize, "window-size", cfg.WindowSize, "Convergence window size in messages")
	fs.IntVar(&cfg.MinConvergence, "min-convergence", cfg.MinConvergence, "Minimum thread length for convergence windows")
	fs.IntVar(&cfg.Stride, "stride", cfg.Stride, "Messages between convergence evaluations")
	fs.Float64Var(&cfg.EditThreshold, "edit-threshold", cfg.EditThreshold, "Similarity below which a repeated assistant reply counts as an edit")
	fs.IntVar(&cfg.TopKeywords, "top-keywords", cfg.TopKeywords, "Keywords reported per thread")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print output JSON files")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "Overwrite existing output files")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExamples:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/dialogue-metrics -in docs/export/conversations.json -out docs/export/metrics -pretty")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/dialogue-metrics -tokenizer heuristic -db docs/export/metrics.db -overwrite")
		fmt.Fprintln(fs.Output(), "  OPENAI_API_KEY=... go run ./cmd/dialogue-metrics -sentiment openai -model gpt-5-mini")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// LOG_LEVEL applies only when -log-level was not given.
	logLevelSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "log-level" {
			logLevelSet = true
		}
	})
	if env := strings.TrimSpace(os.Getenv("LOG_LEVEL")); env != "" && !logLevelSet {
		cfg.LogLevel = env
	}

	cfg.InPath = filepath.Clean(cfg.InPath)
	cfg.OutDir = filepath.Clean(cfg.OutDir)
	return cfg, nil
}
