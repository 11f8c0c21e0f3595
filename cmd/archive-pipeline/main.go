package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
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

	for _, st := range plan(cfg) {
		if st.skip != "" {
			fmt.Fprintln(os.Stdout, "skip "+st.name+": "+st.skip)
			continue
		}
		if err := runGo(ctx, st.args...); err != nil {
			os.Exit(1)
		}
	}
}

type stage struct {
	name string
	args []string
	// skip, when set, is why the stage does not run.
	skip string
}

type layout struct {
	threadsDir string
	metricsDir string
	schemaDir  string
	dbPath     string
}

func outputLayout(base string) layout {
	base = filepath.Clean(base)
	return layout{
		threadsDir: filepath.Join(base, "threads"),
		metricsDir: filepath.Join(base, "metrics"),
		schemaDir:  filepath.Join(base, "metrics", "schema"),
		dbPath:     filepath.Join(base, "metrics.db"),
	}
}

// plan builds the go run invocations for the selected stages.
func plan(cfg Config) []stage {
	stages := allStages
	if cfg.OnlyStage != "" {
		stages = []string{strings.ToLower(strings.TrimSpace(cfg.OnlyStage))}
	} else if cfg.FromStage != "" {
		stages = stagesFrom(stages, cfg.FromStage)
	}

	l := outputLayout(cfg.BaseDir)
	conversations := filepath.Clean(cfg.ConversationsPath)
	common := func(args []string) []string {
		if cfg.Pretty {
			args = append(args, "-pretty")
		}
		if cfg.Overwrite {
			args = append(args, "-overwrite")
		}
		if cfg.ArrayField != "" {
			args = append(args, "-array-field", cfg.ArrayField)
		}
		return args
	}

	var out []stage
	for _, name := range stages {
		st := stage{name: name}
		switch name {
		case "split":
			// If threads already exist and we're not overwriting, skip.
			if !cfg.Overwrite && dirHasJSON(l.threadsDir) {
				st.skip = "threads already exist"
				break
			}
			st.args = common([]string{
				"run", "./cmd/archive-splitter",
				"-in", conversations,
				"-out", l.threadsDir,
				"-tokenizer", cfg.Tokenizer,
			})
		case "metrics":
			if !cfg.Overwrite && dirHasJSON(l.metricsDir) {
				st.skip = "metrics already exist"
				break
			}
			args := []string{
				"run", "./cmd/dialogue-metrics",
				"-in", conversations,
				"-out", l.metricsDir,
				"-tokenizer", cfg.Tokenizer,
				"-sentiment", cfg.Sentiment,
				"-model", cfg.Model,
			}
			if cfg.CatalogPath != "" {
				args = append(args, "-catalog", filepath.Clean(cfg.CatalogPath))
			}
			if cfg.WithDB {
				args = append(args, "-db", l.dbPath)
			}
			st.args = common(args)
		case "schema":
			st.args = []string{"run", "./cmd/metrics-schema", "-out", l.schemaDir}
			if cfg.Overwrite {
				st.args = append(st.args, "-overwrite")
			}
		}
		out = append(out, st)
	}
	return out
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.ConversationsPath, "conversations", cfg.ConversationsPath, "Path to conversations.json")
	fs.StringVar(&cfg.BaseDir, "base-dir", cfg.BaseDir, "Base output directory (threads/, metrics/, metrics.db)")
	fs.StringVar(&cfg.ArrayField, "array-field", "", "If top-level JSON is an object, name of field containing conversations array")

	fs.StringVar(&cfg.Tokenizer, "tokenizer", cfg.Tokenizer, "tiktoken encoding for token counts, or \"heuristic\"")
	fs.StringVar(&cfg.Sentiment, "sentiment", cfg.Sentiment, "Sentiment scorer: lexicon or openai (uses OPENAI_API_KEY)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model for -sentiment openai")
	fs.StringVar(&cfg.CatalogPath, "catalog", "", "Optional YAML feature catalog")
	fs.BoolVar(&cfg.WithDB, "db", false, "Also store results in <base-dir>/metrics.db")

	fs.StringVar(&cfg.FromStage, "from-stage", "", "Start at stage: "+strings.Join(allStages, "|"))
	fs.StringVar(&cfg.OnlyStage, "only-stage", "", "Run only one stage: "+strings.Join(allStages, "|"))

	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print JSON outputs where supported")
	fs.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "Overwrite existing outputs (disables skip-if-present)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.CatalogPath != "" {
		cfg.CatalogPath = filepath.Clean(cfg.CatalogPath)
	}
	return cfg, nil
}

func runGo(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "command failed:", "go "+strings.Join(args, " "))
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		return err
	}
	fmt.Fprintln(os.Stdout, "ok:", "go "+strings.Join(args, " "), "(", time.Since(start).Round(time.Millisecond).String()+")")
	return nil
}

func stagesFrom(stages []string, from string) []string {
	from = strings.ToLower(strings.TrimSpace(from))
	for i, s := range stages {
		if s == from {
			return stages[i:]
		}
	}
	return stages
}

func dirHasJSON(dir string) bool {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			return true
		}
	}
	return false
}
