package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue"
	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/fileutils"
	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/provider"
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

	n, err := writeSchemas(cfg.OutDir, cfg.Overwrite)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "schemas_written=%d out_dir=%s\n", n, cfg.OutDir)
}

type schemaFile struct {
	name     string
	generate func(title string) ([]byte, error)
}

// One schema per report file kind.
var schemaFiles = []schemaFile{
	{"thread_summary", provider.Schema[[]dialogue.ThreadSummary]},
	{"thread", provider.Schema[dialogue.ThreadResult]},
	{"process_notes", provider.Schema[[]dialogue.ProcessNote]},
	{"act_transitions", provider.Schema[dialogue.TransitionFile]},
	{"correlation", provider.Schema[dialogue.CorrelationMatrix]},
	{"thread_matrices", provider.Schema[dialogue.ThreadMatrices]},
	{"flattened_thread", provider.Schema[dialogue.FlattenedThread]},
}

func writeSchemas(dir string, overwrite bool) (int, error) {
	if dir == "" {
		return 0, errors.New("writeSchemas: dir is empty")
	}
	written := 0
	for _, sf := range schemaFiles {
		path := filepath.Join(dir, sf.name+".schema.json")
		if !overwrite && fileutils.FileExists(path) {
			return written, fmt.Errorf("%w: %s", fileutils.ErrExists, path)
		}
		b, err := sf.generate(sf.name)
		if err != nil {
			return written, err
		}
		if err := fileutils.WriteFileAtomicSameDir(path, b, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written++
	}
	return written, nil
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()

	// Avoid mutating the global FlagSet if called from tests.
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Directory to write JSON Schema files into")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "Overwrite existing schema files")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExamples:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/metrics-schema -out docs/export/metrics/schema -overwrite")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.OutDir = filepath.Clean(cfg.OutDir)
	return cfg, nil
}
