package main

import (
	"errors"
	"path/filepath"
)

type Config struct {
	OutDir    string
	Overwrite bool
}

func (c Config) Validate() error {
	if c.OutDir == "" {
		return errors.New("missing -out")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		OutDir: filepath.FromSlash("docs/export/metrics/schema"),
	}
}
