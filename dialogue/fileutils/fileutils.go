package fileutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrExists is returned by the writers when overwrite is off and the target exists.
var ErrExists = errors.New("output file already exists")

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SanitizeFilenameComponent keeps letters, digits, '-', '_' and '.', replaces anything
// else with '_' and strips leading dots and separators.
func SanitizeFilenameComponent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "._-")
}

// MarshalJSON encodes v, indented when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// WriteJSONFileAtomic marshals v and writes it to path via a same-directory temp file.
// It returns the number of payload bytes written.
func WriteJSONFileAtomic(path string, v any, pretty, overwrite bool) (int64, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return 0, fmt.Errorf("%w: %s", ErrExists, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("stat output: %w", err)
		}
	}
	b, err := MarshalJSON(v, pretty)
	if err != nil {
		return 0, fmt.Errorf("marshal json: %w", err)
	}
	if err := WriteFileAtomicSameDir(path, b, 0o644); err != nil {
		return 0, fmt.Errorf("write json: %w", err)
	}
	return int64(len(b)), nil
}

// WriteFileAtomicSameDir writes data plus a trailing newline to path through a temp
// file in the same directory, then renames it into place.
func WriteFileAtomicSameDir(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp_metrics_*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write([]byte("\n")); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
