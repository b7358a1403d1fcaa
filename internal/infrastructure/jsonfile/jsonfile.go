// Package jsonfile loads and atomically saves the JSON documents the
// routines service owns (routines, sources and settings).
//
// Save writes to a temporary file in the same directory and renames it
// over the target, so readers never observe a partially written document.
// Files are created with mode 0600 and parent directories with 0750.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600
)

// ErrCorrupt is returned when a file exists but does not hold valid JSON.
var ErrCorrupt = errors.New("jsonfile: corrupt document")

// Load decodes path into v.
//
// Returns:
//   - found: false when the file does not exist (v is left untouched)
//   - error: ErrCorrupt for unparsable content, or an I/O error
func Load(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("%w: %s: %w", ErrCorrupt, filepath.Base(path), err)
	}
	return true, nil
}

// Save encodes v as indented JSON and atomically replaces path.
func Save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if err := os.Chmod(path, filePermissions); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	return nil
}
