// Package store owns everything around a replacement database that touches
// the outside world: reading and writing database documents, snapshots, a
// locked Catalog for concurrent callers, and reloading when the document
// changes on disk.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/ZanzyTHEbar/texture-replacements/trdb/replacement"
)

// Parse decodes a database document. Comments and trailing commas are
// stripped first so hand-edited files load.
func Parse(data []byte) (*replacement.Database, error) {
	db, err := replacement.Decode(jsonc.ToJSON(data))
	if err != nil {
		return nil, fmt.Errorf("parsing replacement database: %w", err)
	}
	return db, nil
}

// ReadFile loads the database document at path.
func ReadFile(path string) (*replacement.Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	db, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// ReadFileOrEmpty is ReadFile, except that a missing file yields an empty
// database.
func ReadFileOrEmpty(path string) (*replacement.Database, error) {
	db, err := ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return replacement.New(), nil
	}
	return db, err
}

// WriteFile saves db to path atomically: the document is written to a
// temporary file in the same directory and renamed over path.
func WriteFile(path string, db *replacement.Database) error {
	data, err := replacement.Encode(db)
	if err != nil {
		return fmt.Errorf("encoding replacement database: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
