// Package audit checks a replacement database against the pack on disk and
// against its own ambiguities: files that are missing, hashes that collapse
// to key 0, records the index can no longer reach, and files shared by
// several records.
package audit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/ZanzyTHEbar/texture-replacements/trdb/indexing"
	"github.com/ZanzyTHEbar/texture-replacements/trdb/pathindex"
	"github.com/ZanzyTHEbar/texture-replacements/trdb/replacement"
)

// Options controls an audit run.
type Options struct {
	// Root is the directory relative paths are resolved against.
	Root string
	// Workers bounds the number of concurrent file checks. Zero means 8.
	Workers int
	// SkipFiles disables the on-disk existence checks.
	SkipFiles bool
}

// Finding points at one record of the database.
type Finding struct {
	Position int
	Hash     string
	Path     string
	Detail   string
}

// Report is the result of an audit. Indexed counts the records that carry a
// primary hash; IndexErrors holds inconsistencies found in the path index
// built for the run.
type Report struct {
	Textures       int
	Indexed        uint64
	MissingFiles   []Finding
	ZeroKeys       []Finding
	Orphans        []Finding
	DuplicatePaths []pathindex.Entry
	LoadCounts     map[replacement.Load]uint64
	IndexErrors    []error
	Duration       time.Duration
}

// Clean reports whether the audit found nothing to fix.
func (r *Report) Clean() bool {
	return len(r.MissingFiles) == 0 && len(r.ZeroKeys) == 0 &&
		len(r.Orphans) == 0 && len(r.DuplicatePaths) == 0 && len(r.IndexErrors) == 0
}

type fileCheck struct {
	pos  int
	hash string
	path string
}

// Run audits db. db is only read before Run starts its workers, so callers
// sharing it need to hold their lock for the duration of the call only.
func Run(ctx context.Context, db *replacement.Database, opts Options) (*Report, error) {
	start := time.Now()
	report := &Report{
		Textures:   db.Len(),
		LoadCounts: make(map[replacement.Load]uint64),
	}

	var checks []fileCheck
	for i, texture := range db.Textures {
		if texture.Hashes.RT64 != "" && replacement.StringToHash(texture.Hashes.RT64) == 0 {
			report.ZeroKeys = append(report.ZeroKeys, Finding{
				Position: i,
				Hash:     texture.Hashes.RT64,
				Path:     texture.Path,
				Detail:   "hash parses to key 0",
			})
		}
		if texture.Path != "" {
			checks = append(checks, fileCheck{pos: i, hash: texture.Hashes.RT64, path: texture.Path})
		}
	}

	for _, pos := range db.Orphans() {
		texture := db.Textures[pos]
		detail := "shadowed by a later record with the same key"
		if texture.IsEmpty() {
			detail = "no primary hash"
		}
		report.Orphans = append(report.Orphans, Finding{Position: pos, Hash: texture.Hashes.RT64, Path: texture.Path, Detail: detail})
	}

	paths := pathindex.Build(db.Textures)
	report.DuplicatePaths = paths.Duplicates()
	report.IndexErrors = paths.Validate()
	stats := paths.GetStats()
	slog.Debug("Path index stats", "paths", stats.TotalPaths, "insertions", stats.Insertions)

	bitmaps := indexing.BuildPolicyBitmaps(db.Textures)
	report.Indexed = bitmaps.Total()
	for load := range bitmaps.Load {
		report.LoadCounts[load] = bitmaps.Count(load)
	}

	if !opts.SkipFiles {
		missing, err := checkFiles(ctx, checks, opts)
		if err != nil {
			return nil, err
		}
		report.MissingFiles = missing
	}

	report.Duration = time.Since(start)
	slog.Info("Audit completed",
		"textures", report.Textures,
		"missing", len(report.MissingFiles),
		"zero_keys", len(report.ZeroKeys),
		"orphans", len(report.Orphans),
		"duplicate_paths", len(report.DuplicatePaths),
		"duration", report.Duration)
	return report, nil
}

func checkFiles(ctx context.Context, checks []fileCheck, opts Options) ([]Finding, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}

	var mu sync.Mutex
	var missing []Finding

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	for _, check := range checks {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			resolved := check.path
			if !filepath.IsAbs(resolved) {
				resolved = filepath.Join(opts.Root, filepath.FromSlash(resolved))
			}

			info, err := os.Stat(resolved)
			var detail string
			switch {
			case errors.Is(err, fs.ErrNotExist):
				detail = "file does not exist"
			case err != nil:
				detail = err.Error()
			case info.IsDir():
				detail = "path is a directory"
			default:
				return nil
			}

			mu.Lock()
			missing = append(missing, Finding{Position: check.pos, Hash: check.hash, Path: check.path, Detail: detail})
			mu.Unlock()
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("audit interrupted: %w", err)
	}

	sort.Slice(missing, func(i, j int) bool { return missing[i].Position < missing[j].Position })
	return missing, nil
}
