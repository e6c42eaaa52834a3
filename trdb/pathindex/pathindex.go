// Package pathindex indexes replacement records by the file path they point
// to, so tools can answer "which hashes use this file" and "what lives under
// this directory" without scanning the whole database.
package pathindex

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/armon/go-radix"

	"github.com/ZanzyTHEbar/texture-replacements/trdb/replacement"
)

// Entry lists the database positions whose texture points at Path.
type Entry struct {
	Path      string
	Positions []int
}

// Stats tracks usage counters for the path index
type Stats struct {
	TotalPaths    int64
	PathLookups   int64
	PrefixLookups int64
	Insertions    int64
}

// PathIndex is a patricia tree from normalized replacement path to the
// records that use it. Lookups are O(k) in the length of the path.
type PathIndex struct {
	tree  *radix.Tree
	mu    sync.RWMutex
	stats Stats
}

// New creates an empty path index
func New() *PathIndex {
	return &PathIndex{tree: radix.New()}
}

// Build indexes every texture with a non-empty path, keyed by its position
// in textures.
func Build(textures []replacement.Texture) *PathIndex {
	idx := New()
	for i, texture := range textures {
		if texture.Path == "" {
			continue
		}
		idx.Insert(texture.Path, i)
	}
	slog.Debug("Path index built",
		"textures", len(textures),
		"paths", idx.Size())
	return idx
}

// Insert records that the texture at position pos uses path.
func (idx *PathIndex) Insert(path string, pos int) {
	key := normalizePath(path)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if value, found := idx.tree.Get(key); found {
		entry := value.(*Entry)
		entry.Positions = append(entry.Positions, pos)
	} else {
		idx.tree.Insert(key, &Entry{Path: key, Positions: []int{pos}})
		idx.stats.TotalPaths++
	}
	idx.stats.Insertions++
}

// Lookup returns a copy of the entry for path.
func (idx *PathIndex) Lookup(path string) (Entry, bool) {
	key := normalizePath(path)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.stats.PathLookups++
	value, found := idx.tree.Get(key)
	if !found {
		slog.Debug("Path lookup miss", "path", key)
		return Entry{}, false
	}
	return copyEntry(value.(*Entry)), true
}

// PrefixLookup returns copies of all entries whose path starts with prefix,
// in lexical path order.
func (idx *PathIndex) PrefixLookup(prefix string) []Entry {
	// A trailing separator restricts the walk to paths inside that directory.
	key := ""
	if prefix != "" {
		key = normalizePath(prefix)
		if strings.HasSuffix(prefix, "/") || strings.HasSuffix(prefix, "\\") {
			key += "/"
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.stats.PrefixLookups++
	var results []Entry
	idx.tree.WalkPrefix(key, func(_ string, value interface{}) bool {
		results = append(results, copyEntry(value.(*Entry)))
		return false
	})

	slog.Debug("Prefix lookup completed",
		"prefix", key,
		"results_count", len(results))
	return results
}

// Duplicates returns the entries used by more than one record.
func (idx *PathIndex) Duplicates() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var dups []Entry
	idx.tree.Walk(func(_ string, value interface{}) bool {
		entry := value.(*Entry)
		if len(entry.Positions) > 1 {
			dups = append(dups, copyEntry(entry))
		}
		return false
	})
	return dups
}

// Size returns the number of distinct paths in the index
func (idx *PathIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// GetStats returns a copy of the current statistics
func (idx *PathIndex) GetStats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.stats
}

// Validate checks the tree against its own bookkeeping.
func (idx *PathIndex) Validate() []error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var errs []error
	count := 0
	idx.tree.Walk(func(key string, value interface{}) bool {
		count++
		entry, ok := value.(*Entry)
		if !ok {
			errs = append(errs, fmt.Errorf("invalid_entry_type: %s", key))
			return false
		}
		if entry.Path != key {
			errs = append(errs, fmt.Errorf("key_mismatch: entry %s stored under %s", entry.Path, key))
		}
		if len(entry.Positions) == 0 {
			errs = append(errs, fmt.Errorf("empty_entry: %s has no positions", key))
		}
		return false
	})

	if idx.stats.TotalPaths != int64(count) {
		errs = append(errs, fmt.Errorf("stats_mismatch: %d paths counted, %d tracked", count, idx.stats.TotalPaths))
	}
	if len(errs) > 0 {
		slog.Warn("Path index validation found issues", "error_count", len(errs))
	}
	return errs
}

func copyEntry(e *Entry) Entry {
	return Entry{Path: e.Path, Positions: append([]int(nil), e.Positions...)}
}

// normalizePath ensures consistent path formatting for the index
func normalizePath(path string) string {
	// Replacement packs are authored on Windows as often as not.
	normalized := strings.ReplaceAll(path, "\\", "/")
	normalized = filepath.ToSlash(filepath.Clean(normalized))

	if len(normalized) > 1 && strings.HasSuffix(normalized, "/") {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}
