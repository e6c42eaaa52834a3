package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ZanzyTHEbar/texture-replacements/trdb/replacement"
)

// Catalog is a replacement database bound to a file, safe for concurrent
// use. Mutations take the write lock; lookups share the read lock.
type Catalog struct {
	path string

	mu sync.RWMutex
	db *replacement.Database
}

// Open loads the catalog stored at path. A missing file opens an empty
// catalog that is created on the first Save.
func Open(path string) (*Catalog, error) {
	db, err := ReadFileOrEmpty(path)
	if err != nil {
		return nil, err
	}
	return &Catalog{path: path, db: db}, nil
}

// NewCatalog wraps an in-memory database. path may be empty if the catalog
// is never saved.
func NewCatalog(path string, db *replacement.Database) *Catalog {
	if db == nil {
		db = replacement.New()
	}
	return &Catalog{path: path, db: db}
}

// Path returns the file the catalog is bound to.
func (c *Catalog) Path() string {
	return c.path
}

func (c *Catalog) GetReplacement(hash string) replacement.Texture {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db.GetReplacement(hash)
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db.Len()
}

// View runs fn with the read lock held. fn must not modify db or retain it.
func (c *Catalog) View(fn func(db *replacement.Database) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c.db)
}

// Update runs fn with the write lock held, for batches of mutations.
func (c *Catalog) Update(fn func(db *replacement.Database) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.db)
}

// Save writes the catalog to its file.
func (c *Catalog) Save() error {
	if c.path == "" {
		return fmt.Errorf("catalog has no file to save to")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return WriteFile(c.path, c.db)
}

// Reload replaces the in-memory database with the file's contents. On error
// the current contents are kept.
func (c *Catalog) Reload() error {
	db, err := ReadFileOrEmpty(c.path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.db = db
	c.mu.Unlock()
	return nil
}

// Watch reloads the catalog whenever its file changes, until ctx is done.
// Bursts of events within debounce are coalesced into one reload. onReload,
// if non-nil, is called after every reload attempt with its result.
func (c *Catalog) Watch(ctx context.Context, debounce time.Duration, onReload func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and WriteFile replace the file by rename,
	// which drops a watch placed on the file itself.
	target := filepath.Clean(c.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}
	slog.Info("Watching replacement database", "path", target)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			err := c.Reload()
			if err != nil {
				slog.Warn("Replacement database reload failed", "path", target, "error", err)
			} else {
				slog.Debug("Replacement database reloaded", "path", target, "textures", c.Len())
			}
			if onReload != nil {
				onReload(err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", "path", target, "error", err)
		}
	}
}
