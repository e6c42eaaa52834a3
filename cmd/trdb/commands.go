package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/ZanzyTHEbar/texture-replacements/trdb/audit"
	"github.com/ZanzyTHEbar/texture-replacements/trdb/indexing"
	"github.com/ZanzyTHEbar/texture-replacements/trdb/pathindex"
	"github.com/ZanzyTHEbar/texture-replacements/trdb/replacement"
	"github.com/ZanzyTHEbar/texture-replacements/trdb/store"
)

func newFlagSet(e *env, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("trdb "+name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// textureFlags binds the flags shared by add and fix.
type textureFlags struct {
	hash, path, rice, load, life string
}

func (f *textureFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.hash, "hash", "", "primary (rt64) hash")
	fs.StringVar(&f.path, "path", "", "replacement file path")
	fs.StringVar(&f.rice, "rice", "", "legacy Rice hash")
	fs.StringVar(&f.load, "load", "", "load policy: preload, stream, async or stall")
	fs.StringVar(&f.life, "life", "", "life policy: permanent, pool or age")
}

// apply overlays the flags that were set on base.
func (f *textureFlags) apply(fs *pflag.FlagSet, base replacement.Texture) (replacement.Texture, error) {
	out := base
	if fs.Changed("hash") {
		out.Hashes.RT64 = f.hash
	}
	if fs.Changed("path") {
		out.Path = f.path
	}
	if fs.Changed("rice") {
		out.Hashes.Rice = f.rice
	}
	if fs.Changed("load") {
		load, ok := replacement.ParseLoad(f.load)
		if !ok {
			return out, fmt.Errorf("unknown load policy %q", f.load)
		}
		out.Load = load
	}
	if fs.Changed("life") {
		life, ok := replacement.ParseLife(f.life)
		if !ok {
			return out, fmt.Errorf("unknown life policy %q", f.life)
		}
		out.Life = life
	}
	return out, nil
}

func openCatalog(e *env) (*store.Catalog, error) {
	c, err := store.Open(e.cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("path", c.Path()).Int("textures", c.Len()).Msg("opened replacement database")
	return c, nil
}

func runGet(e *env, args []string) error {
	fs := newFlagSet(e, "get")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("get takes exactly one hash")
	}

	c, err := openCatalog(e)
	if err != nil {
		return err
	}
	texture := c.GetReplacement(fs.Arg(0))
	if texture.IsEmpty() {
		return &exitError{code: 1, err: fmt.Errorf("no replacement for %s", fs.Arg(0))}
	}

	out, err := json.MarshalIndent(texture, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, string(out))
	return nil
}

func runAdd(e *env, args []string) error {
	var flags textureFlags
	fs := newFlagSet(e, "add")
	flags.bind(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if flags.hash == "" || flags.path == "" {
		return fmt.Errorf("add requires --hash and --path")
	}

	c, err := openCatalog(e)
	if err != nil {
		return err
	}

	// Updating keeps whatever the existing record had for unset flags.
	var texture replacement.Texture
	err = c.Update(func(db *replacement.Database) error {
		var applyErr error
		texture, applyErr = flags.apply(fs, db.GetReplacement(flags.hash))
		if applyErr != nil {
			return applyErr
		}
		db.AddReplacement(texture)
		return nil
	})
	if err != nil {
		return err
	}
	if err := c.Save(); err != nil {
		return err
	}

	e.log.Info().Str("hash", texture.Hashes.RT64).Str("path", texture.Path).Msg("replacement saved")
	return nil
}

func runFix(e *env, args []string) error {
	var flags textureFlags
	fs := newFlagSet(e, "fix")
	flags.bind(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || flags.hash == "" {
		return fmt.Errorf("fix requires the old hash and --hash")
	}
	oldHash := fs.Arg(0)

	c, err := openCatalog(e)
	if err != nil {
		return err
	}

	var texture replacement.Texture
	err = c.Update(func(db *replacement.Database) error {
		existing, ok := db.Lookup(oldHash)
		if !ok || existing.IsEmpty() {
			return &exitError{code: 1, err: fmt.Errorf("no replacement for %s", oldHash)}
		}
		var applyErr error
		texture, applyErr = flags.apply(fs, existing)
		if applyErr != nil {
			return applyErr
		}
		db.FixReplacement(oldHash, texture)
		return nil
	})
	if err != nil {
		return err
	}
	if err := c.Save(); err != nil {
		return err
	}

	e.log.Info().Str("old_hash", oldHash).Str("hash", texture.Hashes.RT64).Msg("replacement rekeyed")
	return nil
}

func runList(e *env, args []string) error {
	var prefix, path, load, life string
	fs := newFlagSet(e, "list")
	fs.StringVar(&prefix, "prefix", "", "only paths starting with this prefix (end with / for a directory)")
	fs.StringVar(&path, "path", "", "only records using exactly this file")
	fs.StringVar(&load, "load", "", "only this load policy")
	fs.StringVar(&life, "life", "", "only this life policy")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var loadFilter *replacement.Load
	if load != "" {
		v, ok := replacement.ParseLoad(load)
		if !ok {
			return fmt.Errorf("unknown load policy %q", load)
		}
		loadFilter = &v
	}
	var lifeFilter *replacement.Life
	if life != "" {
		v, ok := replacement.ParseLife(life)
		if !ok {
			return fmt.Errorf("unknown life policy %q", life)
		}
		lifeFilter = &v
	}

	c, err := openCatalog(e)
	if err != nil {
		return err
	}

	return c.View(func(db *replacement.Database) error {
		textures := indexing.Filter(db, indexing.BuildPolicyBitmaps(db.Textures), loadFilter, lifeFilter)
		if prefix != "" || path != "" {
			paths := pathindex.Build(textures)
			var positions []int
			if path != "" {
				if entry, ok := paths.Lookup(path); ok {
					positions = entry.Positions
				}
			} else {
				for _, entry := range paths.PrefixLookup(prefix) {
					positions = append(positions, entry.Positions...)
				}
			}
			sort.Ints(positions)

			inPrefix := make([]replacement.Texture, 0, len(positions))
			for _, pos := range positions {
				inPrefix = append(inPrefix, textures[pos])
			}
			textures = inPrefix
		}

		w := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RT64\tRICE\tLOAD\tLIFE\tPATH")
		for _, t := range textures {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Hashes.RT64, t.Hashes.Rice, t.Load, t.Life, t.Path)
		}
		return w.Flush()
	})
}

func runAudit(e *env, args []string) error {
	var root string
	var workers int
	var skipFiles bool
	fs := newFlagSet(e, "audit")
	fs.StringVar(&root, "root", e.cfg.Audit.PackRoot, "directory replacement paths are relative to")
	fs.IntVar(&workers, "workers", e.cfg.Audit.Workers, "concurrent file checks")
	fs.BoolVar(&skipFiles, "skip-files", false, "only check the database itself")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := openCatalog(e)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var report *audit.Report
	err = c.View(func(db *replacement.Database) error {
		var runErr error
		report, runErr = audit.Run(ctx, db, audit.Options{Root: root, Workers: workers, SkipFiles: skipFiles})
		return runErr
	})
	if err != nil {
		return err
	}

	printFindings(e, "missing file", report.MissingFiles)
	printFindings(e, "zero key", report.ZeroKeys)
	printFindings(e, "orphan", report.Orphans)
	for _, dup := range report.DuplicatePaths {
		fmt.Fprintf(e.stdout, "shared path: %s used by records %v\n", dup.Path, dup.Positions)
	}
	for _, indexErr := range report.IndexErrors {
		fmt.Fprintf(e.stdout, "path index: %v\n", indexErr)
	}
	fmt.Fprintf(e.stdout, "%d textures checked (%d indexed) in %s\n", report.Textures, report.Indexed, report.Duration)

	if !report.Clean() {
		return &exitError{code: 1}
	}
	return nil
}

func printFindings(e *env, kind string, findings []audit.Finding) {
	for _, f := range findings {
		fmt.Fprintf(e.stdout, "%s: #%d hash=%q path=%q (%s)\n", kind, f.Position, f.Hash, f.Path, f.Detail)
	}
}

func runHash(e *env, args []string) error {
	var bits int
	fs := newFlagSet(e, "hash")
	fs.IntVar(&bits, "bits", 64, "hash width: 32 or 64")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("hash takes exactly one number")
	}
	if bits != 32 && bits != 64 {
		return fmt.Errorf("--bits must be 32 or 64")
	}

	// Base 0 accepts decimal, 0x hex, 0o octal and 0b binary.
	value, err := strconv.ParseUint(strings.TrimSpace(fs.Arg(0)), 0, bits)
	if err != nil {
		return fmt.Errorf("invalid %d-bit hash %q: %w", bits, fs.Arg(0), err)
	}

	if bits == 32 {
		fmt.Fprintln(e.stdout, replacement.HashToString32(uint32(value)))
	} else {
		fmt.Fprintln(e.stdout, replacement.HashToString64(value))
	}
	return nil
}

func runSnapshot(e *env, args []string) error {
	fs := newFlagSet(e, "snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := openCatalog(e)
	if err != nil {
		return err
	}

	snapshots := store.NewSnapshotStore(e.cfg.Database.SnapshotDir)
	var snap store.Snapshot
	err = c.View(func(db *replacement.Database) error {
		var takeErr error
		snap, takeErr = snapshots.Take(db)
		return takeErr
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(e.stdout, snap.ID)
	e.log.Info().Str("id", snap.ID.String()).Int("textures", snap.Textures).Msg("snapshot saved")
	return nil
}

func runSnapshots(e *env, args []string) error {
	fs := newFlagSet(e, "snapshots")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := store.NewSnapshotStore(e.cfg.Database.SnapshotDir).List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTAKEN\tTEXTURES")
	for _, snap := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\n", snap.ID, snap.TakenAt.Format("2006-01-02 15:04:05"), snap.Textures)
	}
	return w.Flush()
}

func runRestore(e *env, args []string) error {
	fs := newFlagSet(e, "restore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := snapshotID(fs, "restore")
	if err != nil {
		return err
	}

	db, err := store.NewSnapshotStore(e.cfg.Database.SnapshotDir).Restore(id)
	if errors.Is(err, store.ErrSnapshotNotFound) {
		return &exitError{code: 1, err: err}
	}
	if err != nil {
		return err
	}

	if err := store.WriteFile(e.cfg.Database.Path, db); err != nil {
		return err
	}
	e.log.Info().Str("id", id.String()).Str("path", e.cfg.Database.Path).Int("textures", db.Len()).Msg("snapshot restored")
	return nil
}

func runSnapshotDelete(e *env, args []string) error {
	fs := newFlagSet(e, "snapshot-delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := snapshotID(fs, "snapshot-delete")
	if err != nil {
		return err
	}

	err = store.NewSnapshotStore(e.cfg.Database.SnapshotDir).Delete(id)
	if errors.Is(err, store.ErrSnapshotNotFound) {
		return &exitError{code: 1, err: err}
	}
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	e.log.Info().Str("id", id.String()).Msg("snapshot deleted")
	return nil
}

func snapshotID(fs *pflag.FlagSet, name string) (uuid.UUID, error) {
	if fs.NArg() != 1 {
		return uuid.Nil, fmt.Errorf("%s takes exactly one snapshot id", name)
	}
	id, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid snapshot id: %w", err)
	}
	return id, nil
}

func runWatch(e *env, args []string) error {
	fs := newFlagSet(e, "watch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := openCatalog(e)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.Watch(ctx, e.cfg.Database.WatchDebounce(), func(err error) {
		if err != nil {
			e.log.Error().Err(err).Str("path", c.Path()).Msg("reload failed")
			return
		}
		e.log.Info().Str("path", c.Path()).Int("textures", c.Len()).Msg("reloaded")
	})
}
