package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/texture-replacements/trdb/replacement"
)

// ErrSnapshotNotFound is returned when no snapshot has the requested id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

const snapshotExt = ".json"

// Snapshot describes a saved copy of a database document.
type Snapshot struct {
	ID       uuid.UUID
	TakenAt  time.Time
	Textures int
}

type snapshotJSON struct {
	ID       string          `json:"id"`
	TakenAt  string          `json:"taken_at"`
	Database json.RawMessage `json:"database"`
}

// SnapshotStore keeps snapshots as one JSON file per snapshot in a directory.
type SnapshotStore struct {
	dir string
	now func() time.Time
}

func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir, now: time.Now}
}

// Take writes a snapshot of db and returns its descriptor.
func (s *SnapshotStore) Take(db *replacement.Database) (Snapshot, error) {
	state, err := replacement.Encode(db)
	if err != nil {
		return Snapshot{}, fmt.Errorf("error marshalling replacement database: %w", err)
	}

	snap := Snapshot{ID: uuid.New(), TakenAt: s.now().UTC().Truncate(time.Second), Textures: db.Len()}
	data, err := json.MarshalIndent(snapshotJSON{
		ID:       snap.ID.String(),
		TakenAt:  snap.TakenAt.Format(time.RFC3339),
		Database: state,
	}, "", "  ")
	if err != nil {
		return Snapshot{}, fmt.Errorf("error marshalling snapshot: %w", err)
	}

	if err := writeAtomic(s.path(snap.ID), data); err != nil {
		return Snapshot{}, fmt.Errorf("error writing snapshot: %w", err)
	}
	return snap, nil
}

// Restore loads the database saved in snapshot id.
func (s *SnapshotStore) Restore(id uuid.UUID) (*replacement.Database, error) {
	raw, err := s.read(id)
	if err != nil {
		return nil, err
	}

	db, err := replacement.Decode(raw.Database)
	if err != nil {
		return nil, fmt.Errorf("error decoding snapshot %s: %w", id, err)
	}
	return db, nil
}

// List returns all snapshots, oldest first.
func (s *SnapshotStore) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error listing snapshots: %w", err)
	}

	var snapshots []Snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, snapshotExt))
		if err != nil {
			continue
		}

		raw, err := s.read(id)
		if err != nil {
			return nil, err
		}
		snap, err := raw.describe()
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", id, err)
		}
		snapshots = append(snapshots, snap)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].TakenAt.Before(snapshots[j].TakenAt)
	})
	return snapshots, nil
}

// Delete removes snapshot id.
func (s *SnapshotStore) Delete(id uuid.UUID) error {
	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return err
}

func (s *SnapshotStore) read(id uuid.UUID) (*snapshotJSON, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}

	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error unmarshalling snapshot: %w", err)
	}
	return &raw, nil
}

func (raw *snapshotJSON) describe() (Snapshot, error) {
	id, err := uuid.Parse(raw.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("error parsing id: %w", err)
	}
	takenAt, err := time.Parse(time.RFC3339, raw.TakenAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("error parsing time: %w", err)
	}
	db, err := replacement.Decode(raw.Database)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ID: id, TakenAt: takenAt, Textures: db.Len()}, nil
}

func (s *SnapshotStore) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+snapshotExt)
}
