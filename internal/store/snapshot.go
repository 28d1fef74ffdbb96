package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apperrors "delta-strangler/internal/errors"
	"delta-strangler/internal/models"
)

// FileSnapshotStore keeps the entry snapshot as an indented JSON file.
type FileSnapshotStore struct {
	path string
}

// NewFileSnapshotStore creates a snapshot store at path.
func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

// Path returns the snapshot file path.
func (s *FileSnapshotStore) Path() string {
	return s.path
}

// Save writes the snapshot atomically.
func (s *FileSnapshotStore) Save(snap *models.EntrySnapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("refusing to save snapshot: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".active_trade-*.json")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot.
func (s *FileSnapshotStore) Load() (*models.EntrySnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrNoSnapshot
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap models.EntrySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", s.path, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Delete removes the snapshot. Deleting a missing snapshot is not an error.
func (s *FileSnapshotStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}
