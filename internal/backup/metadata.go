package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Metadata describes a single backup.
type Metadata struct {
	ID         string    `json:"id"`          // Timestamp and content hash prefix
	SourcePath string    `json:"source_path"` // File that was backed up
	BackupPath string    `json:"backup_path"` // Copy inside the store
	Rule       string    `json:"rule,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"` // Modification time of the original
	Hash       string    `json:"hash"`        // SHA256 of content
	Size       int64     `json:"size"`
}

// Index lists every backup in a store.
type Index struct {
	Version string              `json:"version"`
	Updated time.Time           `json:"updated"`
	Backups map[string]Metadata `json:"backups"` // Key: backup ID
}

const (
	// IndexVersion is the current version of the backup index format
	IndexVersion = "1.0"
	// IndexFilename is the name of the index file
	IndexFilename = "index.json"
)

// IndexPath returns the location of the store's index file.
func (s *Store) IndexPath() string {
	return filepath.Join(s.Dir, IndexFilename)
}

// LoadIndex loads the index, returning an empty one if none exists yet.
func (s *Store) LoadIndex() (*Index, error) {
	// #nosec G304 - index path is derived from the configured backup directory
	data, err := os.ReadFile(s.IndexPath())
	if os.IsNotExist(err) {
		return &Index{
			Version: IndexVersion,
			Updated: time.Now(),
			Backups: make(map[string]Metadata),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse index file: %w", err)
	}
	if index.Backups == nil {
		index.Backups = make(map[string]Metadata)
	}
	return &index, nil
}

// SaveIndex writes the index to disk.
func (s *Store) SaveIndex(index *Index) error {
	if err := os.MkdirAll(s.Dir, DirPerm); err != nil {
		return fmt.Errorf("failed to create backups directory: %w", err)
	}

	index.Updated = time.Now()

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	// #nosec G306 - index.json is metadata and can be group-readable
	if err := os.WriteFile(s.IndexPath(), data, FilePerm); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return nil
}

func (s *Store) addBackup(index *Index, metadata Metadata) error {
	if index.Backups == nil {
		index.Backups = make(map[string]Metadata)
	}
	index.Backups[metadata.ID] = metadata
	return s.SaveIndex(index)
}

func (s *Store) removeBackup(index *Index, id string) error {
	delete(index.Backups, id)
	return s.SaveIndex(index)
}

// ListBackups returns all backups sorted by creation time (newest first).
func (idx *Index) ListBackups() []Metadata {
	backups := make([]Metadata, 0, len(idx.Backups))
	for _, b := range idx.Backups {
		backups = append(backups, b)
	}
	sort.Slice(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].ID > backups[j].ID
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups
}
