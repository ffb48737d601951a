// Package backup keeps copies of destination files before marksync rewrites them.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	// DirPerm is the permission for backup directories (rwxr-x---)
	DirPerm = 0o750
	// FilePerm is the permission for backup files (rw-r-----)
	FilePerm = 0o640
)

// ErrNotFound reports an unknown backup ID.
var ErrNotFound = errors.New("backup not found")

// Store manages backups under a single directory.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Create copies the file at path into the store and records it in the index.
// Rule names the sync rule that triggered the backup.
func (s *Store) Create(path, rule string) (*Metadata, error) {
	if err := os.MkdirAll(s.Dir, DirPerm); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}

	// #nosec G304 - path comes from the sync table
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	hash := sha256.Sum256(content)
	hashStr := hex.EncodeToString(hash[:])

	now := time.Now()
	id := now.Format("20060102-150405.000000-") + hashStr[:8]

	backupPath := filepath.Join(s.Dir, id+"-"+filepath.Base(path))
	if err := os.WriteFile(backupPath, content, FilePerm); err != nil {
		return nil, fmt.Errorf("failed to write backup file: %w", err)
	}

	metadata := &Metadata{
		ID:         id,
		SourcePath: path,
		BackupPath: backupPath,
		Rule:       rule,
		CreatedAt:  now,
		ModifiedAt: info.ModTime(),
		Hash:       hashStr,
		Size:       info.Size(),
	}

	index, err := s.LoadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load backup index: %w", err)
	}
	if err := s.addBackup(index, *metadata); err != nil {
		return nil, fmt.Errorf("failed to add backup to index: %w", err)
	}

	return metadata, nil
}

// Restore writes the backup content back to targetPath. An empty targetPath
// restores to the original location.
func (s *Store) Restore(id, targetPath string) error {
	metadata, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := s.Verify(id); err != nil {
		return err
	}

	content, err := os.ReadFile(metadata.BackupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	if targetPath == "" {
		targetPath = metadata.SourcePath
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), DirPerm); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(targetPath); err == nil {
		perm = info.Mode().Perm()
	}
	if err := os.WriteFile(targetPath, content, perm); err != nil {
		return fmt.Errorf("failed to write target file: %w", err)
	}
	return nil
}

// Get returns the metadata of a backup.
func (s *Store) Get(id string) (Metadata, error) {
	index, err := s.LoadIndex()
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to load backup index: %w", err)
	}
	metadata, ok := index.Backups[id]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return metadata, nil
}

// List returns all backups, newest first, optionally filtered by source path.
func (s *Store) List(sourcePath string) ([]Metadata, error) {
	index, err := s.LoadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load backup index: %w", err)
	}

	backups := index.ListBackups()
	if sourcePath == "" {
		return backups, nil
	}

	filtered := make([]Metadata, 0, len(backups))
	for _, b := range backups {
		if b.SourcePath == sourcePath {
			filtered = append(filtered, b)
		}
	}
	return filtered, nil
}

// Delete removes a backup file and its index entry.
func (s *Store) Delete(id string) error {
	index, err := s.LoadIndex()
	if err != nil {
		return fmt.Errorf("failed to load backup index: %w", err)
	}

	metadata, ok := index.Backups[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	if err := os.Remove(metadata.BackupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup file: %w", err)
	}

	return s.removeBackup(index, id)
}

// Verify checks that a backup file exists and matches its recorded hash.
func (s *Store) Verify(id string) (err error) {
	metadata, err := s.Get(id)
	if err != nil {
		return err
	}

	file, err := os.Open(metadata.BackupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close backup file: %w", closeErr)
		}
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	if hex.EncodeToString(hash.Sum(nil)) != metadata.Hash {
		return fmt.Errorf("backup %q corrupted: hash mismatch", id)
	}
	return nil
}
