package backup

import (
	"fmt"
	"time"
)

// CleanupOptions configures backup cleanup behavior.
type CleanupOptions struct {
	// MaxBackups limits the number of backups kept per file (0 = unlimited)
	MaxBackups int

	// MaxAge is the maximum age of backups to keep (0 = unlimited)
	MaxAge time.Duration

	// KeepAtLeastOne keeps the newest backup of each file regardless of age
	KeepAtLeastOne bool

	// DryRun reports what would be deleted without deleting
	DryRun bool
}

// DefaultCleanupOptions returns sensible defaults for cleanup.
func DefaultCleanupOptions() CleanupOptions {
	return CleanupOptions{
		MaxBackups:     10,
		MaxAge:         30 * 24 * time.Hour,
		KeepAtLeastOne: true,
	}
}

// Cleanup removes old backups per source file and returns the deleted IDs.
func (s *Store) Cleanup(opts CleanupOptions) ([]string, error) {
	index, err := s.LoadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load backup index: %w", err)
	}

	groups := make(map[string][]Metadata)
	for _, b := range index.ListBackups() {
		groups[b.SourcePath] = append(groups[b.SourcePath], b)
	}

	var toDelete []string
	now := time.Now()

	for _, backups := range groups {
		var doomed []string
		for i, b := range backups {
			if (opts.MaxAge > 0 && now.Sub(b.CreatedAt) > opts.MaxAge) ||
				(opts.MaxBackups > 0 && i >= opts.MaxBackups) {
				doomed = append(doomed, b.ID)
			}
		}
		// backups is newest first, so the newest is doomed only if all are.
		if opts.KeepAtLeastOne && len(doomed) == len(backups) && len(doomed) > 0 {
			doomed = doomed[1:]
		}
		toDelete = append(toDelete, doomed...)
	}

	var deleted []string
	for _, id := range toDelete {
		if !opts.DryRun {
			if err := s.Delete(id); err != nil {
				return deleted, fmt.Errorf("failed to delete backup %q: %w", id, err)
			}
		}
		deleted = append(deleted, id)
	}

	return deleted, nil
}
