package virtualtree

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
	"arbor/internal/folderstorage"
)

// isDatabaseFolderID reports whether the id belongs to the database backend.
// Database ids are plain; mail/messaging/file-storage ids are composite.
func isDatabaseFolderID(folderID string) bool {
	return !strings.ContainsAny(folderID, "/:")
}

// Repairer heals divergence between a user's virtual-delta tree and the real
// storages it overlays. Invoked as an explicit maintenance pass per tree.
type Repairer struct {
	registry *folderstorage.Registry
	delta    repositories.DeltaRepository
	cache    *Cache
	logger   *slog.Logger
}

// NewRepairer wires a consistency repairer.
func NewRepairer(registry *folderstorage.Registry, delta repositories.DeltaRepository, cache *Cache, logger *slog.Logger) *Repairer {
	return &Repairer{registry: registry, delta: delta, cache: cache, logger: logger}
}

// CheckConsistency walks every folder referenced in the user's delta and
// repairs each one under its own storage transaction: per-folder atomicity
// with aggregate reporting, so a late failure cannot void earlier repairs.
// Per-folder failures are logged and skipped; the pass continues.
func (r *Repairer) CheckConsistency(ctx context.Context, treeID string, p *folderstorage.Parameters, mirror *Mirror) error {
	if !mirror.Loaded() {
		if err := mirror.Initialize(ctx, r.delta); err != nil {
			return err
		}
	}

	var failures []error
	changed := false
	for _, folderID := range mirror.Folders() {
		repaired, err := r.repairFolder(ctx, treeID, folderID, p, mirror)
		if err != nil {
			r.logger.Warn("consistency repair failed for folder",
				"tree_id", treeID, "folder_id", folderID, "error", err)
			failures = append(failures, err)
			continue
		}
		if repaired {
			changed = true
		}
	}

	if changed {
		mirror.Invalidate()
		r.cache.ClearUser(p.UserID, p.ContextID)
	}
	if len(failures) > 0 {
		p.AddWarning(errors.Join(failures...))
	}
	return nil
}

// repairFolder runs one folder's repair under its owning storage's
// transaction. It returns whether anything changed.
func (r *Repairer) repairFolder(ctx context.Context, treeID, folderID string, p *folderstorage.Parameters, mirror *Mirror) (bool, error) {
	storage, err := r.registry.ByFolderID(models.RealTreeID, folderID)
	if err != nil {
		return false, err
	}

	changed := false
	err = folderstorage.WithTransaction(storage, p, true, func() error {
		exists, cerr := storage.ContainsFolder(ctx, models.RealTreeID, folderID, p)
		if cerr != nil {
			return cerr
		}

		if !exists {
			if mirror.HasSubfolderIDs(folderID) {
				// The virtual tree still hangs children below it: try to
				// bring the folder back (best effort, storage-defined).
				if rerr := storage.Restore(ctx, models.RealTreeID, folderID, p); rerr != nil {
					return rerr
				}
				r.logger.Info("restored folder referenced by virtual delta",
					"tree_id", treeID, "folder_id", folderID)
				changed = true
				return nil
			}
			if derr := r.delta.Delete(ctx, mirror.Key(), folderID); derr != nil {
				return derr
			}
			r.logger.Info("removed orphaned delta row",
				"tree_id", treeID, "folder_id", folderID)
			changed = true
			return nil
		}

		// Folder exists: a database-backed entry whose delta parent equals
		// the real parent adds no rename/reparent value and is pruned.
		if !isDatabaseFolderID(folderID) {
			return nil
		}
		entry, ok := mirror.Entry(folderID)
		if !ok || entry.Name != "" {
			return nil
		}
		if entry.ParentID == "" || !isDatabaseFolderID(entry.ParentID) {
			return nil
		}
		real, ferr := storage.Folder(ctx, models.RealTreeID, folderID, p)
		if ferr != nil {
			return ferr
		}
		if real.ParentID != entry.ParentID {
			return nil
		}
		if derr := r.delta.Delete(ctx, mirror.Key(), folderID); derr != nil {
			return derr
		}
		r.logger.Info("pruned redundant delta row",
			"tree_id", treeID, "folder_id", folderID, "parent_id", entry.ParentID)
		changed = true
		return nil
	})
	return changed, err
}
