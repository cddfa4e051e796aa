package virtualtree

import (
	"context"
	"log/slog"

	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
	"arbor/internal/folderstorage"
)

// Cleaner collapses virtual folders whose display names converged onto the
// same delta name after independent renames.
type Cleaner struct {
	registry *folderstorage.Registry
	delta    repositories.DeltaRepository
	cache    *Cache
	logger   *slog.Logger
}

// NewCleaner wires a duplicate folder cleaner.
func NewCleaner(registry *folderstorage.Registry, delta repositories.DeltaRepository, cache *Cache, logger *slog.Logger) *Cleaner {
	return &Cleaner{registry: registry, delta: delta, cache: cache, logger: logger}
}

// CleanDuplicates deletes every member of every multi-member name group from
// its real storage (per-storage transactions, failures logged and skipped)
// and bulk-removes the successfully deleted ids from the delta in one shared
// relational transaction. It returns lookupID if that id was among the
// deleted set - the caller holding it must re-resolve - and "" otherwise.
func (c *Cleaner) CleanDuplicates(ctx context.Context, treeID, lookupID string, p *folderstorage.Parameters, mirror *Mirror) (string, error) {
	if !mirror.Loaded() {
		if err := mirror.Initialize(ctx, c.delta); err != nil {
			return "", err
		}
	}
	key := mirror.Key()

	groups, err := c.delta.DuplicateNameGroups(ctx, key)
	if err != nil {
		return "", err
	}
	if len(groups) == 0 {
		return "", nil
	}

	var deleted []string
	lookupDeleted := false
	for name, ids := range groups {
		for _, folderID := range ids {
			if err := c.deleteReal(ctx, folderID, p); err != nil {
				// One bad folder must not block cleanup of its siblings.
				c.logger.Warn("duplicate cleanup: real delete failed",
					"tree_id", treeID, "folder_id", folderID, "name", name, "error", err)
				continue
			}
			deleted = append(deleted, folderID)
			if folderID == lookupID {
				lookupDeleted = true
			}
		}
	}

	if len(deleted) > 0 {
		if err := c.delta.DeleteAll(ctx, key, deleted); err != nil {
			return "", err
		}
		mirror.Invalidate()
		c.cache.ClearUser(p.UserID, p.ContextID)
		c.logger.Info("duplicate folders cleaned",
			"tree_id", treeID, "deleted", len(deleted), "groups", len(groups))
	}

	if lookupDeleted {
		return lookupID, nil
	}
	return "", nil
}

// deleteReal deletes one folder under its owning storage's transaction,
// committed or rolled back independently of its siblings.
func (c *Cleaner) deleteReal(ctx context.Context, folderID string, p *folderstorage.Parameters) error {
	storage, err := c.registry.ByFolderID(models.RealTreeID, folderID)
	if err != nil {
		return err
	}
	return folderstorage.WithTransaction(storage, p, true, func() error {
		return storage.DeleteFolder(ctx, models.RealTreeID, folderID, p)
	})
}
