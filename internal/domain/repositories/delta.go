package repositories

import (
	"context"
	"time"
)

// DeltaEntry is one persisted per-user folder override. A row exists only for
// folders whose presentation differs from their real-storage counterpart, or
// that exist only virtually.
type DeltaEntry struct {
	ContextID    string
	TreeID       string
	UserID       string
	FolderID     string
	ParentID     string
	Name         string
	NewID        string
	LastModified time.Time
	ModifiedBy   string
}

// DeltaKey addresses one user's delta rows within one tree.
type DeltaKey struct {
	ContextID string
	TreeID    string
	UserID    string
}

// DeltaRepository persists the virtual-delta table: per-(context, tree, user)
// folder overrides keyed by folder id. All access goes through prepared
// statements, never raw interpolation of user data.
type DeltaRepository interface {
	Get(ctx context.Context, key DeltaKey, folderID string) (*DeltaEntry, error)
	List(ctx context.Context, key DeltaKey) ([]DeltaEntry, error)
	Insert(ctx context.Context, entry *DeltaEntry) error
	Update(ctx context.Context, entry *DeltaEntry) error
	Delete(ctx context.Context, key DeltaKey, folderID string) error

	// DeleteAll removes the given folder ids from the delta in one
	// transaction (explicit begin/commit/rollback).
	DeleteAll(ctx context.Context, key DeltaKey, folderIDs []string) error

	// DuplicateNameGroups returns name -> folder-ids groups with more than
	// one member, a known consequence of independent renames converging.
	DuplicateNameGroups(ctx context.Context, key DeltaKey) (map[string][]string, error)
}
