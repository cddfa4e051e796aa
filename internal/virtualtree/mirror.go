package virtualtree

import (
	"context"
	"fmt"
	"sync"

	"arbor/internal/domain/repositories"
)

// Mirror is the in-process, per-session copy of one user's virtual-delta
// rows. It is scoped to a single session; other sessions of the same user
// hold their own mirrors and are reached only through explicit cross-session
// invalidation after structural writes.
type Mirror struct {
	key repositories.DeltaKey

	mu       sync.RWMutex
	entries  map[string]repositories.DeltaEntry // folder id -> entry
	children map[string][]string                // parent id -> folder ids, insertion order
	loaded   bool
}

// NewMirror creates an unloaded mirror for one (context, tree, user).
func NewMirror(key repositories.DeltaKey) *Mirror {
	return &Mirror{key: key}
}

// Key returns the delta key the mirror is scoped to.
func (m *Mirror) Key() repositories.DeltaKey { return m.key }

// Initialize (re)loads the mirror from the delta repository. It is called
// once per session and again after any structural write invalidated it.
func (m *Mirror) Initialize(ctx context.Context, repo repositories.DeltaRepository) error {
	rows, err := repo.List(ctx, m.key)
	if err != nil {
		return fmt.Errorf("load virtual delta: %w", err)
	}

	entries := make(map[string]repositories.DeltaEntry, len(rows))
	children := make(map[string][]string)
	for _, row := range rows {
		entries[row.FolderID] = row
		if row.ParentID != "" {
			children[row.ParentID] = append(children[row.ParentID], row.FolderID)
		}
	}

	m.mu.Lock()
	m.entries = entries
	m.children = children
	m.loaded = true
	m.mu.Unlock()
	return nil
}

// Loaded reports whether the mirror holds current delta state.
func (m *Mirror) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Invalidate marks the mirror stale; the next overlay operation must
// re-initialize it.
func (m *Mirror) Invalidate() {
	m.mu.Lock()
	m.loaded = false
	m.mu.Unlock()
}

// ContainsFolder reports whether a delta row exists for folderID.
func (m *Mirror) ContainsFolder(folderID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[folderID]
	return ok
}

// ContainsParent reports whether any delta row names folderID as its parent.
func (m *Mirror) ContainsParent(folderID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.children[folderID]) > 0
}

// Folders returns every folder id with a delta row.
func (m *Mirror) Folders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entries))
	for id := range m.entries {
		out = append(out, id)
	}
	return out
}

// SubfolderIDs returns the delta children recorded under parentID, in
// insertion order.
func (m *Mirror) SubfolderIDs(parentID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.children[parentID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// HasSubfolderIDs reports whether the delta records children under parentID.
func (m *Mirror) HasSubfolderIDs(parentID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.children[parentID]) > 0
}

// ParentOf returns the delta parent override of folderID.
func (m *Mirror) ParentOf(folderID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[folderID]
	if !ok || e.ParentID == "" {
		return "", false
	}
	return e.ParentID, true
}

// Entry returns the delta row for folderID.
func (m *Mirror) Entry(folderID string) (repositories.DeltaEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[folderID]
	return e, ok
}

// FillFolder populates the wrapper with the stored overrides of its folder:
// name, parent, pending rename target and modification stamp.
func (m *Mirror) FillFolder(w *Wrapper) bool {
	m.mu.RLock()
	e, ok := m.entries[w.ID()]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Name != "" {
		w.SetName(e.Name)
	}
	if e.ParentID != "" {
		w.SetParentID(e.ParentID)
	}
	if e.NewID != "" {
		w.SetNewID(e.NewID)
	}
	if !e.LastModified.IsZero() {
		w.SetLastModified(e.LastModified)
	}
	if e.ModifiedBy != "" {
		w.SetModifiedBy(e.ModifiedBy)
	}
	return true
}
