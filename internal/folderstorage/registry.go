package folderstorage

import (
	"fmt"
	"sort"
	"sync"

	"arbor/internal/domain"
	"arbor/internal/domain/models"
)

// Registry maps (tree-id, folder-id) and (tree-id, content-type) to the
// single responsible real folder storage. Lookup is tiered: tree-wide
// "general" storages take priority, then per-tree storages filtered by
// ownership predicate.
type Registry struct {
	mu            sync.RWMutex
	general       []Storage
	byTree        map[string][]Storage
	byContentType map[string]map[models.ContentType]Storage
}

// NewRegistry creates an empty storage registry.
func NewRegistry() *Registry {
	return &Registry{
		byTree:        make(map[string][]Storage),
		byContentType: make(map[string]map[models.ContentType]Storage),
	}
}

// Register adds a storage for the given tree. A storage is accepted only when
// it targets the real tree, or the all-trees namespace with highest priority.
// Content types are claimed all-or-nothing: a duplicate claim rolls the whole
// registration back.
func (r *Registry) Register(treeID string, storage Storage) error {
	if storage == nil {
		return fmt.Errorf("register: nil storage: %w", domain.ErrValidation)
	}
	if treeID != models.RealTreeID && !(treeID == AllTreeID && storage.Priority() >= PriorityHighest) {
		return fmt.Errorf("register: tree %q requires the real tree or the all-trees namespace with highest priority: %w",
			treeID, domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cts := r.byContentType[treeID]
	if cts == nil {
		cts = make(map[models.ContentType]Storage)
		r.byContentType[treeID] = cts
	}

	claimed := make([]models.ContentType, 0, len(storage.ContentTypes()))
	for _, ct := range storage.ContentTypes() {
		if _, exists := cts[ct]; exists {
			// Roll back the claims made so far.
			for _, c := range claimed {
				delete(cts, c)
			}
			return fmt.Errorf("register: content type %q already claimed in tree %q: %w",
				ct, treeID, domain.ErrConflict)
		}
		cts[ct] = storage
		claimed = append(claimed, ct)
	}

	if treeID == AllTreeID {
		r.general = append(r.general, storage)
		sort.SliceStable(r.general, func(i, j int) bool {
			return r.general[i].Priority() > r.general[j].Priority()
		})
	} else {
		r.byTree[treeID] = append(r.byTree[treeID], storage)
	}
	return nil
}

// Deregister removes a previously registered storage and its content-type
// claims.
func (r *Registry) Deregister(treeID string, storage Storage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drop := func(list []Storage) []Storage {
		out := list[:0]
		for _, s := range list {
			if s != storage {
				out = append(out, s)
			}
		}
		return out
	}
	if treeID == AllTreeID {
		r.general = drop(r.general)
	} else {
		r.byTree[treeID] = drop(r.byTree[treeID])
	}
	for ct, s := range r.byContentType[treeID] {
		if s == storage {
			delete(r.byContentType[treeID], ct)
		}
	}
}

// ByFolderID resolves the storage responsible for folderID within treeID.
// General storages are consulted first via their tree-ownership predicate,
// then per-tree storages via their folder-id ownership predicate.
func (r *Registry) ByFolderID(treeID, folderID string) (Storage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.general {
		if s.ServesTree(treeID) {
			return s, nil
		}
	}
	for _, s := range r.byTree[treeID] {
		if s.OwnsFolderID(folderID) {
			return s, nil
		}
	}
	return nil, &domain.NoStorageError{TreeID: treeID, FolderID: folderID}
}

// ByContentType resolves the storage claiming contentType in treeID,
// revalidated against tree ownership.
func (r *Registry) ByContentType(treeID string, contentType models.ContentType) (Storage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.general {
		if s.ServesTree(treeID) {
			for _, ct := range s.ContentTypes() {
				if ct == contentType {
					return s, nil
				}
			}
		}
	}
	if s, ok := r.byContentType[treeID][contentType]; ok {
		return s, nil
	}
	if s, ok := r.byContentType[AllTreeID][contentType]; ok && s.ServesTree(treeID) {
		return s, nil
	}
	return nil, &domain.NoStorageError{TreeID: treeID, ContentType: string(contentType)}
}

// Storages returns every storage registered for treeID, general storages
// first.
func (r *Registry) Storages(treeID string) []Storage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Storage, 0, len(r.general)+len(r.byTree[treeID]))
	for _, s := range r.general {
		if s.ServesTree(treeID) {
			out = append(out, s)
		}
	}
	out = append(out, r.byTree[treeID]...)
	return out
}
