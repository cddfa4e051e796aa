package virtualtree

import (
	"context"
	"sort"
	"sync"

	"arbor/internal/domain"
	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
	"arbor/internal/folderstorage"
)

// memStorage is an in-memory folder storage for engine tests.
type memStorage struct {
	mu           sync.Mutex
	trees        map[string]bool
	prefix       string
	catchAll     bool
	contentTypes []models.ContentType
	priority     int
	defaultIDs   map[models.ContentType]string

	folders map[string]*models.Folder

	started    int
	committed  int
	rolledBack int
	deleteErr  map[string]error
	deleted    []string
	restored   []string
	listings   int
}

func newMemStorage(prefix string, catchAll bool, cts ...models.ContentType) *memStorage {
	return &memStorage{
		prefix:       prefix,
		catchAll:     catchAll,
		contentTypes: cts,
		folders:      make(map[string]*models.Folder),
		defaultIDs:   make(map[models.ContentType]string),
		deleteErr:    make(map[string]error),
	}
}

func (s *memStorage) add(f *models.Folder) { s.folders[f.ID] = f }

func (s *memStorage) StartTransaction(p *folderstorage.Parameters, write bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return true, nil
}

func (s *memStorage) CommitTransaction(p *folderstorage.Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed++
	return nil
}

func (s *memStorage) Rollback(p *folderstorage.Parameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolledBack++
}

func (s *memStorage) Folder(ctx context.Context, treeID, folderID string, p *folderstorage.Parameters) (*models.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.folders[folderID]; ok {
		return f.Clone(), nil
	}
	return nil, &domain.NotFoundError{Message: "folder " + folderID + " not found"}
}

func (s *memStorage) Folders(ctx context.Context, treeID string, ids []string, p *folderstorage.Parameters) ([]*models.Folder, error) {
	out := make([]*models.Folder, 0, len(ids))
	for _, id := range ids {
		f, err := s.Folder(ctx, treeID, id, p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *memStorage) Subfolders(ctx context.Context, treeID, parentID string, p *folderstorage.Parameters) ([]models.OrderingKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings++
	var ids []string
	for id, f := range s.folders {
		if f.ParentID == parentID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	keys := make([]models.OrderingKey, len(ids))
	for i, id := range ids {
		keys[i] = models.OrderingKey{FolderID: id, Ordinal: i, Name: s.folders[id].Name}
	}
	return keys, nil
}

func (s *memStorage) CreateFolder(ctx context.Context, folder *models.Folder, p *folderstorage.Parameters) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[folder.ID] = folder.Clone()
	return folder.ID, nil
}

func (s *memStorage) DeleteFolder(ctx context.Context, treeID, folderID string, p *folderstorage.Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErr[folderID]; err != nil {
		return err
	}
	delete(s.folders, folderID)
	s.deleted = append(s.deleted, folderID)
	return nil
}

func (s *memStorage) ContainsFolder(ctx context.Context, treeID, folderID string, p *folderstorage.Parameters) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.folders[folderID]
	return ok, nil
}

func (s *memStorage) DefaultFolderID(ctx context.Context, userID, treeID string, ct models.ContentType, ft models.FolderType, p *folderstorage.Parameters) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.defaultIDs[ct]; ok {
		return id, nil
	}
	return "", &domain.NotFoundError{Message: "no default folder for " + string(ct)}
}

func (s *memStorage) Restore(ctx context.Context, treeID, folderID string, p *folderstorage.Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restored = append(s.restored, folderID)
	s.folders[folderID] = &models.Folder{ID: folderID, Name: "restored-" + folderID}
	return nil
}

func (s *memStorage) ServesTree(treeID string) bool { return s.trees[treeID] }

func (s *memStorage) OwnsFolderID(folderID string) bool {
	if s.catchAll {
		return true
	}
	return s.prefix != "" && len(folderID) >= len(s.prefix) && folderID[:len(s.prefix)] == s.prefix
}

func (s *memStorage) ContentTypes() []models.ContentType { return s.contentTypes }

func (s *memStorage) DefaultContentType() models.ContentType {
	if len(s.contentTypes) > 0 {
		return s.contentTypes[0]
	}
	return models.ContentTypeSystem
}

func (s *memStorage) Priority() int { return s.priority }

// memDelta is an in-memory DeltaRepository.
type memDelta struct {
	mu        sync.Mutex
	rows      map[repositories.DeltaKey]map[string]repositories.DeltaEntry
	insertErr error
}

func newMemDelta() *memDelta {
	return &memDelta{rows: make(map[repositories.DeltaKey]map[string]repositories.DeltaEntry)}
}

func (d *memDelta) bucket(key repositories.DeltaKey) map[string]repositories.DeltaEntry {
	if d.rows[key] == nil {
		d.rows[key] = make(map[string]repositories.DeltaEntry)
	}
	return d.rows[key]
}

func (d *memDelta) Get(ctx context.Context, key repositories.DeltaKey, folderID string) (*repositories.DeltaEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.bucket(key)[folderID]; ok {
		return &e, nil
	}
	return nil, &domain.NotFoundError{Message: "delta row " + folderID + " not found"}
}

func (d *memDelta) List(ctx context.Context, key repositories.DeltaKey) ([]repositories.DeltaEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	for id := range d.bucket(key) {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]repositories.DeltaEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.rows[key][id])
	}
	return out, nil
}

func (d *memDelta) Insert(ctx context.Context, entry *repositories.DeltaEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.insertErr != nil {
		return d.insertErr
	}
	key := repositories.DeltaKey{ContextID: entry.ContextID, TreeID: entry.TreeID, UserID: entry.UserID}
	d.bucket(key)[entry.FolderID] = *entry
	return nil
}

func (d *memDelta) Update(ctx context.Context, entry *repositories.DeltaEntry) error {
	return d.Insert(ctx, entry)
}

func (d *memDelta) Delete(ctx context.Context, key repositories.DeltaKey, folderID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bucket(key), folderID)
	return nil
}

func (d *memDelta) DeleteAll(ctx context.Context, key repositories.DeltaKey, folderIDs []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range folderIDs {
		delete(d.bucket(key), id)
	}
	return nil
}

func (d *memDelta) DuplicateNameGroups(ctx context.Context, key repositories.DeltaKey) (map[string][]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byName := make(map[string][]string)
	var ids []string
	for id := range d.bucket(key) {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e := d.rows[key][id]
		if e.Name != "" {
			byName[e.Name] = append(byName[e.Name], id)
		}
	}
	for name, group := range byName {
		if len(group) < 2 {
			delete(byName, name)
		}
	}
	return byName, nil
}

// memAccounts is a fixed AccountSource.
type memAccounts struct {
	mail        []folderstorage.Account
	messaging   []folderstorage.Account
	fileStorage []folderstorage.Account
	unified     bool
	mailErr     error
}

func (a *memAccounts) MailAccounts(ctx context.Context, p *folderstorage.Parameters) ([]folderstorage.Account, error) {
	if a.mailErr != nil {
		return nil, a.mailErr
	}
	return a.mail, nil
}

func (a *memAccounts) MessagingAccounts(ctx context.Context, p *folderstorage.Parameters) ([]folderstorage.Account, error) {
	return a.messaging, nil
}

func (a *memAccounts) FileStorageAccounts(ctx context.Context, p *folderstorage.Parameters) ([]folderstorage.Account, error) {
	return a.fileStorage, nil
}

func (a *memAccounts) UnifiedInboxEnabled(ctx context.Context, p *folderstorage.Parameters) (bool, error) {
	return a.unified, nil
}
