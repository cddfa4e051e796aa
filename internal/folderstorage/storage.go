package folderstorage

import (
	"context"
	"sync"

	"golang.org/x/text/language"

	"arbor/internal/domain/models"
)

// AllTreeID registers a storage for every tree. Such a storage must declare
// PriorityHighest; exactly one is expected per content type.
const AllTreeID = "*"

// PriorityHighest is the priority a tree-wide general storage must declare.
const PriorityHighest = 100

// Parameters carries the per-operation session state handed into every
// storage call: the acting user, locale, accumulated warnings and a scratch
// area storages use to track their open transactions. One Parameters value
// belongs to one logical overlay operation and is not shared across
// operations.
type Parameters struct {
	UserID    string
	ContextID string
	SessionID string
	Locale    language.Tag

	mu       sync.Mutex
	warnings []error
	values   map[any]any
}

// NewParameters builds parameters for one overlay operation.
func NewParameters(userID, contextID string, locale language.Tag) *Parameters {
	return &Parameters{UserID: userID, ContextID: contextID, Locale: locale}
}

// AddWarning records a non-fatal problem surfaced alongside a successful
// (partial) result.
func (p *Parameters) AddWarning(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warnings = append(p.warnings, err)
}

// Warnings returns the accumulated warnings.
func (p *Parameters) Warnings() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]error, len(p.warnings))
	copy(out, p.warnings)
	return out
}

// Put stores per-storage scratch state (typically an open transaction handle).
func (p *Parameters) Put(key, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.values == nil {
		p.values = make(map[any]any)
	}
	p.values[key] = value
}

// Value returns scratch state stored under key, nil if absent.
func (p *Parameters) Value(key any) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[key]
}

// Remove deletes scratch state stored under key.
func (p *Parameters) Remove(key any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, key)
}

// Storage is the SPI every real folder backend (database, mail, messaging,
// file storage) implements. The overlay consumes this contract only; it never
// mutates folders behind a storage's back.
//
// StartTransaction reports whether it actually opened a transaction of its
// own; only then do CommitTransaction/Rollback act. A storage's
// start/commit/rollback sequence for one logical operation happens on one
// thread without another operation's calls intermixed on the same handle.
type Storage interface {
	StartTransaction(p *Parameters, write bool) (bool, error)
	CommitTransaction(p *Parameters) error
	Rollback(p *Parameters)

	Folder(ctx context.Context, treeID, folderID string, p *Parameters) (*models.Folder, error)
	Folders(ctx context.Context, treeID string, folderIDs []string, p *Parameters) ([]*models.Folder, error)
	Subfolders(ctx context.Context, treeID, parentID string, p *Parameters) ([]models.OrderingKey, error)
	CreateFolder(ctx context.Context, folder *models.Folder, p *Parameters) (string, error)
	DeleteFolder(ctx context.Context, treeID, folderID string, p *Parameters) error
	ContainsFolder(ctx context.Context, treeID, folderID string, p *Parameters) (bool, error)
	DefaultFolderID(ctx context.Context, userID, treeID string, contentType models.ContentType, folderType models.FolderType, p *Parameters) (string, error)
	Restore(ctx context.Context, treeID, folderID string, p *Parameters) error

	// ServesTree is the tree-ownership predicate consulted for general
	// (tree-wide) storages.
	ServesTree(treeID string) bool
	// OwnsFolderID is the storage-defined membership test for folder ids,
	// typically a namespace or prefix match.
	OwnsFolderID(folderID string) bool

	ContentTypes() []models.ContentType
	DefaultContentType() models.ContentType
	Priority() int
}
