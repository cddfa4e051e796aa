package virtualtree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"arbor/internal/domain"
	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
	"arbor/internal/folderstorage"
)

// Fixed display names of the synthesized pseudo folders.
const (
	rootDisplayName        = "Root"
	privateDisplayName     = "Private folders"
	primaryMailDisplayName = "E-Mail"
)

// publicMailFolderID is the special public path of the primary mail account,
// skipped when the account's mailboxes are folded below the private root.
const publicMailFolderID = models.PrimaryMailRootID + "/Public"

// Invalidator is notified when a folder is deleted so that other live
// sessions of the same user can drop their stale mirrors. Modeled as an
// event, not as direct mutation of foreign session state.
type Invalidator interface {
	FolderDeleted(userID, contextID, treeID, folderID string)
}

// Engine produces the ordered, deduplicated folder view of the virtual tree
// by combining real-storage data with virtual-delta overrides.
type Engine struct {
	registry    *folderstorage.Registry
	accounts    folderstorage.AccountSource
	delta       repositories.DeltaRepository
	cache       *Cache
	cfg         ReparentConfig
	invalidator Invalidator
	logger      *slog.Logger
}

// NewEngine wires an aggregation engine.
func NewEngine(
	registry *folderstorage.Registry,
	accounts folderstorage.AccountSource,
	delta repositories.DeltaRepository,
	cache *Cache,
	cfg ReparentConfig,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		registry: registry,
		accounts: accounts,
		delta:    delta,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetInvalidator installs the cross-session invalidation sink.
func (e *Engine) SetInvalidator(inv Invalidator) { e.invalidator = inv }

// Cache exposes the subfolder resolution cache.
func (e *Engine) Cache() *Cache { return e.cache }

func isPseudoID(folderID string) bool {
	switch folderID {
	case models.RootFolderID, models.PrivateFolderID, models.PrimaryMailRootID:
		return true
	}
	return false
}

func (e *Engine) ensureMirror(ctx context.Context, mirror *Mirror) error {
	if mirror.Loaded() {
		return nil
	}
	return mirror.Initialize(ctx, e.delta)
}

// GetFolder fetches one folder of the virtual tree: real data wrapped,
// subfolder ids derived, delta overrides (or the static re-parenting rules)
// applied.
func (e *Engine) GetFolder(ctx context.Context, treeID, folderID string, p *folderstorage.Parameters, mirror *Mirror) (*Wrapper, error) {
	if err := e.ensureMirror(ctx, mirror); err != nil {
		return nil, err
	}

	if isPseudoID(folderID) {
		return e.pseudoFolder(ctx, folderID, p)
	}

	storage, err := e.registry.ByFolderID(models.RealTreeID, folderID)
	if err != nil {
		return nil, err
	}

	var real *models.Folder
	err = folderstorage.WithTransaction(storage, p, false, func() error {
		f, ferr := storage.Folder(ctx, models.RealTreeID, folderID, p)
		real = f
		return ferr
	})
	if err != nil {
		if healed := e.healStaleDelta(ctx, storage, treeID, folderID, p, mirror); healed != nil {
			return nil, healed
		}
		return nil, wrapStorageErr(err)
	}

	w := Wrap(real)
	if err := e.deriveSubfolders(ctx, treeID, w, p, mirror); err != nil {
		return nil, err
	}
	if !mirror.FillFolder(w) {
		ApplyModifications(w, e.cfg)
	}
	return w, nil
}

// healStaleDelta checks whether a failed fetch was caused by a delta row that
// outlived its real folder. If so, the row is pruned and a distinguished
// temporary error is returned so the caller's next attempt succeeds.
func (e *Engine) healStaleDelta(ctx context.Context, storage folderstorage.Storage, treeID, folderID string, p *folderstorage.Parameters, mirror *Mirror) error {
	if !mirror.ContainsFolder(folderID) {
		return nil
	}

	exists := true
	cerr := folderstorage.WithTransaction(storage, p, false, func() error {
		var err error
		exists, err = storage.ContainsFolder(ctx, models.RealTreeID, folderID, p)
		return err
	})
	if cerr != nil || exists {
		return nil
	}

	if err := e.delta.Delete(ctx, mirror.Key(), folderID); err != nil {
		e.logger.Warn("failed to prune stale delta row",
			"tree_id", treeID, "folder_id", folderID, "error", err)
		return nil
	}
	mirror.Invalidate()
	e.cache.ClearUser(p.UserID, p.ContextID)
	e.logger.Info("pruned stale delta row", "tree_id", treeID, "folder_id", folderID)
	return &domain.TemporaryError{TreeID: treeID, FolderID: folderID}
}

// pseudoFolder synthesizes the tree root, the private root and the primary
// mail account root from the real storage's root/private folders. Subfolders
// are forced unknown so the listing path is always exercised; these are never
// served from the subfolder cache.
func (e *Engine) pseudoFolder(ctx context.Context, folderID string, p *folderstorage.Parameters) (*Wrapper, error) {
	baseID := models.RootFolderID
	if folderID != models.RootFolderID {
		baseID = models.PrivateFolderID
	}

	storage, err := e.registry.ByFolderID(models.RealTreeID, baseID)
	if err != nil {
		return nil, err
	}

	var real *models.Folder
	err = folderstorage.WithTransaction(storage, p, false, func() error {
		f, ferr := storage.Folder(ctx, models.RealTreeID, baseID, p)
		real = f
		return ferr
	})
	if err != nil {
		return nil, wrapStorageErr(err)
	}

	f := real.Clone()
	f.ID = folderID
	switch folderID {
	case models.RootFolderID:
		f.Name = rootDisplayName
		f.ParentID = ""
	case models.PrivateFolderID:
		f.Name = privateDisplayName
		f.ParentID = models.RootFolderID
	case models.PrimaryMailRootID:
		f.Name = primaryMailDisplayName
		f.ParentID = models.PrivateFolderID
		f.ContentType = models.ContentTypeMail
	}

	w := Wrap(f)
	w.ForceUnknownSubfolders()
	return w, nil
}

// deriveSubfolders computes the wrapper's subfolder-id list for ordinary
// folders. Special parents (root, private root, primary inbox, infostore
// root) are derived by Subfolders on demand.
func (e *Engine) deriveSubfolders(ctx context.Context, treeID string, w *Wrapper, p *folderstorage.Parameters, mirror *Mirror) error {
	switch w.ID() {
	case models.PrimaryInboxID, models.InfostoreFolderID:
		// Derived by the listing path; force clients through it.
		w.ForceUnknownSubfolders()
		return nil
	}

	ids, known := w.SubfolderIDs()
	if !known {
		// Unknown stays unknown: defaulting to "no subfolders" would
		// suppress pagination for backends that compute children lazily.
		return nil
	}

	if len(ids) == 0 {
		if mirror.HasSubfolderIDs(w.ID()) {
			// The delta records a child the real storage does not know
			// about; report present-but-unknown to force a re-query.
			w.ForceUnknownSubfolders()
		}
		return nil
	}

	if w.DefaultFolder() || w.ID() == models.PublicFolderID {
		// Children tracked by the delta appear virtually elsewhere.
		filtered := make([]string, 0, len(ids))
		for _, id := range ids {
			if !mirror.ContainsFolder(id) {
				filtered = append(filtered, id)
			}
		}
		w.SetSubfolderIDs(filtered)
	}
	return nil
}

// Subfolders returns the ordered, deduplicated subfolder listing for a
// parent folder of the virtual tree.
func (e *Engine) Subfolders(ctx context.Context, treeID, parentID string, p *folderstorage.Parameters, mirror *Mirror) ([]models.OrderingKey, error) {
	if err := e.ensureMirror(ctx, mirror); err != nil {
		return nil, err
	}

	switch parentID {
	case models.RootFolderID:
		return e.rootSubfolders(ctx, p)
	case models.PrimaryInboxID:
		key := CacheKey{FolderID: parentID, TreeID: treeID, UserID: p.UserID, ContextID: p.ContextID}
		return e.cache.GetOrCompute(ctx, key, func() ([]models.OrderingKey, error) {
			return e.inboxSubfolders(ctx, p, mirror)
		})
	case models.PrivateFolderID:
		key := CacheKey{FolderID: parentID, TreeID: treeID, UserID: p.UserID, ContextID: p.ContextID}
		return e.cache.GetOrCompute(ctx, key, func() ([]models.OrderingKey, error) {
			return e.privateSubfolders(ctx, p, mirror)
		})
	case models.InfostoreFolderID:
		return e.infostoreSubfolders(ctx, p, mirror)
	default:
		return e.genericSubfolders(ctx, treeID, parentID, p, mirror)
	}
}

// rootSubfolders: the tree root lists exactly the private folder.
func (e *Engine) rootSubfolders(ctx context.Context, p *folderstorage.Parameters) ([]models.OrderingKey, error) {
	storage, err := e.registry.ByFolderID(models.RealTreeID, models.RootFolderID)
	if err != nil {
		return nil, err
	}

	hasPrivate := false
	err = folderstorage.WithTransaction(storage, p, false, func() error {
		var cerr error
		hasPrivate, cerr = storage.ContainsFolder(ctx, models.RealTreeID, models.PrivateFolderID, p)
		return cerr
	})
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	if !hasPrivate {
		return nil, &domain.NotFoundError{Message: "missing private folder below root"}
	}
	return []models.OrderingKey{{FolderID: models.PrivateFolderID, Ordinal: 0, Name: privateDisplayName}}, nil
}

// inboxSubfolders merges non-default real inbox children not shadowed by the
// delta with the delta children of the inbox, locale-collated by name.
func (e *Engine) inboxSubfolders(ctx context.Context, p *folderstorage.Parameters, mirror *Mirror) ([]models.OrderingKey, error) {
	storage, err := e.registry.ByContentType(models.RealTreeID, models.ContentTypeMail)
	if err != nil {
		return nil, err
	}

	m := NewNameMultimap(p.Locale)
	err = folderstorage.WithTransaction(storage, p, false, func() error {
		keys, lerr := storage.Subfolders(ctx, models.RealTreeID, models.PrimaryInboxID, p)
		if lerr != nil {
			return lerr
		}
		folders, lerr := storage.Folders(ctx, models.RealTreeID, models.OrderingKeyIDs(keys), p)
		if lerr != nil {
			return lerr
		}
		for _, f := range folders {
			if f.DefaultFolder || mirror.ContainsFolder(f.ID) {
				continue
			}
			m.Add(f.Name, f.ID)
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorageErr(err)
	}

	e.addDeltaChildren(m, mirror, models.PrimaryInboxID)
	return m.Flatten(0), nil
}

// addDeltaChildren folds the delta children of parentID into the multimap,
// named by their override name.
func (e *Engine) addDeltaChildren(m *NameMultimap, mirror *Mirror, parentID string) {
	for _, id := range mirror.SubfolderIDs(parentID) {
		entry, ok := mirror.Entry(id)
		if !ok {
			continue
		}
		name := entry.Name
		if name == "" {
			name = id
		}
		m.Add(name, id)
	}
}

type namedID struct {
	name string
	id   string
}

// privateSubfolders fans out four independent listing tasks, merges their
// results into one locale-collated sequence, then appends the external
// account blocks in fixed order. The merge is order-stabilizing: output does
// not depend on task completion order.
func (e *Engine) privateSubfolders(ctx context.Context, p *folderstorage.Parameters, mirror *Mirror) ([]models.OrderingKey, error) {
	var (
		own       []namedID
		mailboxes []namedID
		deltaKids []namedID
		topLevel  []namedID
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		own, err = e.listRealChildren(gctx, models.PrivateFolderID, p, mirror)
		return err
	})

	g.Go(func() error {
		var err error
		mailboxes, err = e.listPrimaryMailboxes(gctx, p, mirror)
		if err != nil {
			// A broken mail account must not block the rest of the tree.
			// The same goes for a deployment with no mail backend
			// registered at all: the tree renders without the mail block.
			if domain.IsTransientBackend(err) || errors.Is(err, domain.ErrNoStorage) {
				p.AddWarning(err)
				mailboxes = nil
				return nil
			}
			return err
		}
		return nil
	})

	g.Go(func() error {
		for _, id := range mirror.SubfolderIDs(models.PrivateFolderID) {
			entry, ok := mirror.Entry(id)
			if !ok {
				continue
			}
			name := entry.Name
			if name == "" {
				name = id
			}
			deltaKids = append(deltaKids, namedID{name: name, id: id})
		}
		return nil
	})

	g.Go(func() error {
		var err error
		topLevel, err = e.listOtherTopLevel(gctx, p, mirror)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in fixed task order so per-name insertion order is stable.
	m := NewNameMultimap(p.Locale)
	for _, batch := range [][]namedID{own, mailboxes, deltaKids, topLevel} {
		for _, n := range batch {
			m.Add(n.name, n.id)
		}
	}
	keys := m.Flatten(0)

	appendix, err := e.externalAccountBlocks(ctx, p, len(keys))
	if err != nil {
		return nil, err
	}
	return append(keys, appendix...), nil
}

// listRealChildren lists the real-storage children of parentID, skipping
// delta-shadowed ids.
func (e *Engine) listRealChildren(ctx context.Context, parentID string, p *folderstorage.Parameters, mirror *Mirror) ([]namedID, error) {
	storage, err := e.registry.ByFolderID(models.RealTreeID, parentID)
	if err != nil {
		return nil, err
	}

	var out []namedID
	err = folderstorage.WithTransaction(storage, p, false, func() error {
		keys, lerr := storage.Subfolders(ctx, models.RealTreeID, parentID, p)
		if lerr != nil {
			return lerr
		}
		for _, k := range keys {
			if mirror.ContainsFolder(k.FolderID) {
				continue
			}
			out = append(out, namedID{name: k.Name, id: k.FolderID})
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return out, nil
}

// listPrimaryMailboxes lists the primary account's mailboxes folded below the
// private root: the special public path is skipped and default mailboxes are
// excluded, mirroring the inbox rule.
func (e *Engine) listPrimaryMailboxes(ctx context.Context, p *folderstorage.Parameters, mirror *Mirror) ([]namedID, error) {
	storage, err := e.registry.ByContentType(models.RealTreeID, models.ContentTypeMail)
	if err != nil {
		return nil, err
	}

	var out []namedID
	err = folderstorage.WithTransaction(storage, p, false, func() error {
		keys, lerr := storage.Subfolders(ctx, models.RealTreeID, models.PrimaryMailRootID, p)
		if lerr != nil {
			return lerr
		}
		folders, lerr := storage.Folders(ctx, models.RealTreeID, models.OrderingKeyIDs(keys), p)
		if lerr != nil {
			return lerr
		}
		for _, f := range folders {
			if f.ID == publicMailFolderID || strings.HasPrefix(f.ID, publicMailFolderID+"/") {
				continue
			}
			if f.DefaultFolder || mirror.ContainsFolder(f.ID) {
				continue
			}
			out = append(out, namedID{name: f.Name, id: f.ID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// listOtherTopLevel lists the public/shared top level below root, minus the
// private folder itself.
func (e *Engine) listOtherTopLevel(ctx context.Context, p *folderstorage.Parameters, mirror *Mirror) ([]namedID, error) {
	storage, err := e.registry.ByFolderID(models.RealTreeID, models.RootFolderID)
	if err != nil {
		return nil, err
	}

	var out []namedID
	err = folderstorage.WithTransaction(storage, p, false, func() error {
		keys, lerr := storage.Subfolders(ctx, models.RealTreeID, models.RootFolderID, p)
		if lerr != nil {
			return lerr
		}
		for _, k := range keys {
			if k.FolderID == models.PrivateFolderID || mirror.ContainsFolder(k.FolderID) {
				continue
			}
			out = append(out, namedID{name: k.Name, id: k.FolderID})
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return out, nil
}

// externalAccountBlocks appends, in fixed order: external mail accounts
// (unified-inbox pseudo-account first if enabled, default account last),
// then messaging accounts alphabetically. File-storage accounts surface only
// below the infostore root, never here.
func (e *Engine) externalAccountBlocks(ctx context.Context, p *folderstorage.Parameters, base int) ([]models.OrderingKey, error) {
	var out []models.OrderingKey
	ordinal := base

	mail, err := e.accounts.MailAccounts(ctx, p)
	if err != nil {
		if domain.IsTransientBackend(err) {
			p.AddWarning(err)
			mail = nil
		} else {
			return nil, err
		}
	}

	unified, err := e.accounts.UnifiedInboxEnabled(ctx, p)
	if err != nil {
		p.AddWarning(err)
	}

	external := make([]folderstorage.Account, 0, len(mail))
	for _, a := range mail {
		if a.Default {
			continue
		}
		external = append(external, a)
	}
	if unified {
		external = append(external, folderstorage.Account{
			ID:           folderstorage.UnifiedInboxServiceID,
			ServiceID:    folderstorage.UnifiedInboxServiceID,
			DisplayName:  "Unified Inbox",
			ContentType:  models.ContentTypeMail,
			RootFolderID: folderstorage.UnifiedInboxServiceID,
		})
	}
	folderstorage.SortMailAccounts(external)
	for _, a := range external {
		out = append(out, models.OrderingKey{FolderID: a.RootFolderID, Ordinal: ordinal, Name: a.DisplayName})
		ordinal++
	}

	messaging, err := e.accounts.MessagingAccounts(ctx, p)
	if err != nil {
		if domain.IsTransientBackend(err) {
			p.AddWarning(err)
			messaging = nil
		} else {
			return nil, err
		}
	}
	folderstorage.SortAccountsByName(messaging)
	for _, a := range messaging {
		out = append(out, models.OrderingKey{FolderID: a.RootFolderID, Ordinal: ordinal, Name: a.DisplayName})
		ordinal++
	}

	return out, nil
}

// infostoreSubfolders lists the infostore root: real children merged with
// delta children, then the file-storage account roots appended by name.
func (e *Engine) infostoreSubfolders(ctx context.Context, p *folderstorage.Parameters, mirror *Mirror) ([]models.OrderingKey, error) {
	m := NewNameMultimap(p.Locale)

	children, err := e.listRealChildren(ctx, models.InfostoreFolderID, p, mirror)
	if err != nil {
		return nil, err
	}
	for _, n := range children {
		m.Add(n.name, n.id)
	}
	e.addDeltaChildren(m, mirror, models.InfostoreFolderID)
	keys := m.Flatten(0)

	stores, err := e.accounts.FileStorageAccounts(ctx, p)
	if err != nil {
		if domain.IsTransientBackend(err) {
			p.AddWarning(err)
			stores = nil
		} else {
			return nil, err
		}
	}
	folderstorage.SortAccountsByName(stores)
	ordinal := len(keys)
	for _, a := range stores {
		keys = append(keys, models.OrderingKey{FolderID: a.RootFolderID, Ordinal: ordinal, Name: a.DisplayName})
		ordinal++
	}
	return keys, nil
}

// genericSubfolders lists an ordinary folder: real children (delta-shadow
// filtered for default folders and the public root) merged with delta
// children.
func (e *Engine) genericSubfolders(ctx context.Context, treeID, parentID string, p *folderstorage.Parameters, mirror *Mirror) ([]models.OrderingKey, error) {
	storage, err := e.registry.ByFolderID(models.RealTreeID, parentID)
	if err != nil {
		return nil, err
	}

	var parent *models.Folder
	var keys []models.OrderingKey
	err = folderstorage.WithTransaction(storage, p, false, func() error {
		f, ferr := storage.Folder(ctx, models.RealTreeID, parentID, p)
		if ferr != nil {
			return ferr
		}
		parent = f
		ks, lerr := storage.Subfolders(ctx, models.RealTreeID, parentID, p)
		if lerr != nil {
			return lerr
		}
		keys = ks
		return nil
	})
	if err != nil {
		if healed := e.healStaleDelta(ctx, storage, treeID, parentID, p, mirror); healed != nil {
			return nil, healed
		}
		return nil, wrapStorageErr(err)
	}

	filterShadowed := parent.DefaultFolder || parentID == models.PublicFolderID
	m := NewNameMultimap(p.Locale)
	for _, k := range keys {
		if filterShadowed && mirror.ContainsFolder(k.FolderID) {
			continue
		}
		m.Add(k.Name, k.FolderID)
	}
	e.addDeltaChildren(m, mirror, parentID)
	return m.Flatten(0), nil
}

// CreateFolder creates a folder below a virtual parent. The folder row is
// created in the storage owning the parent's content type; when the virtual
// parent differs from the real parent a delta row records the placement.
func (e *Engine) CreateFolder(ctx context.Context, treeID string, folder *models.Folder, p *folderstorage.Parameters, mirror *Mirror) (string, error) {
	if err := e.ensureMirror(ctx, mirror); err != nil {
		return "", err
	}

	storage, err := e.registry.ByContentType(models.RealTreeID, folder.ContentType)
	if err != nil {
		return "", err
	}

	realParent := folder.ParentID
	virtualParent := ""
	if isPseudoID(folder.ParentID) || mirror.ContainsFolder(folder.ParentID) {
		// The virtual parent has no real counterpart; create below the
		// storage's default location and remember the virtual placement.
		virtualParent = folder.ParentID
		realParent, err = storage.DefaultFolderID(ctx, p.UserID, models.RealTreeID, folder.ContentType, folder.Type, p)
		if err != nil {
			return "", wrapStorageErr(err)
		}
	}

	created := folder.Clone()
	created.ParentID = realParent

	var newID string
	err = folderstorage.WithTransaction(storage, p, true, func() error {
		id, cerr := storage.CreateFolder(ctx, created, p)
		newID = id
		return cerr
	})
	if err != nil {
		return "", wrapStorageErr(err)
	}

	if virtualParent != "" {
		entry := &repositories.DeltaEntry{
			ContextID: p.ContextID,
			TreeID:    treeID,
			UserID:    p.UserID,
			FolderID:  newID,
			ParentID:  virtualParent,
			Name:      folder.Name,
		}
		if err := e.delta.Insert(ctx, entry); err != nil {
			// Without the delta row the folder would be stranded at the
			// storage's default location and a retry would duplicate it.
			cerr := folderstorage.WithTransaction(storage, p, true, func() error {
				return storage.DeleteFolder(ctx, models.RealTreeID, newID, p)
			})
			if cerr != nil {
				e.logger.Warn("failed to remove folder after delta insert failure",
					"tree_id", treeID, "folder_id", newID, "error", cerr)
			}
			return "", err
		}
	}

	mirror.Invalidate()
	e.cache.Clear()
	e.logger.Info("folder created", "tree_id", treeID, "folder_id", newID, "name", folder.Name)
	return newID, nil
}

// UpdateFolder records a rename and/or re-parenting as a delta override.
func (e *Engine) UpdateFolder(ctx context.Context, treeID, folderID, newName, newParentID string, p *folderstorage.Parameters, mirror *Mirror) error {
	if err := e.ensureMirror(ctx, mirror); err != nil {
		return err
	}
	if newName == "" && newParentID == "" {
		return &domain.ValidationError{Message: "nothing to update"}
	}

	key := mirror.Key()
	entry, ok := mirror.Entry(folderID)
	if !ok {
		entry = repositories.DeltaEntry{
			ContextID: key.ContextID,
			TreeID:    key.TreeID,
			UserID:    key.UserID,
			FolderID:  folderID,
		}
	}
	if newName != "" {
		entry.Name = newName
	}
	if newParentID != "" {
		entry.ParentID = newParentID
	}
	entry.ModifiedBy = p.UserID

	var err error
	if ok {
		err = e.delta.Update(ctx, &entry)
	} else {
		err = e.delta.Insert(ctx, &entry)
	}
	if err != nil {
		return err
	}

	mirror.Invalidate()
	e.cache.Clear()
	e.logger.Info("folder override stored", "tree_id", treeID, "folder_id", folderID,
		"name", newName, "parent_id", newParentID)
	return nil
}

// DeleteFolder deletes a folder from its real storage and drops its delta
// row, then notifies every live session of the user so stale mirrors clear.
func (e *Engine) DeleteFolder(ctx context.Context, treeID, folderID string, p *folderstorage.Parameters, mirror *Mirror) error {
	if err := e.ensureMirror(ctx, mirror); err != nil {
		return err
	}

	storage, err := e.registry.ByFolderID(models.RealTreeID, folderID)
	if err != nil {
		return err
	}

	err = folderstorage.WithTransaction(storage, p, true, func() error {
		return storage.DeleteFolder(ctx, models.RealTreeID, folderID, p)
	})
	if err != nil {
		return wrapStorageErr(err)
	}

	if mirror.ContainsFolder(folderID) {
		if derr := e.delta.Delete(ctx, mirror.Key(), folderID); derr != nil {
			return derr
		}
	}

	mirror.Invalidate()
	e.cache.Clear()
	if e.invalidator != nil {
		e.invalidator.FolderDeleted(p.UserID, p.ContextID, treeID, folderID)
	}
	e.logger.Info("folder deleted", "tree_id", treeID, "folder_id", folderID)
	return nil
}

// DefaultContentType reports the content type new folders default to, taken
// from the storage owning the private subtree.
func (e *Engine) DefaultContentType() (models.ContentType, error) {
	storage, err := e.registry.ByFolderID(models.RealTreeID, models.PrivateFolderID)
	if err != nil {
		return "", err
	}
	return storage.DefaultContentType(), nil
}

// TypeByParent reports the visibility class a folder created below parentID
// would get. Reserved parents decide directly; ordinary parents pass their
// own class down, with private as the fallback for system folders.
func (e *Engine) TypeByParent(ctx context.Context, treeID, parentID string, p *folderstorage.Parameters, mirror *Mirror) (models.FolderType, error) {
	switch parentID {
	case models.RootFolderID, models.PrivateFolderID, models.PrimaryMailRootID:
		return models.TypePrivate, nil
	case models.PublicFolderID:
		return models.TypePublic, nil
	case models.SharedFolderID:
		return models.TypeShared, nil
	}

	w, err := e.GetFolder(ctx, treeID, parentID, p, mirror)
	if err != nil {
		return models.TypeNone, err
	}
	switch t := w.Type(); t {
	case models.TypePrivate, models.TypePublic, models.TypeShared:
		return t, nil
	}
	return models.TypePrivate, nil
}

// UserSharedFolders lists the folders below the shared root that other users
// granted the caller access to. Per-folder failures degrade to warnings.
func (e *Engine) UserSharedFolders(ctx context.Context, treeID string, p *folderstorage.Parameters, mirror *Mirror) ([]*models.Folder, error) {
	keys, err := e.Subfolders(ctx, treeID, models.SharedFolderID, p, mirror)
	if err != nil {
		return nil, err
	}

	var out []*models.Folder
	for _, k := range keys {
		w, err := e.GetFolder(ctx, treeID, k.FolderID, p, mirror)
		if err != nil {
			p.AddWarning(err)
			continue
		}
		f := w.Snapshot()
		if sharedWith(f, p.UserID) {
			out = append(out, f)
		}
	}
	return out, nil
}

// sharedWith reports whether the folder grants userID access without userID
// owning it.
func sharedWith(f *models.Folder, userID string) bool {
	for _, perm := range f.Permissions {
		if perm.Entity == userID && !perm.Admin {
			return true
		}
	}
	return false
}

// wrapStorageErr keeps typed domain errors intact and wraps everything else
// so no backend-native error type crosses the overlay boundary.
func wrapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	var httpErr domain.HTTPError
	switch {
	case errors.As(err, &httpErr),
		errors.Is(err, domain.ErrNoStorage),
		errors.Is(err, domain.ErrTemporary),
		errors.Is(err, domain.ErrNotFound),
		domain.IsTransientBackend(err):
		return err
	}
	var sqlErr *domain.SQLError
	if errors.As(err, &sqlErr) {
		return err
	}
	return fmt.Errorf("folder storage: %w", domain.Unexpected(err))
}
