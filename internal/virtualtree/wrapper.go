package virtualtree

import (
	"time"

	"arbor/internal/domain/models"
)

// Wrapper decorates one real folder with presentation overrides. Every
// accessor returns the override when present and delegates to the wrapped
// folder otherwise; the wrapped folder itself is never mutated. A wrapper is
// created per request and discarded after the response is serialized - the
// persisted form of an override lives in the virtual-delta table, not here.
type Wrapper struct {
	real *models.Folder

	name     *string
	parentID *string
	newID    *string

	permissions    []models.Permission
	permissionsSet bool

	// subfoldersSet distinguishes "no subfolders" (set, empty) and
	// "unknown, must be listed" (set, nil) from plain delegation (unset).
	subfolderIDs  []string
	subfoldersSet bool

	subscribed           *bool
	subscribedSubfolders *bool

	lastModified *time.Time
	modifiedBy   *string
}

// Wrap builds a wrapper around a real folder.
func Wrap(real *models.Folder) *Wrapper {
	return &Wrapper{real: real}
}

// Real exposes the wrapped folder (read-only to the overlay).
func (w *Wrapper) Real() *models.Folder { return w.real }

func (w *Wrapper) ID() string { return w.real.ID }

func (w *Wrapper) Name() string {
	if w.name != nil {
		return *w.name
	}
	return w.real.Name
}

func (w *Wrapper) SetName(name string) { w.name = &name }

func (w *Wrapper) ParentID() string {
	if w.parentID != nil {
		return *w.parentID
	}
	return w.real.ParentID
}

func (w *Wrapper) SetParentID(parentID string) { w.parentID = &parentID }

// NewID is the pending rename target, empty when none is staged.
func (w *Wrapper) NewID() string {
	if w.newID != nil {
		return *w.newID
	}
	return ""
}

func (w *Wrapper) SetNewID(newID string) { w.newID = &newID }

func (w *Wrapper) Permissions() []models.Permission {
	if w.permissionsSet {
		return w.permissions
	}
	return w.real.Permissions
}

func (w *Wrapper) SetPermissions(perms []models.Permission) {
	w.permissions = perms
	w.permissionsSet = true
}

// SubfolderIDs returns the subfolder id list and whether it is known. An
// explicit empty list means "no subfolders"; unknown means the aggregation
// engine must recompute by listing.
func (w *Wrapper) SubfolderIDs() ([]string, bool) {
	if w.subfoldersSet {
		return w.subfolderIDs, w.subfolderIDs != nil
	}
	return w.real.SubfolderIDs, w.real.SubfolderIDs != nil
}

// SetSubfolderIDs overrides the subfolder list. A non-nil empty slice means
// "no subfolders".
func (w *Wrapper) SetSubfolderIDs(ids []string) {
	w.subfolderIDs = ids
	w.subfoldersSet = true
}

// ForceUnknownSubfolders marks the subfolder set as present-but-unknown so
// clients re-query by listing.
func (w *Wrapper) ForceUnknownSubfolders() {
	w.subfolderIDs = nil
	w.subfoldersSet = true
}

func (w *Wrapper) Subscribed() bool {
	if w.subscribed != nil {
		return *w.subscribed
	}
	return w.real.Subscribed
}

func (w *Wrapper) SetSubscribed(v bool) { w.subscribed = &v }

func (w *Wrapper) SubscribedSubfolders() bool {
	if w.subscribedSubfolders != nil {
		return *w.subscribedSubfolders
	}
	return w.real.SubscribedSubfolders
}

func (w *Wrapper) SetSubscribedSubfolders(v bool) { w.subscribedSubfolders = &v }

func (w *Wrapper) LastModified() time.Time {
	if w.lastModified != nil {
		return *w.lastModified
	}
	return w.real.LastModified
}

func (w *Wrapper) SetLastModified(t time.Time) { w.lastModified = &t }

func (w *Wrapper) ModifiedBy() string {
	if w.modifiedBy != nil {
		return *w.modifiedBy
	}
	return w.real.ModifiedBy
}

func (w *Wrapper) SetModifiedBy(userID string) { w.modifiedBy = &userID }

func (w *Wrapper) ContentType() models.ContentType { return w.real.ContentType }
func (w *Wrapper) Type() models.FolderType         { return w.real.Type }
func (w *Wrapper) DefaultFolder() bool             { return w.real.DefaultFolder }
func (w *Wrapper) AccountID() string               { return w.real.AccountID }

// Clone deep-copies the wrapper: the wrapped folder, the permission array and
// the subfolder array are duplicated; scalar overrides copy by value.
func (w *Wrapper) Clone() *Wrapper {
	c := *w
	c.real = w.real.Clone()
	if w.permissions != nil {
		c.permissions = make([]models.Permission, len(w.permissions))
		copy(c.permissions, w.permissions)
	}
	if w.subfolderIDs != nil {
		c.subfolderIDs = make([]string, len(w.subfolderIDs))
		copy(c.subfolderIDs, w.subfolderIDs)
	}
	return &c
}

// Snapshot materializes the effective folder for serialization.
func (w *Wrapper) Snapshot() *models.Folder {
	f := w.real.Clone()
	f.Name = w.Name()
	f.ParentID = w.ParentID()
	f.Permissions = w.Permissions()
	if ids, known := w.SubfolderIDs(); known {
		f.SubfolderIDs = ids
	} else {
		f.SubfolderIDs = nil
	}
	f.Subscribed = w.Subscribed()
	f.SubscribedSubfolders = w.SubscribedSubfolders()
	f.LastModified = w.LastModified()
	f.ModifiedBy = w.ModifiedBy()
	return f
}
