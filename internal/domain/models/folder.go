package models

import (
	"time"
)

// ContentType is a backend-declared domain tag used to route default-folder
// and storage-lookup requests.
type ContentType string

const (
	ContentTypeMail      ContentType = "mail"
	ContentTypeCalendar  ContentType = "calendar"
	ContentTypeContacts  ContentType = "contacts"
	ContentTypeTasks     ContentType = "tasks"
	ContentTypeInfostore ContentType = "infostore"
	ContentTypeMessaging ContentType = "messaging"
	ContentTypeSystem    ContentType = "system"
)

// FolderType distinguishes the visibility class of a folder.
type FolderType int

const (
	TypeNone FolderType = iota
	TypeSystem
	TypePrivate
	TypePublic
	TypeShared
	TypeTrash
)

// Reserved tree identifiers. Exactly one real tree exists; the virtual tree
// is always derived from it.
const (
	RealTreeID    = "0"
	VirtualTreeID = "1"
)

// Reserved folder identifiers of the real tree.
const (
	RootFolderID          = "0"
	PrivateFolderID       = "1"
	PublicFolderID        = "2"
	SharedFolderID        = "3"
	InfostoreFolderID     = "9"
	UserInfostoreFolderID = "10"

	// PrimaryMailRootID is the default root of the primary mail account.
	// Mail folder ids are composite: "default<N>/<path>".
	PrimaryMailRootID = "default0"
	PrimaryInboxID    = "default0/INBOX"
)

// Permission carries the permission bits of one entity on one folder.
type Permission struct {
	Entity     string `json:"entity"`
	Group      bool   `json:"group"`
	Admin      bool   `json:"admin"`
	FolderBits int    `json:"folder_bits"`
	ReadBits   int    `json:"read_bits"`
	WriteBits  int    `json:"write_bits"`
	DeleteBits int    `json:"delete_bits"`
}

// Folder is the authoritative folder object owned by a backend storage. It is
// read-only to the overlay; only its owning storage mutates it. A nil
// SubfolderIDs slice means "unknown, must be listed" as opposed to an empty
// slice meaning "no subfolders".
type Folder struct {
	ID                   string       `json:"id"`
	ParentID             string       `json:"parent_id"`
	TreeID               string       `json:"tree_id"`
	Name                 string       `json:"name"`
	ContentType          ContentType  `json:"content_type"`
	Type                 FolderType   `json:"type"`
	Permissions          []Permission `json:"permissions,omitempty"`
	SubfolderIDs         []string     `json:"subfolder_ids,omitempty"`
	Subscribed           bool         `json:"subscribed"`
	SubscribedSubfolders bool         `json:"subscribed_subfolders"`
	DefaultFolder        bool         `json:"default_folder"`
	AccountID            string       `json:"account_id,omitempty"`
	LastModified         time.Time    `json:"last_modified"`
	ModifiedBy           string       `json:"modified_by"`
}

// Clone returns a deep copy of the folder including permission and subfolder
// slices.
func (f *Folder) Clone() *Folder {
	if f == nil {
		return nil
	}
	c := *f
	if f.Permissions != nil {
		c.Permissions = make([]Permission, len(f.Permissions))
		copy(c.Permissions, f.Permissions)
	}
	if f.SubfolderIDs != nil {
		c.SubfolderIDs = make([]string, len(f.SubfolderIDs))
		copy(c.SubfolderIDs, f.SubfolderIDs)
	}
	return &c
}

// HasSubfolders reports whether the folder is known to have subfolders. The
// second return value is false when the subfolder set is unknown and must be
// listed.
func (f *Folder) HasSubfolders() (bool, bool) {
	if f.SubfolderIDs == nil {
		return false, false
	}
	return len(f.SubfolderIDs) > 0, true
}
