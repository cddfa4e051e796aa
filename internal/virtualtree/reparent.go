package virtualtree

import (
	"strings"

	"arbor/internal/domain/models"
)

// ReparentConfig feeds the static re-parenting rules with deployment- and
// locale-dependent values.
type ReparentConfig struct {
	// PersonalInfostoreID is the configured personal infostore folder, shown
	// below the infostore root when ShowPersonalBelowInfostore is set.
	PersonalInfostoreID        string
	PersonalInfostoreName      string
	ShowPersonalBelowInfostore bool
	// TrashName is the locale-appropriate display name for file trash
	// folders re-parented under the infostore root.
	TrashName string
}

// reparentRule is one (predicate, action) pair of the static rule cascade.
type reparentRule struct {
	name    string
	matches func(w *Wrapper, cfg ReparentConfig) bool
	apply   func(w *Wrapper, cfg ReparentConfig)
}

func setParent(parentID string) func(*Wrapper, ReparentConfig) {
	return func(w *Wrapper, _ ReparentConfig) { w.SetParentID(parentID) }
}

// reparentRules is evaluated in order, first match wins. The rules are a pure
// function of folder id, type, content type and default-ness, applied only
// when no virtual-delta entry supplies the parent. Adding a rule is a data
// change.
var reparentRules = []reparentRule{
	{
		name: "public below private",
		matches: func(w *Wrapper, _ ReparentConfig) bool {
			return w.Type() == models.TypePublic && w.ID() != models.PublicFolderID
		},
		apply: setParent(models.PrivateFolderID),
	},
	{
		name: "shared below private",
		matches: func(w *Wrapper, _ ReparentConfig) bool {
			return w.Type() == models.TypeShared
		},
		apply: setParent(models.PrivateFolderID),
	},
	{
		name: "infostore root below private",
		matches: func(w *Wrapper, _ ReparentConfig) bool {
			return w.ID() == models.InfostoreFolderID
		},
		apply: func(w *Wrapper, _ ReparentConfig) {
			w.SetParentID(models.PrivateFolderID)
			w.ForceUnknownSubfolders()
		},
	},
	{
		name: "primary default mail folder below private",
		matches: func(w *Wrapper, _ ReparentConfig) bool {
			return w.DefaultFolder() && w.ContentType() == models.ContentTypeMail &&
				strings.HasPrefix(w.ID(), models.PrimaryMailRootID+"/")
		},
		apply: setParent(models.PrivateFolderID),
	},
	{
		name: "secondary default mail folder below private",
		matches: func(w *Wrapper, _ ReparentConfig) bool {
			return w.DefaultFolder() && w.ContentType() == models.ContentTypeMail
		},
		apply: setParent(models.PrivateFolderID),
	},
	{
		name: "child of unreachable primary mail root below private",
		matches: func(w *Wrapper, _ ReparentConfig) bool {
			return w.ContentType() == models.ContentTypeMail &&
				w.ParentID() == models.PrimaryMailRootID
		},
		apply: setParent(models.PrivateFolderID),
	},
	{
		name: "file-storage account root below infostore",
		matches: func(w *Wrapper, _ ReparentConfig) bool {
			return w.DefaultFolder() && w.ContentType() == models.ContentTypeInfostore &&
				w.AccountID() != "" && w.Type() != models.TypeTrash
		},
		apply: setParent(models.InfostoreFolderID),
	},
	{
		name: "personal infostore below infostore root",
		matches: func(w *Wrapper, cfg ReparentConfig) bool {
			return cfg.ShowPersonalBelowInfostore && cfg.PersonalInfostoreID != "" &&
				w.ID() == cfg.PersonalInfostoreID
		},
		apply: func(w *Wrapper, cfg ReparentConfig) {
			w.SetParentID(models.InfostoreFolderID)
			if cfg.PersonalInfostoreName != "" {
				w.SetName(cfg.PersonalInfostoreName)
			}
		},
	},
	{
		name: "file trash below infostore root",
		matches: func(w *Wrapper, _ ReparentConfig) bool {
			return w.Type() == models.TypeTrash && w.ContentType() == models.ContentTypeInfostore
		},
		apply: func(w *Wrapper, cfg ReparentConfig) {
			w.SetParentID(models.InfostoreFolderID)
			if cfg.TrashName != "" {
				w.SetName(cfg.TrashName)
			}
		},
	},
}

// ApplyModifications runs the static re-parenting cascade on a wrapper that
// has no virtual-delta entry. First matching rule wins; no rule leaves the
// wrapper untouched.
func ApplyModifications(w *Wrapper, cfg ReparentConfig) string {
	for _, rule := range reparentRules {
		if rule.matches(w, cfg) {
			rule.apply(w, cfg)
			return rule.name
		}
	}
	return ""
}
