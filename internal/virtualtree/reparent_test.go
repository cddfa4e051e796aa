package virtualtree

import (
	"testing"

	"arbor/internal/domain/models"
)

func TestApplyModifications(t *testing.T) {
	cfg := ReparentConfig{
		PersonalInfostoreID:        "42",
		PersonalInfostoreName:      "My files",
		ShowPersonalBelowInfostore: true,
		TrashName:                  "Deleted files",
	}

	tests := []struct {
		name       string
		folder     *models.Folder
		wantParent string
		wantName   string
		wantRule   string
	}{
		{
			name:       "public folder below private",
			folder:     &models.Folder{ID: "55", ParentID: models.PublicFolderID, Name: "Team", Type: models.TypePublic},
			wantParent: models.PrivateFolderID,
			wantName:   "Team",
			wantRule:   "public below private",
		},
		{
			name:       "shared folder below private",
			folder:     &models.Folder{ID: "56", ParentID: models.SharedFolderID, Name: "From Bob", Type: models.TypeShared},
			wantParent: models.PrivateFolderID,
			wantName:   "From Bob",
			wantRule:   "shared below private",
		},
		{
			name:       "infostore root below private",
			folder:     &models.Folder{ID: models.InfostoreFolderID, ParentID: models.RootFolderID, Name: "Infostore", Type: models.TypeSystem},
			wantParent: models.PrivateFolderID,
			wantName:   "Infostore",
			wantRule:   "infostore root below private",
		},
		{
			name: "primary default mail folder below private",
			folder: &models.Folder{
				ID: "default0/Sent", ParentID: models.PrimaryMailRootID, Name: "Sent",
				ContentType: models.ContentTypeMail, DefaultFolder: true,
			},
			wantParent: models.PrivateFolderID,
			wantName:   "Sent",
			wantRule:   "primary default mail folder below private",
		},
		{
			name: "secondary default mail folder below private",
			folder: &models.Folder{
				ID: "default1/INBOX", ParentID: "default1", Name: "Inbox",
				ContentType: models.ContentTypeMail, DefaultFolder: true,
			},
			wantParent: models.PrivateFolderID,
			wantName:   "Inbox",
			wantRule:   "secondary default mail folder below private",
		},
		{
			name: "child of unreachable primary mail root below private",
			folder: &models.Folder{
				ID: "default0/Newsletters", ParentID: models.PrimaryMailRootID, Name: "Newsletters",
				ContentType: models.ContentTypeMail,
			},
			wantParent: models.PrivateFolderID,
			wantName:   "Newsletters",
			wantRule:   "child of unreachable primary mail root below private",
		},
		{
			name: "file-storage account root below infostore",
			folder: &models.Folder{
				ID: "drive:root", ParentID: models.RootFolderID, Name: "Drive",
				ContentType: models.ContentTypeInfostore, DefaultFolder: true, AccountID: "drive",
			},
			wantParent: models.InfostoreFolderID,
			wantName:   "Drive",
			wantRule:   "file-storage account root below infostore",
		},
		{
			name:       "personal infostore below infostore root",
			folder:     &models.Folder{ID: "42", ParentID: models.UserInfostoreFolderID, Name: "42"},
			wantParent: models.InfostoreFolderID,
			wantName:   "My files",
			wantRule:   "personal infostore below infostore root",
		},
		{
			name: "file trash below infostore root",
			folder: &models.Folder{
				ID: "drive:trash", ParentID: "drive:root", Name: "trash",
				ContentType: models.ContentTypeInfostore, Type: models.TypeTrash, AccountID: "drive",
			},
			wantParent: models.InfostoreFolderID,
			wantName:   "Deleted files",
			wantRule:   "file trash below infostore root",
		},
		{
			name:       "ordinary private folder untouched",
			folder:     &models.Folder{ID: "137", ParentID: "120", Name: "Projects", Type: models.TypePrivate},
			wantParent: "120",
			wantName:   "Projects",
			wantRule:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Wrap(tt.folder)
			rule := ApplyModifications(w, cfg)
			if rule != tt.wantRule {
				t.Errorf("rule = %q, want %q", rule, tt.wantRule)
			}
			if got := w.ParentID(); got != tt.wantParent {
				t.Errorf("ParentID() = %q, want %q", got, tt.wantParent)
			}
			if got := w.Name(); got != tt.wantName {
				t.Errorf("Name() = %q, want %q", got, tt.wantName)
			}
		})
	}
}

func TestApplyModificationsIsDeterministic(t *testing.T) {
	cfg := ReparentConfig{TrashName: "Trash"}
	folder := &models.Folder{
		ID: "default1/INBOX", ParentID: "default1", Name: "Inbox",
		ContentType: models.ContentTypeMail, DefaultFolder: true,
	}

	first := Wrap(folder)
	ApplyModifications(first, cfg)
	second := Wrap(folder)
	ApplyModifications(second, cfg)

	if first.ParentID() != second.ParentID() {
		t.Fatalf("parent differs across runs: %q vs %q", first.ParentID(), second.ParentID())
	}
}
