package virtualtree

import (
	"testing"
	"time"

	"arbor/internal/domain/models"
)

func newRealFolder() *models.Folder {
	return &models.Folder{
		ID:           "137",
		ParentID:     models.PrivateFolderID,
		Name:         "Archive",
		ContentType:  models.ContentTypeMail,
		Permissions:  []models.Permission{{Entity: "u1", Admin: true}},
		SubfolderIDs: []string{"138", "139"},
		Subscribed:   true,
		LastModified: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ModifiedBy:   "u1",
	}
}

func TestWrapperDelegatesWithoutOverrides(t *testing.T) {
	real := newRealFolder()
	w := Wrap(real)

	if got := w.Name(); got != "Archive" {
		t.Errorf("Name() = %q, want %q", got, "Archive")
	}
	if got := w.ParentID(); got != models.PrivateFolderID {
		t.Errorf("ParentID() = %q, want %q", got, models.PrivateFolderID)
	}
	ids, known := w.SubfolderIDs()
	if !known || len(ids) != 2 {
		t.Errorf("SubfolderIDs() = %v, %v, want 2 known ids", ids, known)
	}
	if !w.Subscribed() {
		t.Error("Subscribed() = false, want delegation to real folder")
	}
}

func TestWrapperOverrides(t *testing.T) {
	w := Wrap(newRealFolder())

	w.SetName("My Archive")
	w.SetParentID(models.PublicFolderID)
	w.SetSubscribed(false)
	w.SetNewID("137b")

	if got := w.Name(); got != "My Archive" {
		t.Errorf("Name() = %q, want override", got)
	}
	if got := w.ParentID(); got != models.PublicFolderID {
		t.Errorf("ParentID() = %q, want override", got)
	}
	if w.Subscribed() {
		t.Error("Subscribed() = true, want override false")
	}
	if got := w.NewID(); got != "137b" {
		t.Errorf("NewID() = %q, want %q", got, "137b")
	}
	if got := w.Real().Name; got != "Archive" {
		t.Errorf("wrapped folder mutated: Name = %q", got)
	}
}

func TestWrapperSubfolderTriState(t *testing.T) {
	tests := []struct {
		name      string
		prepare   func(w *Wrapper)
		wantIDs   int
		wantKnown bool
	}{
		{
			name:      "delegation",
			prepare:   func(w *Wrapper) {},
			wantIDs:   2,
			wantKnown: true,
		},
		{
			name:      "explicit empty means no subfolders",
			prepare:   func(w *Wrapper) { w.SetSubfolderIDs([]string{}) },
			wantIDs:   0,
			wantKnown: true,
		},
		{
			name:      "forced unknown means recompute",
			prepare:   func(w *Wrapper) { w.ForceUnknownSubfolders() },
			wantIDs:   0,
			wantKnown: false,
		},
		{
			name: "override list",
			prepare: func(w *Wrapper) {
				w.SetSubfolderIDs([]string{"200"})
			},
			wantIDs:   1,
			wantKnown: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Wrap(newRealFolder())
			tt.prepare(w)
			ids, known := w.SubfolderIDs()
			if known != tt.wantKnown {
				t.Fatalf("known = %v, want %v", known, tt.wantKnown)
			}
			if len(ids) != tt.wantIDs {
				t.Fatalf("len(ids) = %d, want %d", len(ids), tt.wantIDs)
			}
		})
	}
}

func TestWrapperCloneIsDeep(t *testing.T) {
	w := Wrap(newRealFolder())
	w.SetPermissions([]models.Permission{{Entity: "u2"}})
	w.SetSubfolderIDs([]string{"300"})

	c := w.Clone()
	c.Real().Name = "mutated"
	c.Permissions()[0].Entity = "u3"
	ids, _ := c.SubfolderIDs()
	ids[0] = "999"

	if w.Real().Name != "Archive" {
		t.Error("clone shares wrapped folder")
	}
	if w.Permissions()[0].Entity != "u2" {
		t.Error("clone shares permission array")
	}
	if got, _ := w.SubfolderIDs(); got[0] != "300" {
		t.Error("clone shares subfolder array")
	}
}

func TestWrapperSnapshot(t *testing.T) {
	w := Wrap(newRealFolder())
	w.SetName("Renamed")
	w.ForceUnknownSubfolders()

	f := w.Snapshot()
	if f.Name != "Renamed" {
		t.Errorf("Snapshot Name = %q, want %q", f.Name, "Renamed")
	}
	if f.SubfolderIDs != nil {
		t.Errorf("Snapshot SubfolderIDs = %v, want nil for unknown", f.SubfolderIDs)
	}
}
