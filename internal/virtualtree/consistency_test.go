package virtualtree

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/text/language"

	"arbor/internal/domain"
	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
	"arbor/internal/folderstorage"
)

func repairerFixture(t *testing.T, storages ...folderstorage.Storage) (*Repairer, *memDelta, *folderstorage.Registry) {
	t.Helper()
	registry := folderstorage.NewRegistry()
	for _, s := range storages {
		if err := registry.Register(models.RealTreeID, s); err != nil {
			t.Fatalf("register storage: %v", err)
		}
	}
	delta := newMemDelta()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRepairer(registry, delta, NewCache(time.Minute), logger), delta, registry
}

func deltaRow(folderID, parentID, name string) *repositories.DeltaEntry {
	return &repositories.DeltaEntry{
		ContextID: "c1", TreeID: models.VirtualTreeID, UserID: "u1",
		FolderID: folderID, ParentID: parentID, Name: name,
	}
}

func TestCheckConsistencyRepairs(t *testing.T) {
	db := newMemStorage("", true, models.ContentTypeCalendar)
	db.add(&models.Folder{ID: "521", ParentID: models.PrivateFolderID, Name: "Reports"})
	db.add(&models.Folder{ID: "520", ParentID: "521", Name: "Q1"})
	db.add(&models.Folder{ID: "511", ParentID: "510", Name: "Kid"})

	r, delta, _ := repairerFixture(t, db)
	ctx := context.Background()

	// 500: real folder gone, no virtual children -> orphaned row, pruned.
	// 510: real folder gone but 511 still hangs below it -> restored.
	// 511: rename override on an existing folder -> untouched.
	// 520: delta parent equals the real parent, no rename -> redundant, pruned.
	_ = delta.Insert(ctx, deltaRow("500", models.PrivateFolderID, "Gone"))
	_ = delta.Insert(ctx, deltaRow("510", models.PrivateFolderID, "Projects"))
	_ = delta.Insert(ctx, deltaRow("511", "510", "Kid"))
	_ = delta.Insert(ctx, deltaRow("520", "521", ""))

	key := repositories.DeltaKey{ContextID: "c1", TreeID: models.VirtualTreeID, UserID: "u1"}
	mirror := NewMirror(key)
	p := folderstorage.NewParameters("u1", "c1", language.English)

	if err := r.CheckConsistency(ctx, models.VirtualTreeID, p, mirror); err != nil {
		t.Fatalf("CheckConsistency() error = %v", err)
	}

	if _, err := delta.Get(ctx, key, "500"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("orphaned row 500 survived")
	}
	if _, err := delta.Get(ctx, key, "520"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("redundant row 520 survived")
	}
	if _, err := delta.Get(ctx, key, "510"); err != nil {
		t.Error("row 510 pruned although its folder was restored")
	}
	if _, err := delta.Get(ctx, key, "511"); err != nil {
		t.Error("rename override 511 pruned")
	}
	if len(db.restored) != 1 || db.restored[0] != "510" {
		t.Errorf("restored = %v, want only 510", db.restored)
	}
	if mirror.Loaded() {
		t.Error("mirror still loaded after repairs, want invalidated")
	}
	if w := p.Warnings(); len(w) != 0 {
		t.Errorf("warnings = %v, want none", w)
	}
}

func TestCheckConsistencyNoChangesKeepsMirror(t *testing.T) {
	db := newMemStorage("", true, models.ContentTypeCalendar)
	db.add(&models.Folder{ID: "511", ParentID: "510", Name: "Kid"})

	r, delta, _ := repairerFixture(t, db)
	ctx := context.Background()
	_ = delta.Insert(ctx, deltaRow("511", "510", "Kid"))

	key := repositories.DeltaKey{ContextID: "c1", TreeID: models.VirtualTreeID, UserID: "u1"}
	mirror := NewMirror(key)
	p := folderstorage.NewParameters("u1", "c1", language.English)

	if err := r.CheckConsistency(ctx, models.VirtualTreeID, p, mirror); err != nil {
		t.Fatalf("CheckConsistency() error = %v", err)
	}
	if !mirror.Loaded() {
		t.Error("mirror invalidated although nothing changed")
	}
}

func TestCheckConsistencyAggregatesFailures(t *testing.T) {
	// Only composite mail ids are covered; the plain id has no storage, which
	// must surface as a warning without blocking the sibling repair.
	mail := newMemStorage("default", false, models.ContentTypeMail)

	r, delta, _ := repairerFixture(t, mail)
	ctx := context.Background()
	_ = delta.Insert(ctx, deltaRow("default0/X", models.PrivateFolderID, "X"))
	_ = delta.Insert(ctx, deltaRow("999", models.PrivateFolderID, "Orphan"))

	key := repositories.DeltaKey{ContextID: "c1", TreeID: models.VirtualTreeID, UserID: "u1"}
	mirror := NewMirror(key)
	p := folderstorage.NewParameters("u1", "c1", language.English)

	if err := r.CheckConsistency(ctx, models.VirtualTreeID, p, mirror); err != nil {
		t.Fatalf("CheckConsistency() error = %v, want aggregate-and-continue", err)
	}

	if _, err := delta.Get(ctx, key, "default0/X"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("repairable row default0/X survived a sibling failure")
	}
	if _, err := delta.Get(ctx, key, "999"); err != nil {
		t.Error("unrepairable row 999 was dropped")
	}

	warnings := p.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("warnings = %d, want 1 aggregate", len(warnings))
	}
	if !errors.Is(warnings[0], domain.ErrNoStorage) {
		t.Errorf("warning = %v, want the no-storage failure inside", warnings[0])
	}
}
