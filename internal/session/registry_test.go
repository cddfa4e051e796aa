package session

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
)

// emptyDelta satisfies DeltaRepository with no rows, enough to load mirrors.
type emptyDelta struct{}

func (emptyDelta) Get(ctx context.Context, key repositories.DeltaKey, folderID string) (*repositories.DeltaEntry, error) {
	return nil, nil
}
func (emptyDelta) List(ctx context.Context, key repositories.DeltaKey) ([]repositories.DeltaEntry, error) {
	return nil, nil
}
func (emptyDelta) Insert(ctx context.Context, entry *repositories.DeltaEntry) error { return nil }
func (emptyDelta) Update(ctx context.Context, entry *repositories.DeltaEntry) error { return nil }
func (emptyDelta) Delete(ctx context.Context, key repositories.DeltaKey, folderID string) error {
	return nil
}
func (emptyDelta) DeleteAll(ctx context.Context, key repositories.DeltaKey, folderIDs []string) error {
	return nil
}
func (emptyDelta) DuplicateNameGroups(ctx context.Context, key repositories.DeltaKey) (map[string][]string, error) {
	return nil, nil
}

func TestRegistryAcquireIsIdempotent(t *testing.T) {
	r := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))

	a := r.Acquire("s1", "u1", "c1")
	b := r.Acquire("s1", "u1", "c1")
	if a != b {
		t.Fatal("Acquire returned a new session for a known id")
	}
}

func TestSessionMirrorPerTree(t *testing.T) {
	r := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s := r.Acquire("s1", "u1", "c1")

	m1 := s.Mirror(models.VirtualTreeID)
	m2 := s.Mirror(models.VirtualTreeID)
	if m1 != m2 {
		t.Fatal("same tree produced different mirrors")
	}
	if got := m1.Key(); got.UserID != "u1" || got.ContextID != "c1" || got.TreeID != models.VirtualTreeID {
		t.Fatalf("mirror key = %+v, want the session's scope", got)
	}
}

func TestFolderDeletedInvalidatesAllUserSessions(t *testing.T) {
	r := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))

	s1 := r.Acquire("s1", "u1", "c1")
	s2 := r.Acquire("s2", "u1", "c1")
	other := r.Acquire("s3", "u2", "c1")

	// Mark every mirror loaded by faking a successful initialization.
	for _, s := range []*Session{s1, s2, other} {
		m := s.Mirror(models.VirtualTreeID)
		if err := m.Initialize(context.Background(), emptyDelta{}); err != nil {
			t.Fatalf("initialize mirror: %v", err)
		}
	}

	r.FolderDeleted("u1", "c1", models.VirtualTreeID, "200")

	if s1.Mirror(models.VirtualTreeID).Loaded() {
		t.Error("session s1 mirror survived the broadcast")
	}
	if s2.Mirror(models.VirtualTreeID).Loaded() {
		t.Error("session s2 mirror survived the broadcast")
	}
	if !other.Mirror(models.VirtualTreeID).Loaded() {
		t.Error("unrelated user's mirror was invalidated")
	}
}

func TestRemoveStopsBroadcast(t *testing.T) {
	r := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s := r.Acquire("s1", "u1", "c1")
	m := s.Mirror(models.VirtualTreeID)
	if err := m.Initialize(context.Background(), emptyDelta{}); err != nil {
		t.Fatalf("initialize mirror: %v", err)
	}

	r.Remove("s1")
	r.FolderDeleted("u1", "c1", models.VirtualTreeID, "200")

	if !m.Loaded() {
		t.Error("removed session still receives invalidations")
	}
}
