package infostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"arbor/internal/domain"
	models "arbor/internal/domain/models/infostore"
	"arbor/internal/domain/repositories"
)

type fakeDocs struct {
	docs     map[string]*models.Document
	versions map[string][]models.Version
	nextID   int
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: make(map[string]*models.Document), versions: make(map[string][]models.Version)}
}

func (f *fakeDocs) Create(ctx context.Context, doc *models.Document) error {
	for _, d := range f.docs {
		if d.FolderID == doc.FolderID && d.FileName == doc.FileName {
			return fmt.Errorf("file name %q: %w", doc.FileName, domain.ErrConflict)
		}
	}
	f.nextID++
	doc.ID = fmt.Sprintf("doc-%d", f.nextID)
	doc.Version = 1
	doc.NumVersions = 1
	c := *doc
	f.docs[doc.ID] = &c
	f.versions[doc.ID] = []models.Version{{DocumentID: doc.ID, Number: 1, FileName: doc.FileName}}
	return nil
}

func (f *fakeDocs) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if d, ok := f.docs[id]; ok {
		c := *d
		return &c, nil
	}
	return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
}

func (f *fakeDocs) Update(ctx context.Context, doc *models.Document) error {
	if _, ok := f.docs[doc.ID]; !ok {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
	}
	c := *doc
	f.docs[doc.ID] = &c
	return nil
}

func (f *fakeDocs) Delete(ctx context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(f.docs, id)
	delete(f.versions, id)
	return nil
}

func (f *fakeDocs) ListByFolder(ctx context.Context, folderID string) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f.docs {
		if d.FolderID == folderID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDocs) AddVersion(ctx context.Context, v *models.Version) error {
	d, ok := f.docs[v.DocumentID]
	if !ok {
		return fmt.Errorf("document %s: %w", v.DocumentID, domain.ErrNotFound)
	}
	f.versions[v.DocumentID] = append(f.versions[v.DocumentID], *v)
	d.NumVersions++
	if v.Number > d.Version {
		d.Version = v.Number
	}
	return nil
}

func (f *fakeDocs) ListVersions(ctx context.Context, documentID string) ([]models.Version, error) {
	return f.versions[documentID], nil
}

func (f *fakeDocs) SetCurrentVersion(ctx context.Context, documentID string, number int) error {
	d, ok := f.docs[documentID]
	if !ok {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	for _, v := range f.versions[documentID] {
		if v.Number == number {
			d.Version = number
			return nil
		}
	}
	return fmt.Errorf("version %d: %w", number, domain.ErrNotFound)
}

type reservationCall struct {
	folderID string
	fileName string
	released bool
}

type fakeReservations struct {
	calls      []reservationCall
	reserveErr error
}

func (f *fakeReservations) Reserve(ctx context.Context, folderID, fileName, userID string, ttl time.Duration) (*models.Reservation, error) {
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	f.calls = append(f.calls, reservationCall{folderID: folderID, fileName: fileName})
	return &models.Reservation{FolderID: folderID, FileName: fileName, UserID: userID}, nil
}

func (f *fakeReservations) Release(ctx context.Context, folderID, fileName, userID string) error {
	for i := range f.calls {
		if f.calls[i].folderID == folderID && f.calls[i].fileName == fileName {
			f.calls[i].released = true
		}
	}
	return nil
}

func (f *fakeReservations) PruneExpired(ctx context.Context) (int, error) { return 0, nil }

type passthroughTx struct{}

func (passthroughTx) ExecTx(ctx context.Context, fn repositories.TxFn) error { return fn(ctx) }

func newDocService(docs *fakeDocs, res *fakeReservations) *DocumentService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDocumentService(docs, res, passthroughTx{}, logger)
}

func TestCreateDocumentReservesAndReleases(t *testing.T) {
	docs := newFakeDocs()
	res := &fakeReservations{}
	s := newDocService(docs, res)

	doc, err := s.CreateDocument(context.Background(), "u1", &CreateDocumentRequest{
		FolderID: "42", FileName: "report.pdf", MIMEType: "application/pdf", FileSize: 1024,
	})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	if doc.Title != "report.pdf" {
		t.Errorf("Title = %q, want filename fallback", doc.Title)
	}
	if doc.Version != 1 || doc.NumVersions != 1 {
		t.Errorf("version counters = %d/%d, want 1/1", doc.Version, doc.NumVersions)
	}
	if len(res.calls) != 1 || !res.calls[0].released {
		t.Fatalf("reservation calls = %+v, want one reserved-then-released", res.calls)
	}
}

func TestCreateDocumentReservationConflict(t *testing.T) {
	docs := newFakeDocs()
	res := &fakeReservations{reserveErr: fmt.Errorf("file name taken: %w", domain.ErrConflict)}
	s := newDocService(docs, res)

	_, err := s.CreateDocument(context.Background(), "u1", &CreateDocumentRequest{
		FolderID: "42", FileName: "report.pdf", MIMEType: "application/pdf",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("CreateDocument() error = %v, want conflict", err)
	}
	if len(docs.docs) != 0 {
		t.Fatal("document created despite failed reservation")
	}
}

func TestCreateDocumentValidation(t *testing.T) {
	s := newDocService(newFakeDocs(), &fakeReservations{})

	tests := []struct {
		name string
		req  CreateDocumentRequest
	}{
		{"missing folder", CreateDocumentRequest{FileName: "a.txt", MIMEType: "text/plain"}},
		{"missing file name", CreateDocumentRequest{FolderID: "42", MIMEType: "text/plain"}},
		{"missing mime type", CreateDocumentRequest{FolderID: "42", FileName: "a.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateDocument(context.Background(), "u1", &tt.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("error = %v, want validation failure", err)
			}
		})
	}
}

func TestAddVersionNumbersSequentially(t *testing.T) {
	docs := newFakeDocs()
	s := newDocService(docs, &fakeReservations{})

	doc, err := s.CreateDocument(context.Background(), "u1", &CreateDocumentRequest{
		FolderID: "42", FileName: "notes.txt", MIMEType: "text/plain",
	})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	v, err := s.AddVersion(context.Background(), "u1", &AddVersionRequest{
		DocumentID: doc.ID, FileName: "notes.txt", MIMEType: "text/plain", FileSize: 10,
	})
	if err != nil {
		t.Fatalf("AddVersion() error = %v", err)
	}
	if v.Number != 2 {
		t.Fatalf("version number = %d, want 2", v.Number)
	}

	got, _ := s.GetDocument(context.Background(), doc.ID)
	if got.Version != 2 || got.NumVersions != 2 {
		t.Fatalf("counters = %d/%d, want 2/2", got.Version, got.NumVersions)
	}
}

func TestUpdateDocumentRenameReserves(t *testing.T) {
	docs := newFakeDocs()
	res := &fakeReservations{}
	s := newDocService(docs, res)

	doc, err := s.CreateDocument(context.Background(), "u1", &CreateDocumentRequest{
		FolderID: "42", FileName: "old.txt", MIMEType: "text/plain",
	})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	res.calls = nil

	newName := "new.txt"
	updated, err := s.UpdateDocument(context.Background(), "u2", &UpdateDocumentRequest{
		ID: doc.ID, FileName: &newName,
	})
	if err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}
	if updated.FileName != "new.txt" || updated.ModifiedBy != "u2" {
		t.Fatalf("updated = %+v, want new filename stamped by u2", updated)
	}
	if len(res.calls) != 1 || res.calls[0].fileName != "new.txt" {
		t.Fatalf("reservation calls = %+v, want one for the new name", res.calls)
	}
}

func TestSetCurrentVersionRequiresExisting(t *testing.T) {
	docs := newFakeDocs()
	s := newDocService(docs, &fakeReservations{})

	doc, err := s.CreateDocument(context.Background(), "u1", &CreateDocumentRequest{
		FolderID: "42", FileName: "a.txt", MIMEType: "text/plain",
	})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	if err := s.SetCurrentVersion(context.Background(), doc.ID, 7); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("SetCurrentVersion(7) error = %v, want not-found", err)
	}
	if err := s.SetCurrentVersion(context.Background(), doc.ID, 1); err != nil {
		t.Fatalf("SetCurrentVersion(1) error = %v", err)
	}
}
