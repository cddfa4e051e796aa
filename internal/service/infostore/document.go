// Package infostore holds the document metadata service: versioned file
// metadata with per-folder filename uniqueness. File content lives in a blob
// store and is out of scope here.
package infostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"arbor/internal/domain"
	models "arbor/internal/domain/models/infostore"
	"arbor/internal/domain/repositories"
	infoRepo "arbor/internal/domain/repositories/infostore"
)

// ReservationTTL is how long an upload may hold a filename before the
// reservation lapses.
const ReservationTTL = 5 * time.Minute

// CreateDocumentRequest describes a new document with its first version.
type CreateDocumentRequest struct {
	FolderID    string `json:"folder_id"`
	Title       string `json:"title"`
	FileName    string `json:"file_name"`
	MIMEType    string `json:"mime_type"`
	FileSize    int64  `json:"file_size"`
	Description string `json:"description,omitempty"`
}

func (r CreateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FolderID, validation.Required),
		validation.Field(&r.FileName, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.MIMEType, validation.Required),
		validation.Field(&r.FileSize, validation.Min(0)),
		validation.Field(&r.Title, validation.Length(0, 255)),
	)
}

// UpdateDocumentRequest changes document metadata. A changed filename goes
// through the same reservation discipline as a new upload.
type UpdateDocumentRequest struct {
	ID          string  `json:"id"`
	Title       *string `json:"title,omitempty"`
	FileName    *string `json:"file_name,omitempty"`
	Description *string `json:"description,omitempty"`
	FolderID    *string `json:"folder_id,omitempty"`
}

func (r UpdateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
	)
}

// AddVersionRequest appends a new revision to an existing document.
type AddVersionRequest struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	MIMEType   string `json:"mime_type"`
	FileSize   int64  `json:"file_size"`
	Comment    string `json:"comment,omitempty"`
}

func (r AddVersionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DocumentID, validation.Required),
		validation.Field(&r.FileName, validation.Required),
		validation.Field(&r.MIMEType, validation.Required),
		validation.Field(&r.FileSize, validation.Min(0)),
	)
}

// DocumentService owns infostore document metadata and versioning.
type DocumentService struct {
	docs         infoRepo.DocumentRepository
	reservations infoRepo.ReservationRepository
	txManager    repositories.TransactionManager
	logger       *slog.Logger
}

// NewDocumentService creates a new infostore document service
func NewDocumentService(
	docs infoRepo.DocumentRepository,
	reservations infoRepo.ReservationRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		docs:         docs,
		reservations: reservations,
		txManager:    txManager,
		logger:       logger,
	}
}

// CreateDocument reserves the filename, then writes the document and its
// first version in one transaction, then releases the reservation.
func (s *DocumentService) CreateDocument(ctx context.Context, userID string, req *CreateDocumentRequest) (*models.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if _, err := s.reservations.Reserve(ctx, req.FolderID, req.FileName, userID, ReservationTTL); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.reservations.Release(ctx, req.FolderID, req.FileName, userID); err != nil {
			s.logger.Warn("failed to release filename reservation",
				"folder_id", req.FolderID, "file_name", req.FileName, "error", err)
		}
	}()

	title := req.Title
	if title == "" {
		title = req.FileName
	}
	doc := &models.Document{
		FolderID:    req.FolderID,
		Title:       title,
		FileName:    req.FileName,
		MIMEType:    req.MIMEType,
		FileSize:    req.FileSize,
		Description: req.Description,
		CreatedBy:   userID,
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.docs.Create(txCtx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document created",
		"id", doc.ID, "folder_id", doc.FolderID, "file_name", doc.FileName)
	return doc, nil
}

// GetDocument retrieves one document's metadata.
func (s *DocumentService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	if id == "" {
		return nil, &domain.ValidationError{Message: "document id is required"}
	}
	return s.docs.GetByID(ctx, id)
}

// ListDocuments lists a folder's documents.
func (s *DocumentService) ListDocuments(ctx context.Context, folderID string) ([]models.Document, error) {
	if folderID == "" {
		return nil, &domain.ValidationError{Message: "folder id is required"}
	}
	return s.docs.ListByFolder(ctx, folderID)
}

// UpdateDocument changes document metadata, re-running the filename
// reservation when the name or folder changes.
func (s *DocumentService) UpdateDocument(ctx context.Context, userID string, req *UpdateDocumentRequest) (*models.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	doc, err := s.docs.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	folderID := doc.FolderID
	if req.FolderID != nil && *req.FolderID != "" {
		folderID = *req.FolderID
	}
	fileName := doc.FileName
	if req.FileName != nil && *req.FileName != "" {
		fileName = *req.FileName
	}

	renamed := folderID != doc.FolderID || fileName != doc.FileName
	if renamed {
		if _, err := s.reservations.Reserve(ctx, folderID, fileName, userID, ReservationTTL); err != nil {
			return nil, err
		}
		defer func() {
			if err := s.reservations.Release(ctx, folderID, fileName, userID); err != nil {
				s.logger.Warn("failed to release filename reservation",
					"folder_id", folderID, "file_name", fileName, "error", err)
			}
		}()
	}

	doc.FolderID = folderID
	doc.FileName = fileName
	if req.Title != nil {
		doc.Title = *req.Title
	}
	if req.Description != nil {
		doc.Description = *req.Description
	}
	doc.ModifiedBy = userID

	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document and all its versions.
func (s *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	if id == "" {
		return &domain.ValidationError{Message: "document id is required"}
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("document deleted", "id", id)
	return nil
}

// AddVersion appends a revision and makes it current, in one transaction.
func (s *DocumentService) AddVersion(ctx context.Context, userID string, req *AddVersionRequest) (*models.Version, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	doc, err := s.docs.GetByID(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	version := &models.Version{
		DocumentID: doc.ID,
		Number:     doc.NumVersions + 1,
		FileName:   req.FileName,
		MIMEType:   req.MIMEType,
		FileSize:   req.FileSize,
		Comment:    req.Comment,
		CreatedBy:  userID,
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.docs.AddVersion(txCtx, version)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document version added",
		"document_id", doc.ID, "number", version.Number)
	return version, nil
}

// ListVersions lists a document's revisions.
func (s *DocumentService) ListVersions(ctx context.Context, documentID string) ([]models.Version, error) {
	if documentID == "" {
		return nil, &domain.ValidationError{Message: "document id is required"}
	}
	return s.docs.ListVersions(ctx, documentID)
}

// SetCurrentVersion switches the document to an existing revision.
func (s *DocumentService) SetCurrentVersion(ctx context.Context, documentID string, number int) error {
	if documentID == "" {
		return &domain.ValidationError{Message: "document id is required"}
	}
	if number < 1 {
		return &domain.ValidationError{Message: "version number must be positive"}
	}
	return s.docs.SetCurrentVersion(ctx, documentID, number)
}

// PruneExpiredReservations drops lapsed filename reservations, typically from
// a periodic maintenance tick.
func (s *DocumentService) PruneExpiredReservations(ctx context.Context) (int, error) {
	n, err := s.reservations.PruneExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired filename reservations pruned", "count", n)
	}
	return n, nil
}
