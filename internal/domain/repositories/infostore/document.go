package infostore

import (
	"context"
	"time"

	"arbor/internal/domain/models/infostore"
)

// DocumentRepository persists infostore document metadata and versions.
type DocumentRepository interface {
	Create(ctx context.Context, doc *infostore.Document) error
	GetByID(ctx context.Context, id string) (*infostore.Document, error)
	Update(ctx context.Context, doc *infostore.Document) error
	Delete(ctx context.Context, id string) error
	ListByFolder(ctx context.Context, folderID string) ([]infostore.Document, error)

	AddVersion(ctx context.Context, v *infostore.Version) error
	ListVersions(ctx context.Context, documentID string) ([]infostore.Version, error)
	SetCurrentVersion(ctx context.Context, documentID string, number int) error
}

// ReservationRepository holds filename-uniqueness reservations per folder.
type ReservationRepository interface {
	// Reserve claims fileName inside folderID until expiry. It fails with a
	// conflict when the name is held by another user or already taken by a
	// document in that folder.
	Reserve(ctx context.Context, folderID, fileName, userID string, ttl time.Duration) (*infostore.Reservation, error)
	Release(ctx context.Context, folderID, fileName, userID string) error
	PruneExpired(ctx context.Context) (int, error)
}
