package infostore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"arbor/internal/domain"
	models "arbor/internal/domain/models/infostore"
	infoRepo "arbor/internal/domain/repositories/infostore"
	"arbor/internal/repository/postgres"
)

// PostgresDocumentRepository implements the DocumentRepository interface
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewDocumentRepository creates a new infostore document repository
func NewDocumentRepository(config *postgres.RepositoryConfig) infoRepo.DocumentRepository {
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const documentColumns = "id, folder_id, title, file_name, mime_type, file_size, version, num_versions, description, created_by, modified_by, created_at, updated_at"

// Create inserts a document row together with its first version, in one
// enclosing transaction when the caller provides one.
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (folder_id, title, file_name, mime_type, file_size, version, num_versions, description, created_by, modified_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, 1, $6, $7, $7, NOW(), NOW())
		RETURNING id, version, num_versions, created_at, updated_at
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		doc.FolderID,
		doc.Title,
		doc.FileName,
		doc.MIMEType,
		doc.FileSize,
		doc.Description,
		doc.CreatedBy,
	).Scan(&doc.ID, &doc.Version, &doc.NumVersions, &doc.CreatedAt, &doc.UpdatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return fmt.Errorf("file name '%s' in folder %s: %w", doc.FileName, doc.FolderID, domain.ErrConflict)
		}
		return fmt.Errorf("create document: %w", err)
	}
	doc.ModifiedBy = doc.CreatedBy

	version := &models.Version{
		DocumentID: doc.ID,
		Number:     1,
		FileName:   doc.FileName,
		MIMEType:   doc.MIMEType,
		FileSize:   doc.FileSize,
		CreatedBy:  doc.CreatedBy,
	}
	return r.AddVersion(ctx, version)
}

// GetByID retrieves a document by ID
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1
	`, documentColumns, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	var doc models.Document
	err := executor.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.FolderID,
		&doc.Title,
		&doc.FileName,
		&doc.MIMEType,
		&doc.FileSize,
		&doc.Version,
		&doc.NumVersions,
		&doc.Description,
		&doc.CreatedBy,
		&doc.ModifiedBy,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// Update updates a document's mutable metadata
func (r *PostgresDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET folder_id = $1, title = $2, file_name = $3, description = $4, modified_by = $5, updated_at = NOW()
		WHERE id = $6
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		doc.FolderID,
		doc.Title,
		doc.FileName,
		doc.Description,
		doc.ModifiedBy,
		doc.ID,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return fmt.Errorf("file name '%s' in folder %s: %w", doc.FileName, doc.FolderID, domain.ErrConflict)
		}
		return fmt.Errorf("update document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a document and, via cascade, its versions
func (r *PostgresDocumentRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListByFolder lists the documents of one folder, newest first
func (r *PostgresDocumentRepository) ListByFolder(ctx context.Context, folderID string) ([]models.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE folder_id = $1
		ORDER BY updated_at DESC, id ASC
	`, documentColumns, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		err := rows.Scan(
			&doc.ID,
			&doc.FolderID,
			&doc.Title,
			&doc.FileName,
			&doc.MIMEType,
			&doc.FileSize,
			&doc.Version,
			&doc.NumVersions,
			&doc.Description,
			&doc.CreatedBy,
			&doc.ModifiedBy,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// AddVersion appends a version row and bumps the document's counters
func (r *PostgresDocumentRepository) AddVersion(ctx context.Context, v *models.Version) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, number, file_name, mime_type, file_size, comment, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`, r.tables.Versions)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		v.DocumentID,
		v.Number,
		v.FileName,
		v.MIMEType,
		v.FileSize,
		v.Comment,
		v.CreatedBy,
	).Scan(&v.CreatedAt)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return fmt.Errorf("version %d of document %s: %w", v.Number, v.DocumentID, domain.ErrConflict)
		}
		return fmt.Errorf("add document version: %w", err)
	}

	bump := fmt.Sprintf(`
		UPDATE %s
		SET version = GREATEST(version, $1), num_versions = num_versions + 1, updated_at = NOW()
		WHERE id = $2
	`, r.tables.Documents)
	if _, err := executor.Exec(ctx, bump, v.Number, v.DocumentID); err != nil {
		return fmt.Errorf("bump document version counters: %w", err)
	}
	return nil
}

// ListVersions lists a document's versions in ascending number order
func (r *PostgresDocumentRepository) ListVersions(ctx context.Context, documentID string) ([]models.Version, error) {
	query := fmt.Sprintf(`
		SELECT document_id, number, file_name, mime_type, file_size, comment, created_by, created_at
		FROM %s
		WHERE document_id = $1
		ORDER BY number ASC
	`, r.tables.Versions)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	defer rows.Close()

	var versions []models.Version
	for rows.Next() {
		var v models.Version
		err := rows.Scan(
			&v.DocumentID,
			&v.Number,
			&v.FileName,
			&v.MIMEType,
			&v.FileSize,
			&v.Comment,
			&v.CreatedBy,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan document version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document versions: %w", err)
	}
	return versions, nil
}

// SetCurrentVersion points the document at an existing version number
func (r *PostgresDocumentRepository) SetCurrentVersion(ctx context.Context, documentID string, number int) error {
	query := fmt.Sprintf(`
		UPDATE %s d
		SET version = $1, updated_at = NOW()
		WHERE d.id = $2
		  AND EXISTS (SELECT 1 FROM %s v WHERE v.document_id = d.id AND v.number = $1)
	`, r.tables.Documents, r.tables.Versions)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, number, documentID)
	if err != nil {
		return fmt.Errorf("set current version: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("version %d of document %s: %w", number, documentID, domain.ErrNotFound)
	}
	return nil
}
