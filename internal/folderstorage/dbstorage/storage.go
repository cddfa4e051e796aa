// Package dbstorage implements the relational folder backend. It owns every
// plain (non-composite) folder id, including the reserved system folders.
package dbstorage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arbor/internal/domain"
	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
	"arbor/internal/folderstorage"
	"arbor/internal/repository/postgres"
)

// DatabaseStorage is the folder storage backed by the relational folders
// table. It deletes softly so that the consistency repairer can restore
// folders still referenced by a user's virtual tree.
type DatabaseStorage struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// New creates the relational folder storage.
func New(config *postgres.RepositoryConfig) *DatabaseStorage {
	return &DatabaseStorage{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// StartTransaction opens a transaction for this operation unless one is
// already running on the same Parameters.
func (s *DatabaseStorage) StartTransaction(p *folderstorage.Parameters, write bool) (bool, error) {
	if p.Value(s) != nil {
		return false, nil
	}
	tx, err := s.pool.Begin(context.Background())
	if err != nil {
		return false, fmt.Errorf("begin folder transaction: %w", err)
	}
	p.Put(s, tx)
	return true, nil
}

// CommitTransaction commits the transaction opened on p.
func (s *DatabaseStorage) CommitTransaction(p *folderstorage.Parameters) error {
	tx := s.tx(p)
	if tx == nil {
		return nil
	}
	p.Remove(s)
	if err := tx.Commit(context.Background()); err != nil {
		return fmt.Errorf("commit folder transaction: %w", err)
	}
	return nil
}

// Rollback discards the transaction opened on p.
func (s *DatabaseStorage) Rollback(p *folderstorage.Parameters) {
	tx := s.tx(p)
	if tx == nil {
		return
	}
	p.Remove(s)
	if err := tx.Rollback(context.Background()); err != nil {
		s.logger.Warn("folder transaction rollback failed", "error", err)
	}
}

func (s *DatabaseStorage) tx(p *folderstorage.Parameters) pgx.Tx {
	tx, _ := p.Value(s).(pgx.Tx)
	return tx
}

// txCtx routes statements through the transaction opened on p, if any, by
// handing it to GetExecutor via the context.
func (s *DatabaseStorage) txCtx(ctx context.Context, p *folderstorage.Parameters) context.Context {
	if tx := s.tx(p); tx != nil {
		return repositories.SetTx(ctx, tx)
	}
	return ctx
}

const folderColumns = "id, parent_id, tree, name, content_type, folder_type, owner_id, default_folder, subscribed, last_modified, modified_by"

// Folder retrieves one folder with its known subfolder id set.
func (s *DatabaseStorage) Folder(ctx context.Context, treeID, folderID string, p *folderstorage.Parameters) (*models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND tree = $2 AND NOT deleted
	`, folderColumns, s.tables.Folders)

	var (
		f          models.Folder
		folderType int
		ownerID    string
	)
	err := postgres.GetExecutor(s.txCtx(ctx, p), s.pool).QueryRow(ctx, query, folderID, treeID).Scan(
		&f.ID,
		&f.ParentID,
		&f.TreeID,
		&f.Name,
		&f.ContentType,
		&folderType,
		&ownerID,
		&f.DefaultFolder,
		&f.Subscribed,
		&f.LastModified,
		&f.ModifiedBy,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("folder %s not found", folderID)}
		}
		return nil, postgres.SQLErr("select folder", err)
	}
	f.Type = models.FolderType(folderType)
	if ownerID != "" {
		f.Permissions = []models.Permission{{Entity: ownerID, Admin: true}}
	}

	children, err := s.childIDs(ctx, treeID, folderID, p)
	if err != nil {
		return nil, err
	}
	f.SubfolderIDs = children
	return &f, nil
}

// Folders retrieves several folders; a missing id fails the whole call.
func (s *DatabaseStorage) Folders(ctx context.Context, treeID string, folderIDs []string, p *folderstorage.Parameters) ([]*models.Folder, error) {
	out := make([]*models.Folder, 0, len(folderIDs))
	for _, id := range folderIDs {
		f, err := s.Folder(ctx, treeID, id, p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Subfolders lists the children of parentID in name order. Locale collation
// is the overlay's concern; this is a stable byte-order baseline.
func (s *DatabaseStorage) Subfolders(ctx context.Context, treeID, parentID string, p *folderstorage.Parameters) ([]models.OrderingKey, error) {
	query := fmt.Sprintf(`
		SELECT id, name
		FROM %s
		WHERE parent_id = $1 AND tree = $2 AND NOT deleted
		ORDER BY name ASC, id ASC
	`, s.tables.Folders)

	rows, err := postgres.GetExecutor(s.txCtx(ctx, p), s.pool).Query(ctx, query, parentID, treeID)
	if err != nil {
		return nil, postgres.SQLErr("list subfolders", err)
	}
	defer rows.Close()

	var keys []models.OrderingKey
	ordinal := 0
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, postgres.SQLErr("scan subfolder", err)
		}
		keys = append(keys, models.OrderingKey{FolderID: id, Ordinal: ordinal, Name: name})
		ordinal++
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.SQLErr("iterate subfolders", err)
	}
	return keys, nil
}

func (s *DatabaseStorage) childIDs(ctx context.Context, treeID, parentID string, p *folderstorage.Parameters) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT id
		FROM %s
		WHERE parent_id = $1 AND tree = $2 AND NOT deleted
		ORDER BY name ASC, id ASC
	`, s.tables.Folders)

	rows, err := postgres.GetExecutor(s.txCtx(ctx, p), s.pool).Query(ctx, query, parentID, treeID)
	if err != nil {
		return nil, postgres.SQLErr("list child ids", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, postgres.SQLErr("scan child id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.SQLErr("iterate child ids", err)
	}
	return ids, nil
}

// CreateFolder inserts a folder row and returns its generated id.
func (s *DatabaseStorage) CreateFolder(ctx context.Context, folder *models.Folder, p *folderstorage.Parameters) (string, error) {
	id := folder.ID
	if id == "" {
		id = uuid.NewString()
	}

	owner := ""
	for _, perm := range folder.Permissions {
		if perm.Admin && !perm.Group {
			owner = perm.Entity
			break
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, parent_id, tree, name, content_type, folder_type, owner_id, default_folder, subscribed, last_modified, modified_by, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), $10, FALSE)
	`, s.tables.Folders)

	_, err := postgres.GetExecutor(s.txCtx(ctx, p), s.pool).Exec(ctx, query,
		id,
		folder.ParentID,
		models.RealTreeID,
		folder.Name,
		string(folder.ContentType),
		int(folder.Type),
		owner,
		folder.DefaultFolder,
		folder.Subscribed,
		p.UserID,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return "", &domain.ConflictError{
				Message:      fmt.Sprintf("folder %q already exists below %s", folder.Name, folder.ParentID),
				ResourceType: "folder",
				ResourceID:   id,
			}
		}
		return "", postgres.SQLErr("insert folder", err)
	}
	return id, nil
}

// DeleteFolder marks a folder deleted. Rows are kept so Restore can undo the
// deletion while virtual trees still reference the folder.
func (s *DatabaseStorage) DeleteFolder(ctx context.Context, treeID, folderID string, p *folderstorage.Parameters) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted = TRUE, last_modified = NOW(), modified_by = $1
		WHERE id = $2 AND tree = $3 AND NOT deleted
	`, s.tables.Folders)

	result, err := postgres.GetExecutor(s.txCtx(ctx, p), s.pool).Exec(ctx, query, p.UserID, folderID, treeID)
	if err != nil {
		return postgres.SQLErr("delete folder", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("folder %s not found", folderID)}
	}
	return nil
}

// ContainsFolder reports whether a live folder row exists.
func (s *DatabaseStorage) ContainsFolder(ctx context.Context, treeID, folderID string, p *folderstorage.Parameters) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s WHERE id = $1 AND tree = $2 AND NOT deleted
		)
	`, s.tables.Folders)

	var exists bool
	if err := postgres.GetExecutor(s.txCtx(ctx, p), s.pool).QueryRow(ctx, query, folderID, treeID).Scan(&exists); err != nil {
		return false, postgres.SQLErr("check folder existence", err)
	}
	return exists, nil
}

// DefaultFolderID resolves the user's default folder for a content type.
func (s *DatabaseStorage) DefaultFolderID(ctx context.Context, userID, treeID string, contentType models.ContentType, folderType models.FolderType, p *folderstorage.Parameters) (string, error) {
	query := fmt.Sprintf(`
		SELECT id
		FROM %s
		WHERE owner_id = $1 AND tree = $2 AND content_type = $3 AND default_folder AND NOT deleted
	`, s.tables.Folders)
	args := []any{userID, treeID, string(contentType)}
	if folderType != models.TypeNone {
		query += " AND folder_type = $4"
		args = append(args, int(folderType))
	}
	query += " ORDER BY id ASC LIMIT 1"

	var id string
	err := postgres.GetExecutor(s.txCtx(ctx, p), s.pool).QueryRow(ctx, query, args...).Scan(&id)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return "", &domain.NotFoundError{
				Message: fmt.Sprintf("no default %s folder for user %s", contentType, userID),
			}
		}
		return "", postgres.SQLErr("select default folder", err)
	}
	return id, nil
}

// Restore undoes a soft delete.
func (s *DatabaseStorage) Restore(ctx context.Context, treeID, folderID string, p *folderstorage.Parameters) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted = FALSE, last_modified = NOW(), modified_by = $1
		WHERE id = $2 AND tree = $3 AND deleted
	`, s.tables.Folders)

	result, err := postgres.GetExecutor(s.txCtx(ctx, p), s.pool).Exec(ctx, query, p.UserID, folderID, treeID)
	if err != nil {
		return postgres.SQLErr("restore folder", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("folder %s has no deleted row to restore", folderID)}
	}
	return nil
}

// ServesTree: the relational storage serves only the real tree.
func (s *DatabaseStorage) ServesTree(treeID string) bool { return treeID == models.RealTreeID }

// OwnsFolderID claims every plain id. Composite ids (mail "default0/INBOX",
// file storage "service:path") belong to other backends; this check makes the
// relational storage the catch-all and must therefore be registered last.
func (s *DatabaseStorage) OwnsFolderID(folderID string) bool {
	return !strings.ContainsAny(folderID, "/:")
}

// ContentTypes lists the groupware domains stored relationally.
func (s *DatabaseStorage) ContentTypes() []models.ContentType {
	return []models.ContentType{
		models.ContentTypeCalendar,
		models.ContentTypeContacts,
		models.ContentTypeTasks,
		models.ContentTypeInfostore,
		models.ContentTypeSystem,
	}
}

// DefaultContentType of the relational storage.
func (s *DatabaseStorage) DefaultContentType() models.ContentType { return models.ContentTypeSystem }

// Priority of the relational storage within the real tree.
func (s *DatabaseStorage) Priority() int { return 1 }
