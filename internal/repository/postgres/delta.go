package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arbor/internal/domain"
	"arbor/internal/domain/repositories"
)

// PostgresDeltaRepository implements the DeltaRepository interface. One row
// per (context, tree, user, folder); a row exists only while the folder's
// virtual presentation differs from its real-storage counterpart.
type PostgresDeltaRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewDeltaRepository creates a new virtual-delta repository
func NewDeltaRepository(config *RepositoryConfig) repositories.DeltaRepository {
	return &PostgresDeltaRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const deltaColumns = "cid, tree, user_id, folder_id, parent_id, name, new_id, last_modified, modified_by"

func scanDeltaEntry(row pgx.Row, entry *repositories.DeltaEntry) error {
	return row.Scan(
		&entry.ContextID,
		&entry.TreeID,
		&entry.UserID,
		&entry.FolderID,
		&entry.ParentID,
		&entry.Name,
		&entry.NewID,
		&entry.LastModified,
		&entry.ModifiedBy,
	)
}

// Get retrieves one delta row by key and folder id
func (r *PostgresDeltaRepository) Get(ctx context.Context, key repositories.DeltaKey, folderID string) (*repositories.DeltaEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE cid = $1 AND tree = $2 AND user_id = $3 AND folder_id = $4
	`, deltaColumns, r.tables.Delta)

	executor := GetExecutor(ctx, r.pool)
	var entry repositories.DeltaEntry
	err := scanDeltaEntry(executor.QueryRow(ctx, query, key.ContextID, key.TreeID, key.UserID, folderID), &entry)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("delta row for folder %s: %w", folderID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get delta row: %w", err)
	}
	return &entry, nil
}

// List retrieves every delta row of one (context, tree, user)
func (r *PostgresDeltaRepository) List(ctx context.Context, key repositories.DeltaKey) ([]repositories.DeltaEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE cid = $1 AND tree = $2 AND user_id = $3
		ORDER BY folder_id ASC
	`, deltaColumns, r.tables.Delta)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, key.ContextID, key.TreeID, key.UserID)
	if err != nil {
		return nil, fmt.Errorf("list delta rows: %w", err)
	}
	defer rows.Close()

	var entries []repositories.DeltaEntry
	for rows.Next() {
		var entry repositories.DeltaEntry
		if err := scanDeltaEntry(rows, &entry); err != nil {
			return nil, fmt.Errorf("scan delta row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delta rows: %w", err)
	}
	return entries, nil
}

// Insert creates a new delta row
func (r *PostgresDeltaRepository) Insert(ctx context.Context, entry *repositories.DeltaEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), $8)
		RETURNING last_modified
	`, r.tables.Delta, deltaColumns)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		entry.ContextID,
		entry.TreeID,
		entry.UserID,
		entry.FolderID,
		entry.ParentID,
		entry.Name,
		entry.NewID,
		entry.ModifiedBy,
	).Scan(&entry.LastModified)

	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("delta row for folder %s: %w", entry.FolderID, domain.ErrConflict)
		}
		return SQLErr("insert delta row", err)
	}
	return nil
}

// Update replaces the override columns of an existing delta row
func (r *PostgresDeltaRepository) Update(ctx context.Context, entry *repositories.DeltaEntry) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $1, name = $2, new_id = $3, last_modified = NOW(), modified_by = $4
		WHERE cid = $5 AND tree = $6 AND user_id = $7 AND folder_id = $8
	`, r.tables.Delta)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		entry.ParentID,
		entry.Name,
		entry.NewID,
		entry.ModifiedBy,
		entry.ContextID,
		entry.TreeID,
		entry.UserID,
		entry.FolderID,
	)
	if err != nil {
		return SQLErr("update delta row", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("delta row for folder %s: %w", entry.FolderID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes one delta row. Deleting an absent row is not an error: the
// consistency repairer and the self-heal path race for the same rows.
func (r *PostgresDeltaRepository) Delete(ctx context.Context, key repositories.DeltaKey, folderID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE cid = $1 AND tree = $2 AND user_id = $3 AND folder_id = $4
	`, r.tables.Delta)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, key.ContextID, key.TreeID, key.UserID, folderID); err != nil {
		return SQLErr("delete delta row", err)
	}
	return nil
}

// DeleteAll removes the given folder ids in one explicit transaction, so a
// partial bulk delete can never be observed.
func (r *PostgresDeltaRepository) DeleteAll(ctx context.Context, key repositories.DeltaKey, folderIDs []string) error {
	if len(folderIDs) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin bulk delta delete: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(ctx); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
			r.logger.Warn("bulk delta delete rollback failed", "error", rerr)
		}
	}()

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE cid = $1 AND tree = $2 AND user_id = $3 AND folder_id = ANY($4)
	`, r.tables.Delta)

	if _, err := tx.Exec(ctx, query, key.ContextID, key.TreeID, key.UserID, folderIDs); err != nil {
		return SQLErr("bulk delete delta rows", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bulk delta delete: %w", err)
	}
	return nil
}

// DuplicateNameGroups returns override names claimed by more than one folder
// of the same (context, tree, user), with their members in folder-id order.
func (r *PostgresDeltaRepository) DuplicateNameGroups(ctx context.Context, key repositories.DeltaKey) (map[string][]string, error) {
	query := fmt.Sprintf(`
		SELECT name, folder_id
		FROM %s
		WHERE cid = $1 AND tree = $2 AND user_id = $3 AND name <> ''
		  AND name IN (
			SELECT name FROM %s
			WHERE cid = $1 AND tree = $2 AND user_id = $3 AND name <> ''
			GROUP BY name
			HAVING COUNT(*) > 1
		  )
		ORDER BY name ASC, folder_id ASC
	`, r.tables.Delta, r.tables.Delta)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, key.ContextID, key.TreeID, key.UserID)
	if err != nil {
		return nil, fmt.Errorf("query duplicate name groups: %w", err)
	}
	defer rows.Close()

	groups := make(map[string][]string)
	for rows.Next() {
		var name, folderID string
		if err := rows.Scan(&name, &folderID); err != nil {
			return nil, fmt.Errorf("scan duplicate name group: %w", err)
		}
		groups[name] = append(groups[name], folderID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate name groups: %w", err)
	}
	return groups, nil
}
