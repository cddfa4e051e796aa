package infostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"arbor/internal/domain"
	models "arbor/internal/domain/models/infostore"
	infoRepo "arbor/internal/domain/repositories/infostore"
	"arbor/internal/repository/postgres"
)

// PostgresReservationRepository implements the ReservationRepository
// interface. A reservation blocks concurrent uploads from claiming the same
// filename in a folder before the document row exists.
type PostgresReservationRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewReservationRepository creates a new filename reservation repository
func NewReservationRepository(config *postgres.RepositoryConfig) infoRepo.ReservationRepository {
	return &PostgresReservationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Reserve claims fileName inside folderID until expiry. An expired
// reservation of any user and a live reservation of the same user are both
// silently taken over; a live reservation of another user, or an existing
// document with that filename, is a conflict.
func (r *PostgresReservationRepository) Reserve(ctx context.Context, folderID, fileName, userID string, ttl time.Duration) (*models.Reservation, error) {
	executor := postgres.GetExecutor(ctx, r.pool)

	taken := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s WHERE folder_id = $1 AND file_name = $2
		)
	`, r.tables.Documents)
	var exists bool
	if err := executor.QueryRow(ctx, taken, folderID, fileName).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check filename availability: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("file name '%s' in folder %s: %w", fileName, folderID, domain.ErrConflict)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (folder_id, file_name, user_id, expires_at)
		VALUES ($1, $2, $3, NOW() + $4)
		ON CONFLICT (folder_id, file_name) DO UPDATE
		SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at
		WHERE %s.user_id = EXCLUDED.user_id OR %s.expires_at < NOW()
		RETURNING folder_id, file_name, user_id, expires_at
	`, r.tables.Reservations, r.tables.Reservations, r.tables.Reservations)

	var res models.Reservation
	err := executor.QueryRow(ctx, query, folderID, fileName, userID, ttl).Scan(
		&res.FolderID,
		&res.FileName,
		&res.UserID,
		&res.ExpiresAt,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			// The DO UPDATE predicate rejected the takeover: another user
			// holds a live reservation.
			return nil, fmt.Errorf("file name '%s' in folder %s is reserved: %w", fileName, folderID, domain.ErrConflict)
		}
		return nil, fmt.Errorf("reserve file name: %w", err)
	}
	return &res, nil
}

// Release drops a reservation held by userID. Releasing an absent
// reservation is not an error.
func (r *PostgresReservationRepository) Release(ctx context.Context, folderID, fileName, userID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE folder_id = $1 AND file_name = $2 AND user_id = $3
	`, r.tables.Reservations)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, folderID, fileName, userID); err != nil {
		return fmt.Errorf("release file name reservation: %w", err)
	}
	return nil
}

// PruneExpired drops every expired reservation and returns how many went.
func (r *PostgresReservationRepository) PruneExpired(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE expires_at < NOW()
	`, r.tables.Reservations)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prune expired reservations: %w", err)
	}
	return int(result.RowsAffected()), nil
}
