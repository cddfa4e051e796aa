package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arbor/internal/domain/repositories"
)

// RepositoryConfig holds the shared wiring of every relational repository.
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds the prefixed table names. The prefix separates
// environments (dev_, test_, prod_) sharing one database.
type TableNames struct {
	Folders      string
	Delta        string
	Documents    string
	Versions     string
	Reservations string
}

// NewTableNames creates table names with the given prefix.
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Folders:      fmt.Sprintf("%sfolders", prefix),
		Delta:        fmt.Sprintf("%svirtual_tree", prefix),
		Documents:    fmt.Sprintf("%sinfostore_documents", prefix),
		Versions:     fmt.Sprintf("%sinfostore_versions", prefix),
		Reservations: fmt.Sprintf("%sinfostore_reservations", prefix),
	}
}

// CreateConnectionPool creates a pgx connection pool.
//
// Prepared statements (the pgx default) break behind PgBouncer's transaction
// pooling mode, which is what port 6543 runs. When that port is detected and
// the user has not overridden default_query_exec_mode in the connection
// string, the pool falls back to QueryExecModeCacheDescribe: extended
// protocol, no server-side prepared statements.
//
// The fmt.Sprintf table-name interpolation used throughout this package is
// safe with prepared statements because prefixes are configuration, not user
// input, and are interpolated before the SQL reaches the server.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the transaction stored in the context if one exists,
// the pool otherwise. Repositories automatically participate in enclosing
// transactions this way.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
