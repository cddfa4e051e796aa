package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"arbor/internal/domain"
)

func TestSQLErrWrapsStatementAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := SQLErr("insert delta row", cause)

	var sqlErr *domain.SQLError
	if !errors.As(err, &sqlErr) {
		t.Fatalf("SQLErr() = %T, want *domain.SQLError", err)
	}
	if sqlErr.Statement != "insert delta row" {
		t.Errorf("Statement = %q, want %q", sqlErr.Statement, "insert delta row")
	}
	if !errors.Is(err, cause) {
		t.Error("SQLErr() does not unwrap to its cause")
	}
}

func TestPgErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		fn   func(error) bool
		want bool
	}{
		{"duplicate", &pgconn.PgError{Code: "23505"}, IsPgDuplicateError, true},
		{"duplicate wrapped", SQLErr("insert folder", &pgconn.PgError{Code: "23505"}), IsPgDuplicateError, true},
		{"foreign key is not duplicate", &pgconn.PgError{Code: "23503"}, IsPgDuplicateError, false},
		{"foreign key", &pgconn.PgError{Code: "23503"}, IsPgForeignKeyError, true},
		{"no rows", pgx.ErrNoRows, IsPgNoRowsError, true},
		{"plain error", errors.New("boom"), IsPgNoRowsError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
