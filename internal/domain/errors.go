package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrNoStorage indicates a registration gap: no folder storage is
	// responsible for the requested tree/folder/content-type. Fatal to the
	// sub-operation, never retried automatically.
	ErrNoStorage = errors.New("no folder storage")

	// ErrTemporary marks a failure that is expected to resolve itself on the
	// next attempt (for example after a stale delta row was pruned). Callers
	// should retry the same request once.
	ErrTemporary = errors.New("temporary failure, retry")
)

// Domain error types implementing HTTPError
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }

func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string
	ResourceType string
	ResourceID   string
}

func (e *ConflictError) Error() string        { return e.Message }
func (e *ConflictError) StatusCode() int      { return http.StatusConflict }
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NoStorageError reports that the storage registry holds no storage for the
// given tree and folder id or content type.
type NoStorageError struct {
	TreeID      string
	FolderID    string
	ContentType string
}

func (e *NoStorageError) Error() string {
	if e.ContentType != "" {
		return fmt.Sprintf("no storage for content type %q in tree %q", e.ContentType, e.TreeID)
	}
	return fmt.Sprintf("no storage for folder %q in tree %q", e.FolderID, e.TreeID)
}

func (e *NoStorageError) Is(target error) bool { return target == ErrNoStorage }

// TemporaryError is raised after the overlay healed an inconsistency (for
// example pruned a stale virtual-delta row). The same request is expected to
// succeed when retried.
type TemporaryError struct {
	TreeID   string
	FolderID string
}

func (e *TemporaryError) Error() string {
	return fmt.Sprintf("folder %q in tree %q was repaired, retry", e.FolderID, e.TreeID)
}

func (e *TemporaryError) Is(target error) bool { return target == ErrTemporary }

// BackendErrorKind classifies transient backend failures that are downgraded
// to warnings during multi-source aggregation.
type BackendErrorKind int

const (
	BackendUnsupportedProtocol BackendErrorKind = iota + 1
	BackendAccountMissing
	BackendBadCredentials
	BackendConnectionFailed
)

func (k BackendErrorKind) String() string {
	switch k {
	case BackendUnsupportedProtocol:
		return "unsupported protocol"
	case BackendAccountMissing:
		return "account missing"
	case BackendBadCredentials:
		return "bad credentials"
	case BackendConnectionFailed:
		return "connection failed"
	default:
		return "backend error"
	}
}

// BackendError wraps a failure from an external account backend (mail,
// messaging, file storage).
type BackendError struct {
	Kind      BackendErrorKind
	AccountID string
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("account %q: %s: %v", e.AccountID, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsTransientBackend reports whether err is one of the known backend failure
// classes that must not abort sibling sources during aggregation.
func IsTransientBackend(err error) bool {
	var be *BackendError
	if !errors.As(err, &be) {
		return false
	}
	switch be.Kind {
	case BackendUnsupportedProtocol, BackendAccountMissing, BackendBadCredentials, BackendConnectionFailed:
		return true
	}
	return false
}

// SQLError wraps a relational failure together with the failing statement for
// diagnostics. It always accompanies a rollback of the enclosing transaction.
type SQLError struct {
	Statement string
	Err       error
}

func (e *SQLError) Error() string {
	return fmt.Sprintf("sql failed: %v (statement: %s)", e.Err, e.Statement)
}

func (e *SQLError) Unwrap() error { return e.Err }

// Unexpected wraps an uncaught backend failure so that no native backend
// error type leaks across the overlay boundary.
func Unexpected(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("unexpected storage failure: %w", err)
}
