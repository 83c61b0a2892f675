package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// Storage error taxonomy. DDL rejections become a *SchemaError; transient
// I/O failures become a *StorageError; constraint violations map to the
// sentinels below.
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")
)

// SchemaError indicates the backend rejected a DDL statement. It is
// abortive: callers must not commit any metadata describing the failed
// structure.
type SchemaError struct {
	Stmt string
	Err  error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema change rejected: %v", e.Err)
}

// Unwrap returns the underlying driver error.
func (e *SchemaError) Unwrap() error { return e.Err }

// NewSchemaError wraps a driver error from a failed DDL statement.
func NewSchemaError(stmt string, err error) *SchemaError {
	return &SchemaError{Stmt: stmt, Err: err}
}

// IsSchemaError returns true if the error is a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// StorageError indicates a transient storage failure. Nothing was
// committed, so the whole logical operation is safe to retry.
type StorageError struct {
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Err)
}

// Unwrap returns the underlying driver error.
func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError returns true if the error is a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ConvertError converts database driver errors into the engine taxonomy.
func ConvertError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return &StorageError{Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.Detail)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, pgErr.Detail)
		case "23502": // not_null_violation
			return fmt.Errorf("%w: column %s", ErrNotNullViolation, pgErr.ColumnName)
		}
		// Class 08 covers connection exceptions
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return &StorageError{Err: err}
		}
	}

	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch sqErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrUniqueViolation, sqErr)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrForeignKeyViolation, sqErr)
		case sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %v", ErrNotNullViolation, sqErr)
		}
		if sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked {
			return &StorageError{Err: err}
		}
	}

	return err
}

// IsRetryable returns true for errors that indicate the enclosing
// transaction can be retried as a whole (serialization failures and
// deadlocks).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 = serialization_failure, 40P01 = deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code == sqlite3.ErrBusy
	}
	return false
}
