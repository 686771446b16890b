package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/joseph-ayodele/classdocs/internal/common"
)

// MapDBError maps driver errors onto AppError codes. Unrecognized errors are
// returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return common.NewAppError(common.CodeUnavailable, "database request timed out", err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, pgx.ErrNoRows):
		return ErrJobNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return ErrJobExists
		case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
			return common.NewAppError(common.CodeInternal, "job row violates constraint "+pgErr.ConstraintName, err)
		case pgerrcode.QueryCanceled:
			return common.NewAppError(common.CodeUnavailable, "database statement timed out", err)
		}
		if pgerrcode.IsConnectionException(pgErr.Code) || pgerrcode.IsInsufficientResources(pgErr.Code) {
			return common.NewAppError(common.CodeUnavailable, "database unavailable", err)
		}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT:
			return ErrJobExists
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return common.NewAppError(common.CodeUnavailable, "database busy", err)
		}
	}
	return err
}
