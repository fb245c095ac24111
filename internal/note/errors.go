package note

import (
	"context"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	// ErrValidation means the caller supplied an unusable payload. Not retryable.
	ErrValidation = errors.New("note: validation failed")
	// ErrNotFound covers ids that never existed, were deleted, or belong to another owner.
	ErrNotFound = errors.New("note: not found")
	// ErrConflict means the write lost a race on the same logical note. Safe to retry.
	ErrConflict = errors.New("note: concurrent modification")
)

// postgres SQLSTATEs and mysql error numbers that signal lock contention or a
// second current row.
var (
	pgContention = map[string]struct{}{
		"40001": {}, // serialization_failure
		"40P01": {}, // deadlock_detected
		"55P03": {}, // lock_not_available
		"23505": {}, // unique_violation
	}
	mysqlContention = map[uint16]struct{}{
		1205: {}, // ER_LOCK_WAIT_TIMEOUT
		1213: {}, // ER_LOCK_DEADLOCK
		1062: {}, // ER_DUP_ENTRY
	}
)

func isContention(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := pgContention[pgErr.Code]
		return ok
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		_, ok := mysqlContention[myErr.Number]
		return ok
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

// translate turns storage failures into the package's error kinds. Errors that
// already carry a kind pass through untouched.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(ErrNotFound, op)
	case isContention(err):
		return errors.Wrapf(ErrConflict, "%s: %v", op, err)
	default:
		return errors.Wrap(err, op)
	}
}
