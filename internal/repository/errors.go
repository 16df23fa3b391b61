package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/edu-registry/pkg/errors"
)

// Postgres error classes relevant to the registry's invariants.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// Named constraints whose violations map to specific domain errors.
const (
	constraintEnrollmentPair = "uq_enrollments_program_student"
	constraintUserAuthID     = "uq_users_auth_id"
	constraintUserEmail      = "uq_users_email"
)

// translatePGError maps driver failures onto typed domain errors. The
// unique-index violations are the storage-level enforcement of the
// registry's atomic invariants, so they carry precise conflict
// messages rather than a generic database error.
func translatePGError(op string, err error) error {
	if err == nil {
		return nil
	}
	// Missing rows are a domain condition, not a driver failure; the
	// services decide whether absence is an error.
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, op+" timed out")
	}
	if errors.Is(err, driver.ErrBadConn) {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "storage engine unavailable")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			switch pqErr.Constraint {
			case constraintEnrollmentPair:
				return appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
			case constraintUserAuthID:
				return appErrors.Clone(appErrors.ErrConflict, "externalAuthId already registered")
			case constraintUserEmail:
				return appErrors.Clone(appErrors.ErrConflict, "email already registered")
			}
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "unique constraint violated")
		case pgForeignKeyViolation:
			return appErrors.Wrap(err, appErrors.ErrReferentialIntegrity.Code, appErrors.ErrReferentialIntegrity.Status, "referenced record does not exist")
		case pgCheckViolation:
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "stored value violates a schema constraint")
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
