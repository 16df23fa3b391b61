package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-registry/internal/models"
	appErrors "github.com/noah-isme/edu-registry/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{ProgramID: "prog-1", StudentID: "stu-1"}
	err := repo.Create(context.Background(), enrollment)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.False(t, enrollment.EnrollmentDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDuplicatePair(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_enrollments_program_student"})

	err := repo.Create(context.Background(), &models.Enrollment{ProgramID: "prog-1", StudentID: "stu-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateEnrollment))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateMissingReference(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "enrollments_program_id_fkey"})

	err := repo.Create(context.Background(), &models.Enrollment{ProgramID: "missing", StudentID: "stu-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrReferentialIntegrity))
}

func TestEnrollmentRepositoryTransitionFromActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments")).
		WithArgs("enr-1", models.EnrollmentStatusCancelled, sqlmock.AnyArg(), models.EnrollmentStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.TransitionFromActive(context.Background(), "enr-1", models.EnrollmentStatusCancelled)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryTransitionNoRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments")).
		WithArgs("enr-1", models.EnrollmentStatusCompleted, sqlmock.AnyArg(), models.EnrollmentStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.TransitionFromActive(context.Background(), "enr-1", models.EnrollmentStatusCompleted)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestEnrollmentRepositoryListByProgramAndStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "program_id", "student_id", "parent_id", "enrollment_date", "status", "payment_id", "revision", "created_at", "updated_at"}).
		AddRow("enr-1", "prog-1", "stu-1", nil, now, models.EnrollmentStatusActive, nil, 0, now, now)
	mock.ExpectQuery("SELECT .+ FROM enrollments WHERE program_id = \\$1 AND status = \\$2").
		WithArgs("prog-1", models.EnrollmentStatusActive).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments")).
		WithArgs("prog-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{
		ProgramID: "prog-1",
		Status:    models.EnrollmentStatusActive,
	})
	require.NoError(t, err)
	assert.Len(t, enrollments, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
