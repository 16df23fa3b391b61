package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-registry/internal/models"
)

func TestInstitutionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstitutionRepository(db)

	mock.ExpectExec("INSERT INTO institutions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	institution := &models.Institution{
		Name:         "Acme School",
		Status:       models.DefaultInstitutionStatus,
		ContactEmail: "a@b.com",
		AdminID:      "usr-1",
	}
	err := repo.Create(context.Background(), institution)
	require.NoError(t, err)
	assert.NotEmpty(t, institution.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionRepositoryListByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstitutionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "status", "contact_email", "admin_id", "revision", "created_at", "updated_at"}).
		AddRow("inst-1", "Acme School", models.InstitutionStatusPending, "a@b.com", "usr-1", 0, now, now)
	mock.ExpectQuery("SELECT .+ FROM institutions WHERE status = \\$1").
		WithArgs(models.InstitutionStatusPending).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM institutions")).
		WithArgs(models.InstitutionStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	institutions, total, err := repo.List(context.Background(), models.InstitutionFilter{Status: models.InstitutionStatusPending})
	require.NoError(t, err)
	assert.Len(t, institutions, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstitutionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM institutions WHERE id = $1)")).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInstitutionRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstitutionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE institutions SET status = $1, updated_at = $2, revision = revision + 1 WHERE id = $3")).
		WithArgs(models.InstitutionStatusActive, sqlmock.AnyArg(), "inst-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	status := models.InstitutionStatusActive
	err := repo.Update(context.Background(), "inst-1", models.InstitutionUpdate{Status: &status})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
