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

func TestProgramRepositoryCreateAtomic(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO programs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO program_trainers").
		WithArgs(sqlmock.AnyArg(), "usr-1", 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO program_trainers").
		WithArgs(sqlmock.AnyArg(), "usr-2", 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO program_schedule_slots").
		WithArgs(sqlmock.AnyArg(), 0, "Monday", "09:00", "10:00").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	program := &models.Program{
		InstitutionID: "inst-1",
		Title:         "Guitar Basics",
		Category:      models.ProgramCategoryMusic,
		Trainers:      []string{"usr-1", "usr-2"},
		Schedule:      []models.ScheduleSlot{{Day: "Monday", StartTime: "09:00", EndTime: "10:00"}},
		Fee:           models.Fee{Amount: 500, Currency: "INR", Type: models.FeeTypeOneTime},
	}
	err := repo.Create(context.Background(), program)
	require.NoError(t, err)
	assert.NotEmpty(t, program.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryCreateRollsBackOnChildFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO programs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO program_trainers").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	program := &models.Program{
		InstitutionID: "inst-1",
		Title:         "Guitar Basics",
		Category:      models.ProgramCategoryMusic,
		Trainers:      []string{"usr-1"},
		Fee:           models.Fee{Amount: 500, Currency: "INR", Type: models.FeeTypeOneTime},
	}
	err := repo.Create(context.Background(), program)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryFindByIDAssemblesChildren(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	now := time.Now()
	programCols := []string{"id", "institution_id", "title", "description", "category", "fee_amount", "fee_currency", "fee_type", "revision", "created_at", "updated_at"}
	mock.ExpectQuery("SELECT .+ FROM programs WHERE id = \\$1").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows(programCols).
			AddRow("prog-1", "inst-1", "Guitar Basics", "", models.ProgramCategoryMusic, 500.0, "INR", models.FeeTypeOneTime, 0, now, now))
	mock.ExpectQuery("SELECT program_id, user_id, position FROM program_trainers").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"program_id", "user_id", "position"}).
			AddRow("prog-1", "usr-1", 0).
			AddRow("prog-1", "usr-2", 1))
	mock.ExpectQuery("SELECT program_id, day, start_time, end_time FROM program_schedule_slots").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"program_id", "day", "start_time", "end_time"}).
			AddRow("prog-1", "Monday", "09:00", "10:00"))

	program, err := repo.FindByID(context.Background(), "prog-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"usr-1", "usr-2"}, program.Trainers)
	require.Len(t, program.Schedule, 1)
	assert.Equal(t, "09:00", program.Schedule[0].StartTime)
	assert.Equal(t, models.Fee{Amount: 500, Currency: "INR", Type: models.FeeTypeOneTime}, program.Fee)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryUpdateReplacesSchedule(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE programs SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM program_schedule_slots WHERE program_id = $1")).
		WithArgs("prog-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO program_schedule_slots").
		WithArgs("prog-1", 0, "Tuesday", "10:00", "11:30").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	schedule := []models.ScheduleSlot{{Day: "Tuesday", StartTime: "10:00", EndTime: "11:30"}}
	err := repo.Update(context.Background(), "prog-1", models.ProgramUpdate{Schedule: &schedule})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryListByInstitution(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	now := time.Now()
	programCols := []string{"id", "institution_id", "title", "description", "category", "fee_amount", "fee_currency", "fee_type", "revision", "created_at", "updated_at"}
	mock.ExpectQuery("SELECT .+ FROM programs WHERE institution_id = \\$1 AND category = \\$2").
		WithArgs("inst-1", models.ProgramCategorySports).
		WillReturnRows(sqlmock.NewRows(programCols).
			AddRow("prog-1", "inst-1", "Football Camp", "", models.ProgramCategorySports, 1000.0, "INR", models.FeeTypeSubscription, 0, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM programs")).
		WithArgs("inst-1", models.ProgramCategorySports).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT program_id, user_id, position FROM program_trainers").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"program_id", "user_id", "position"}).
			AddRow("prog-1", "usr-9", 0))
	mock.ExpectQuery("SELECT program_id, day, start_time, end_time FROM program_schedule_slots").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"program_id", "day", "start_time", "end_time"}))

	programs, total, err := repo.ListByInstitution(context.Background(), "inst-1", models.ProgramFilter{Category: models.ProgramCategorySports})
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"usr-9"}, programs[0].Trainers)
	assert.NoError(t, mock.ExpectationsWereMet())
}
