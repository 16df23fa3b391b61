package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-registry/internal/models"
)

// ProgramRepository handles persistence of programs together with their
// ordered trainer and schedule child rows. Writes touching the three
// tables run in a single transaction so a rejected slot or trainer
// leaves nothing behind.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

type programRow struct {
	ID            string                 `db:"id"`
	InstitutionID string                 `db:"institution_id"`
	Title         string                 `db:"title"`
	Description   string                 `db:"description"`
	Category      models.ProgramCategory `db:"category"`
	FeeAmount     float64                `db:"fee_amount"`
	FeeCurrency   string                 `db:"fee_currency"`
	FeeType       models.FeeType         `db:"fee_type"`
	Revision      int                    `db:"revision"`
	CreatedAt     time.Time              `db:"created_at"`
	UpdatedAt     time.Time              `db:"updated_at"`
}

func (row programRow) toModel() models.Program {
	return models.Program{
		ID:            row.ID,
		InstitutionID: row.InstitutionID,
		Title:         row.Title,
		Description:   row.Description,
		Category:      row.Category,
		Fee: models.Fee{
			Amount:   row.FeeAmount,
			Currency: row.FeeCurrency,
			Type:     row.FeeType,
		},
		Revision:  row.Revision,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

const programColumns = `id, institution_id, title, description, category, fee_amount, fee_currency, fee_type, revision, created_at, updated_at`

// Create persists a program with its trainers and schedule atomically.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	program.CreatedAt = now
	program.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return translatePGError("begin program create", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertProgram = `INSERT INTO programs (id, institution_id, title, description, category, fee_amount, fee_currency, fee_type, revision, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := tx.ExecContext(ctx, insertProgram,
		program.ID, program.InstitutionID, program.Title, program.Description, program.Category,
		program.Fee.Amount, program.Fee.Currency, program.Fee.Type,
		program.Revision, program.CreatedAt, program.UpdatedAt,
	); err != nil {
		return translatePGError("create program", err)
	}

	if err := insertTrainers(ctx, tx, program.ID, program.Trainers); err != nil {
		return err
	}
	if err := insertScheduleSlots(ctx, tx, program.ID, program.Schedule); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return translatePGError("commit program create", err)
	}
	return nil
}

// Update applies a partial update; a provided trainer or schedule
// sequence replaces the stored one inside the same transaction.
func (r *ProgramRepository) Update(ctx context.Context, id string, update models.ProgramUpdate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return translatePGError("begin program update", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Category != nil {
		add("category", *update.Category)
	}
	if update.Fee != nil {
		add("fee_amount", update.Fee.Amount)
		add("fee_currency", update.Fee.Currency)
		add("fee_type", update.Fee.Type)
	}
	if len(sets) > 0 || update.Trainers != nil || update.Schedule != nil {
		add("updated_at", time.Now().UTC())
		args = append(args, id)
		query := fmt.Sprintf("UPDATE programs SET %s, revision = revision + 1 WHERE id = $%d",
			strings.Join(sets, ", "), len(args))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return translatePGError("update program", err)
		}
	}

	if update.Trainers != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM program_trainers WHERE program_id = $1`, id); err != nil {
			return translatePGError("replace trainers", err)
		}
		if err := insertTrainers(ctx, tx, id, *update.Trainers); err != nil {
			return err
		}
	}
	if update.Schedule != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM program_schedule_slots WHERE program_id = $1`, id); err != nil {
			return translatePGError("replace schedule", err)
		}
		if err := insertScheduleSlots(ctx, tx, id, *update.Schedule); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return translatePGError("commit program update", err)
	}
	return nil
}

func insertTrainers(ctx context.Context, tx *sqlx.Tx, programID string, trainers []string) error {
	const query = `INSERT INTO program_trainers (program_id, user_id, position) VALUES ($1, $2, $3)`
	for i, userID := range trainers {
		if _, err := tx.ExecContext(ctx, query, programID, userID, i); err != nil {
			return translatePGError("insert trainer", err)
		}
	}
	return nil
}

func insertScheduleSlots(ctx context.Context, tx *sqlx.Tx, programID string, slots []models.ScheduleSlot) error {
	const query = `INSERT INTO program_schedule_slots (program_id, position, day, start_time, end_time) VALUES ($1, $2, $3, $4, $5)`
	for i, slot := range slots {
		if _, err := tx.ExecContext(ctx, query, programID, i, slot.Day, slot.StartTime, slot.EndTime); err != nil {
			return translatePGError("insert schedule slot", err)
		}
	}
	return nil
}

// FindByID returns a program with trainers and schedule assembled.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	query := `SELECT ` + programColumns + ` FROM programs WHERE id = $1`
	var row programRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, translatePGError("find program", err)
	}
	program := row.toModel()
	if err := r.attachChildren(ctx, map[string]*models.Program{id: &program}); err != nil {
		return nil, err
	}
	return &program, nil
}

// Exists reports whether a program with the given id is stored.
func (r *ProgramRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM programs WHERE id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, translatePGError("check program", err)
	}
	return exists, nil
}

// ListByInstitution returns an institution's catalog page via the
// (institution_id, category) compound index; fee_type filtering uses
// its secondary index.
func (r *ProgramRepository) ListByInstitution(ctx context.Context, institutionID string, filter models.ProgramFilter) ([]models.Program, int, error) {
	base := `FROM programs WHERE institution_id = $1`
	args := []interface{}{institutionID}

	if filter.Category != "" {
		args = append(args, filter.Category)
		base += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.FeeType != "" {
		args = append(args, filter.FeeType)
		base += fmt.Sprintf(" AND fee_type = $%d", len(args))
	}

	allowedSorts := map[string]string{
		"title":      "title",
		"created_at": "created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		programColumns, base, orderBy, order, size, offset)

	var rows []programRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, translatePGError("list programs", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, translatePGError("count programs", err)
	}

	programs := make([]models.Program, len(rows))
	byID := make(map[string]*models.Program, len(rows))
	for i, row := range rows {
		programs[i] = row.toModel()
		byID[programs[i].ID] = &programs[i]
	}
	if err := r.attachChildren(ctx, byID); err != nil {
		return nil, 0, err
	}
	return programs, total, nil
}

// attachChildren loads trainers and schedule slots for the given
// programs in two queries, preserving stored order.
func (r *ProgramRepository) attachChildren(ctx context.Context, programs map[string]*models.Program) error {
	if len(programs) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(programs))
	args := make([]interface{}, 0, len(programs))
	for id := range programs {
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	in := strings.Join(placeholders, ",")

	trainerQuery := fmt.Sprintf(
		`SELECT program_id, user_id, position FROM program_trainers WHERE program_id IN (%s) ORDER BY program_id, position`, in)
	trainerRows, err := r.db.QueryxContext(ctx, trainerQuery, args...)
	if err != nil {
		return translatePGError("load trainers", err)
	}
	for trainerRows.Next() {
		var programID, userID string
		var position int
		if err := trainerRows.Scan(&programID, &userID, &position); err != nil {
			trainerRows.Close()
			return fmt.Errorf("scan trainer: %w", err)
		}
		if p, ok := programs[programID]; ok {
			p.Trainers = append(p.Trainers, userID)
		}
	}
	trainerRows.Close()
	if err := trainerRows.Err(); err != nil {
		return fmt.Errorf("iterate trainers: %w", err)
	}

	slotQuery := fmt.Sprintf(
		`SELECT program_id, day, start_time, end_time FROM program_schedule_slots WHERE program_id IN (%s) ORDER BY program_id, position`, in)
	slotRows, err := r.db.QueryxContext(ctx, slotQuery, args...)
	if err != nil {
		return translatePGError("load schedule", err)
	}
	defer slotRows.Close()
	for slotRows.Next() {
		var programID string
		var slot models.ScheduleSlot
		if err := slotRows.Scan(&programID, &slot.Day, &slot.StartTime, &slot.EndTime); err != nil {
			return fmt.Errorf("scan schedule slot: %w", err)
		}
		if p, ok := programs[programID]; ok {
			p.Schedule = append(p.Schedule, slot)
		}
	}
	return slotRows.Err()
}
