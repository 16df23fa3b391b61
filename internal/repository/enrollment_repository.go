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

const enrollmentColumns = `id, program_id, student_id, parent_id, enrollment_date, status, payment_id, revision, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollments. The
// (program_id, student_id) pair rides on a unique index, so the insert
// itself is the duplicate check: under concurrent enroll calls for the
// same pair exactly one insert commits and the rest surface as a
// duplicate-enrollment conflict.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.DefaultEnrollmentStatus
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, program_id, student_id, parent_id, enrollment_date, status, payment_id, revision, created_at, updated_at)
        VALUES (:id, :program_id, :student_id, :parent_id, :enrollment_date, :status, :payment_id, :revision, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return translatePGError("create enrollment", err)
	}
	return nil
}

// FindByID returns an enrollment by identifier.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, translatePGError("find enrollment", err)
	}
	return &enrollment, nil
}

// TransitionFromActive moves an active enrollment to the given terminal
// status and reports whether a row changed. The status guard in the
// WHERE clause makes the transition atomic: two concurrent callers
// cannot both observe active and both succeed.
func (r *EnrollmentRepository) TransitionFromActive(ctx context.Context, id string, status models.EnrollmentStatus) (bool, error) {
	const query = `UPDATE enrollments
        SET status = $2, updated_at = $3, revision = revision + 1
        WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC(), models.EnrollmentStatusActive)
	if err != nil {
		return false, translatePGError("transition enrollment", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition enrollment: %w", err)
	}
	return affected == 1, nil
}

// List returns enrollments filtered by the provided criteria. The two
// hot paths, program+status and student+status, are served by compound
// indexes.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	base := `FROM enrollments`
	var conditions []string
	var args []interface{}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrollment_date": "enrollment_date",
		"created_at":      "created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "enrollment_date"
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
		enrollmentColumns, base+clause, orderBy, order, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, translatePGError("list enrollments", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, translatePGError("count enrollments", err)
	}
	return enrollments, total, nil
}
