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

const userColumns = `id, auth_id, institution_id, role, email, full_name, date_of_birth, phone, revision, created_at, updated_at`

// UserRepository handles persistence of users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create persists a new user record. Uniqueness of auth_id and email is
// enforced by the storage engine's unique indexes; a violation comes
// back as a typed conflict, never from a read-then-write check.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	const query = `INSERT INTO users (id, auth_id, institution_id, role, email, full_name, date_of_birth, phone, revision, created_at, updated_at)
        VALUES (:id, :auth_id, :institution_id, :role, :email, :full_name, :date_of_birth, :phone, :revision, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return translatePGError("create user", err)
	}
	return nil
}

// Update applies a partial update, bumping revision and updated_at.
func (r *UserRepository) Update(ctx context.Context, id string, update models.UserUpdate) error {
	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Role != nil {
		add("role", *update.Role)
	}
	if update.Email != nil {
		add("email", *update.Email)
	}
	if update.FullName != nil {
		add("full_name", *update.FullName)
	}
	if update.DateOfBirth != nil {
		add("date_of_birth", *update.DateOfBirth)
	}
	if update.Phone != nil {
		// Empty means cleared; store NULL rather than an empty string.
		if *update.Phone == "" {
			add("phone", nil)
		} else {
			add("phone", *update.Phone)
		}
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s, revision = revision + 1 WHERE id = $%d",
		strings.Join(sets, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return translatePGError("update user", err)
	}
	return nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, translatePGError("find user", err)
	}
	return &user, nil
}

// FindByAuthID returns a user by the identity provider's subject id.
func (r *UserRepository) FindByAuthID(ctx context.Context, authID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE auth_id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, authID); err != nil {
		return nil, translatePGError("find user by auth id", err)
	}
	return &user, nil
}

// FindByEmail returns a user by normalized email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, translatePGError("find user by email", err)
	}
	return &user, nil
}

// Exists reports whether a user with the given id is stored.
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, translatePGError("check user", err)
	}
	return exists, nil
}

// FindRef returns the reference view of a user, or nil when absent.
func (r *UserRepository) FindRef(ctx context.Context, id string) (*models.UserRef, error) {
	const query = `SELECT id, institution_id, role FROM users WHERE id = $1`
	var ref models.UserRef
	if err := r.db.GetContext(ctx, &ref, query, id); err != nil {
		return nil, translatePGError("find user ref", err)
	}
	return &ref, nil
}

// FindRefsByIDs returns reference views for the given ids, keyed by id.
// Absent ids are simply missing from the map.
func (r *UserRepository) FindRefsByIDs(ctx context.Context, ids []string) (map[string]models.UserRef, error) {
	refs := make(map[string]models.UserRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT id, institution_id, role FROM users WHERE id IN (%s)", strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, translatePGError("resolve user refs", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ref models.UserRef
		if err := rows.StructScan(&ref); err != nil {
			return nil, fmt.Errorf("scan user ref: %w", err)
		}
		refs[ref.ID] = ref
	}
	return refs, rows.Err()
}

// List returns users filtered by institution and role via the compound
// (institution_id, role) index, the primary tenant-scoped access path.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	base := `FROM users`
	var conditions []string
	var args []interface{}

	if filter.InstitutionID != "" {
		conditions = append(conditions, fmt.Sprintf("institution_id = $%d", len(args)+1))
		args = append(args, filter.InstitutionID)
	}
	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, filter.Role)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"email":      "email",
		"full_name":  "full_name",
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
		userColumns, base+clause, orderBy, order, size, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, translatePGError("list users", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, translatePGError("count users", err)
	}
	return users, total, nil
}
