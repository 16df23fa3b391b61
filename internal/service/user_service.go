package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-registry/internal/models"
	appErrors "github.com/noah-isme/edu-registry/pkg/errors"
	"github.com/noah-isme/edu-registry/pkg/validation"
)

type userRepository interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id string, update models.UserUpdate) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByAuthID(ctx context.Context, authID string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

// UserProfileInput is the nested profile block of user write requests.
type UserProfileInput struct {
	Name        string     `json:"name" validate:"required"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
}

// CreateUserRequest describes user creation input. AuthID is the
// verified subject identifier supplied by the external identity
// provider.
type CreateUserRequest struct {
	AuthID        string           `json:"externalAuthId" validate:"required"`
	InstitutionID string           `json:"institutionId" validate:"required"`
	Role          models.UserRole  `json:"role,omitempty"`
	Email         string           `json:"email" validate:"required"`
	Profile       UserProfileInput `json:"profile"`
}

// UpdateUserRequest describes a partial user update. AuthID and
// InstitutionID are immutable and therefore absent.
type UpdateUserRequest struct {
	Role        *models.UserRole `json:"role,omitempty"`
	Email       *string          `json:"email,omitempty"`
	Name        *string          `json:"name,omitempty"`
	DateOfBirth *time.Time       `json:"dateOfBirth,omitempty"`
	Phone       *string          `json:"phone,omitempty"`
}

// UserService is the entity manager for users. Uniqueness of email and
// auth id is never checked by reading first: the insert relies on the
// storage engine's unique indexes, so concurrent creates cannot race.
type UserService struct {
	repo         userRepository
	institutions referenceChecker
	validator    *validator.Validate
	logger       *zap.Logger
	timeout      time.Duration
}

// NewUserService constructs UserService.
func NewUserService(repo userRepository, institutions referenceChecker, validate *validator.Validate, logger *zap.Logger, timeout time.Duration) *UserService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, institutions: institutions, validator: validate, logger: logger, timeout: timeout}
}

// Create validates, normalizes and persists a new user.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	authID := strings.TrimSpace(req.AuthID)
	email := validation.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Profile.Name)
	role := req.Role
	if role == "" {
		role = models.DefaultUserRole
	}

	var violations []appErrors.FieldViolation
	if authID == "" {
		violations = append(violations, appErrors.FieldViolation{Field: "externalAuthId", Message: "External auth ID is required"})
	}
	if !role.Valid() {
		violations = append(violations, appErrors.FieldViolation{Field: "role", Message: "Invalid role"})
	}
	if !validation.ValidEmail(email) {
		violations = append(violations, appErrors.FieldViolation{Field: "email", Message: "Invalid email format"})
	}
	violations = append(violations, validateProfile(name, req.Profile.DateOfBirth, req.Profile.Phone)...)
	if len(violations) > 0 {
		return nil, appErrors.Validation(violations...)
	}

	exists, err := s.institutions.Exists(ctx, req.InstitutionID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, "institutionId does not reference an existing institution")
	}

	var phone *string
	if req.Profile.Phone != nil {
		if trimmed := strings.TrimSpace(*req.Profile.Phone); trimmed != "" {
			phone = &trimmed
		}
	}
	user := &models.User{
		AuthID:        authID,
		InstitutionID: req.InstitutionID,
		Role:          role,
		Email:         email,
		FullName:      name,
		DateOfBirth:   req.Profile.DateOfBirth,
		Phone:         phone,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.FromError(err)
	}
	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("institution_id", user.InstitutionID),
		zap.String("role", string(user.Role)))
	return user, nil
}

// Update applies a partial update after validating the provided fields.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	update := models.UserUpdate{DateOfBirth: req.DateOfBirth}
	var violations []appErrors.FieldViolation

	if req.Role != nil {
		if !req.Role.Valid() {
			violations = append(violations, appErrors.FieldViolation{Field: "role", Message: "Invalid role"})
		}
		update.Role = req.Role
	}
	if req.Email != nil {
		email := validation.NormalizeEmail(*req.Email)
		if !validation.ValidEmail(email) {
			violations = append(violations, appErrors.FieldViolation{Field: "email", Message: "Invalid email format"})
		}
		update.Email = &email
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len([]rune(name)) < 2 {
			violations = append(violations, appErrors.FieldViolation{Field: "profile.name", Message: "Name must be at least 2 characters long"})
		}
		update.FullName = &name
	}
	if req.DateOfBirth != nil && !req.DateOfBirth.Before(time.Now()) {
		violations = append(violations, appErrors.FieldViolation{Field: "profile.dateOfBirth", Message: "Date of birth cannot be in the future"})
	}
	if req.Phone != nil {
		// An empty phone clears the stored value.
		phone := strings.TrimSpace(*req.Phone)
		if phone != "" && !validation.ValidPhone(phone) {
			violations = append(violations, appErrors.FieldViolation{Field: "profile.phone", Message: "Invalid phone number"})
		}
		update.Phone = &phone
	}
	if len(violations) > 0 {
		return nil, appErrors.Validation(violations...)
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, update); err != nil {
		return nil, appErrors.FromError(err)
	}
	return s.Get(ctx, id)
}

// Get returns a user by identifier.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.FromError(err)
	}
	return user, nil
}

// FindByAuthID returns the user holding the identity provider subject.
func (s *UserService) FindByAuthID(ctx context.Context, authID string) (*models.User, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.FindByAuthID(ctx, strings.TrimSpace(authID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.FromError(err)
	}
	return user, nil
}

// FindByEmail returns the user holding the address; lookup normalizes
// the same way storage does, so any casing matches.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.FindByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.FromError(err)
	}
	return user, nil
}

// List returns users with pagination metadata; institution plus role is
// the tenant-scoped hot path.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	if filter.Role != "" && !filter.Role.Valid() {
		return nil, nil, appErrors.ValidationField("role", "Invalid role")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.FromError(err)
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Exists reports whether a user is stored; other managers use this to
// verify user references.
func (s *UserService) Exists(ctx context.Context, id string) (bool, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return user != nil, nil
}

func validateProfile(name string, dateOfBirth *time.Time, phone *string) []appErrors.FieldViolation {
	var violations []appErrors.FieldViolation
	if len([]rune(name)) < 2 {
		violations = append(violations, appErrors.FieldViolation{Field: "profile.name", Message: "Name must be at least 2 characters long"})
	}
	if dateOfBirth != nil && !dateOfBirth.Before(time.Now()) {
		violations = append(violations, appErrors.FieldViolation{Field: "profile.dateOfBirth", Message: "Date of birth cannot be in the future"})
	}
	if phone != nil {
		if trimmed := strings.TrimSpace(*phone); trimmed != "" && !validation.ValidPhone(trimmed) {
			violations = append(violations, appErrors.FieldViolation{Field: "profile.phone", Message: "Invalid phone number"})
		}
	}
	return violations
}
