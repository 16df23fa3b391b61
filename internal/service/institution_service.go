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

type institutionRepository interface {
	Create(ctx context.Context, institution *models.Institution) error
	Update(ctx context.Context, id string, update models.InstitutionUpdate) error
	FindByID(ctx context.Context, id string) (*models.Institution, error)
	List(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, int, error)
}

// CreateInstitutionRequest describes institution creation input.
type CreateInstitutionRequest struct {
	Name         string `json:"name" validate:"required"`
	ContactEmail string `json:"contactEmail" validate:"required"`
	AdminID      string `json:"adminId" validate:"required"`
}

// UpdateInstitutionRequest describes a partial institution update.
type UpdateInstitutionRequest struct {
	Name         *string                   `json:"name,omitempty"`
	Status       *models.InstitutionStatus `json:"status,omitempty"`
	ContactEmail *string                   `json:"contactEmail,omitempty"`
	AdminID      *string                   `json:"adminId,omitempty"`
}

// InstitutionService is the entity manager for institutions.
type InstitutionService struct {
	repo      institutionRepository
	users     referenceChecker
	validator *validator.Validate
	logger    *zap.Logger
	timeout   time.Duration
}

// NewInstitutionService constructs InstitutionService.
func NewInstitutionService(repo institutionRepository, users referenceChecker, validate *validator.Validate, logger *zap.Logger, timeout time.Duration) *InstitutionService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstitutionService{repo: repo, users: users, validator: validate, logger: logger, timeout: timeout}
}

// Create validates and persists a new institution. Status always starts
// pending; an external approval process moves it to active.
func (s *InstitutionService) Create(ctx context.Context, req CreateInstitutionRequest) (*models.Institution, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institution payload")
	}

	name := strings.TrimSpace(req.Name)
	email := validation.NormalizeEmail(req.ContactEmail)

	var violations []appErrors.FieldViolation
	if name == "" {
		violations = append(violations, appErrors.FieldViolation{Field: "name", Message: "Name is required"})
	}
	if !validation.ValidEmail(email) {
		violations = append(violations, appErrors.FieldViolation{Field: "contactEmail", Message: "Invalid email format"})
	}
	if len(violations) > 0 {
		return nil, appErrors.Validation(violations...)
	}

	if err := s.checkAdminExists(ctx, req.AdminID); err != nil {
		return nil, err
	}

	institution := &models.Institution{
		Name:         name,
		Status:       models.DefaultInstitutionStatus,
		ContactEmail: email,
		AdminID:      req.AdminID,
	}
	if err := s.repo.Create(ctx, institution); err != nil {
		return nil, appErrors.FromError(err)
	}
	s.logger.Info("institution created", zap.String("institution_id", institution.ID))
	return institution, nil
}

// Update applies a partial update after validating the provided fields.
func (s *InstitutionService) Update(ctx context.Context, id string, req UpdateInstitutionRequest) (*models.Institution, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	update := models.InstitutionUpdate{}
	var violations []appErrors.FieldViolation

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			violations = append(violations, appErrors.FieldViolation{Field: "name", Message: "Name is required"})
		}
		update.Name = &name
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			violations = append(violations, appErrors.FieldViolation{Field: "status", Message: "Invalid status"})
		}
		update.Status = req.Status
	}
	if req.ContactEmail != nil {
		email := validation.NormalizeEmail(*req.ContactEmail)
		if !validation.ValidEmail(email) {
			violations = append(violations, appErrors.FieldViolation{Field: "contactEmail", Message: "Invalid email format"})
		}
		update.ContactEmail = &email
	}
	if len(violations) > 0 {
		return nil, appErrors.Validation(violations...)
	}

	if req.AdminID != nil {
		if err := s.checkAdminExists(ctx, *req.AdminID); err != nil {
			return nil, err
		}
		update.AdminID = req.AdminID
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, update); err != nil {
		return nil, appErrors.FromError(err)
	}
	return s.Get(ctx, id)
}

// Get returns an institution by identifier.
func (s *InstitutionService) Get(ctx context.Context, id string) (*models.Institution, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	institution, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return nil, appErrors.FromError(err)
	}
	return institution, nil
}

// Exists reports whether an institution is stored; other managers use
// this to verify institutionId references.
func (s *InstitutionService) Exists(ctx context.Context, id string) (bool, error) {
	institution, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return institution != nil, nil
}

// List returns institutions with pagination metadata, filtered by
// status and admin reference.
func (s *InstitutionService) List(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, *models.Pagination, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.ValidationField("status", "Invalid status")
	}
	institutions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.FromError(err)
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	return institutions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *InstitutionService) checkAdminExists(ctx context.Context, adminID string) error {
	exists, err := s.users.Exists(ctx, adminID)
	if err != nil {
		return appErrors.FromError(err)
	}
	if !exists {
		return appErrors.Clone(appErrors.ErrReferentialIntegrity, "adminId does not reference an existing user")
	}
	return nil
}
