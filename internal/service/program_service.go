package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-registry/internal/models"
	appErrors "github.com/noah-isme/edu-registry/pkg/errors"
	"github.com/noah-isme/edu-registry/pkg/validation"
)

type programRepository interface {
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, id string, update models.ProgramUpdate) error
	FindByID(ctx context.Context, id string) (*models.Program, error)
	ListByInstitution(ctx context.Context, institutionID string, filter models.ProgramFilter) ([]models.Program, int, error)
}

type userRefResolver interface {
	FindRefsByIDs(ctx context.Context, ids []string) (map[string]models.UserRef, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// FeeInput is the fee block of program write requests.
type FeeInput struct {
	Amount   float64        `json:"amount"`
	Currency string         `json:"currency,omitempty"`
	Type     models.FeeType `json:"type" validate:"required"`
}

// CreateProgramRequest describes program creation input.
type CreateProgramRequest struct {
	InstitutionID string                 `json:"institutionId" validate:"required"`
	Title         string                 `json:"title" validate:"required"`
	Description   string                 `json:"description,omitempty"`
	Category      models.ProgramCategory `json:"category" validate:"required"`
	Trainers      []string               `json:"trainers"`
	Schedule      []models.ScheduleSlot  `json:"schedule,omitempty"`
	Fee           FeeInput               `json:"fee"`
}

// UpdateProgramRequest describes a partial program update.
type UpdateProgramRequest struct {
	Title       *string                 `json:"title,omitempty"`
	Description *string                 `json:"description,omitempty"`
	Category    *models.ProgramCategory `json:"category,omitempty"`
	Trainers    *[]string               `json:"trainers,omitempty"`
	Schedule    *[]models.ScheduleSlot  `json:"schedule,omitempty"`
	Fee         *FeeInput               `json:"fee,omitempty"`
}

// ProgramService is the entity manager for programs. Field-shape checks
// run before relational checks; the schedule gate rejects the whole
// write when any slot is malformed, so no partial schedule is ever
// persisted.
type ProgramService struct {
	repo         programRepository
	institutions referenceChecker
	users        userRefResolver
	cache        catalogCache
	cacheTTL     time.Duration
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	timeout      time.Duration
}

// NewProgramService constructs ProgramService. cache may be nil.
func NewProgramService(repo programRepository, institutions referenceChecker, users userRefResolver, cache catalogCache, cacheTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, timeout time.Duration) *ProgramService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{
		repo:         repo,
		institutions: institutions,
		users:        users,
		cache:        cache,
		cacheTTL:     cacheTTL,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		timeout:      timeout,
	}
}

// Create validates and persists a new program.
func (s *ProgramService) Create(ctx context.Context, req CreateProgramRequest) (*models.Program, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	currency := validation.NormalizeCurrency(req.Fee.Currency)
	if currency == "" {
		currency = models.DefaultFeeCurrency
	}

	if violations := validateProgramShape(title, description, req.Category, req.Fee.Amount, currency, req.Fee.Type, req.Schedule); len(violations) > 0 {
		return nil, appErrors.Validation(violations...)
	}

	if len(req.Trainers) == 0 {
		return nil, appErrors.ValidationField("trainers", "At least one trainer must be assigned")
	}
	exists, err := s.institutions.Exists(ctx, req.InstitutionID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, "institutionId does not reference an existing institution")
	}
	if err := s.checkTrainers(ctx, req.InstitutionID, req.Trainers); err != nil {
		return nil, err
	}

	program := &models.Program{
		InstitutionID: req.InstitutionID,
		Title:         title,
		Description:   description,
		Category:      req.Category,
		Trainers:      req.Trainers,
		Schedule:      req.Schedule,
		Fee: models.Fee{
			Amount:   req.Fee.Amount,
			Currency: currency,
			Type:     req.Fee.Type,
		},
	}
	if err := s.repo.Create(ctx, program); err != nil {
		return nil, appErrors.FromError(err)
	}
	s.invalidateCatalog(ctx, program.InstitutionID, program.ID)
	s.logger.Info("program created",
		zap.String("program_id", program.ID),
		zap.String("institution_id", program.InstitutionID))
	return program, nil
}

// Update applies a partial update after re-running the relevant gates.
func (s *ProgramService) Update(ctx context.Context, id string, req UpdateProgramRequest) (*models.Program, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	current, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	update := models.ProgramUpdate{}
	var violations []appErrors.FieldViolation

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		violations = append(violations, validateTitle(title)...)
		update.Title = &title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		violations = append(violations, validateDescription(description)...)
		update.Description = &description
	}
	if req.Category != nil {
		if !req.Category.Valid() {
			violations = append(violations, appErrors.FieldViolation{Field: "category", Message: "Invalid category"})
		}
		update.Category = req.Category
	}
	if req.Schedule != nil {
		violations = append(violations, validateSchedule(*req.Schedule)...)
		update.Schedule = req.Schedule
	}
	if req.Fee != nil {
		currency := validation.NormalizeCurrency(req.Fee.Currency)
		if currency == "" {
			currency = models.DefaultFeeCurrency
		}
		violations = append(violations, validateFee(req.Fee.Amount, currency, req.Fee.Type)...)
		update.Fee = &models.Fee{Amount: req.Fee.Amount, Currency: currency, Type: req.Fee.Type}
	}
	if req.Trainers != nil && len(*req.Trainers) == 0 {
		violations = append(violations, appErrors.FieldViolation{Field: "trainers", Message: "At least one trainer must be assigned"})
	}
	if len(violations) > 0 {
		return nil, appErrors.Validation(violations...)
	}

	if req.Trainers != nil {
		if err := s.checkTrainers(ctx, current.InstitutionID, *req.Trainers); err != nil {
			return nil, err
		}
		update.Trainers = req.Trainers
	}

	if err := s.repo.Update(ctx, id, update); err != nil {
		return nil, appErrors.FromError(err)
	}
	s.invalidateCatalog(ctx, current.InstitutionID, id)
	return s.findByID(ctx, id)
}

// Get returns a program by identifier, read through the catalog cache.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.Program, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	if s.cache != nil {
		var cached models.Program
		if err := s.cache.Get(ctx, programCacheKey(id), &cached); err == nil {
			s.metrics.ObserveCacheHit()
			return &cached, nil
		}
		s.metrics.ObserveCacheMiss()
	}

	program, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, programCacheKey(id), program, s.cacheTTL); err != nil {
			s.logger.Warn("program cache set failed", zap.String("program_id", id), zap.Error(err))
		}
	}
	return program, nil
}

type catalogPage struct {
	Programs []models.Program `json:"programs"`
	Total    int              `json:"total"`
}

// ListByInstitution returns an institution's catalog page, read through
// the catalog cache.
func (s *ProgramService) ListByInstitution(ctx context.Context, institutionID string, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	if filter.Category != "" && !filter.Category.Valid() {
		return nil, nil, appErrors.ValidationField("category", "Invalid category")
	}
	if filter.FeeType != "" && !filter.FeeType.Valid() {
		return nil, nil, appErrors.ValidationField("fee.type", "Invalid fee type")
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	key := catalogCacheKey(institutionID, filter, page, size)

	if s.cache != nil {
		var cached catalogPage
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.ObserveCacheHit()
			return cached.Programs, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, nil
		}
		s.metrics.ObserveCacheMiss()
	}

	programs, total, err := s.repo.ListByInstitution(ctx, institutionID, filter)
	if err != nil {
		return nil, nil, appErrors.FromError(err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, catalogPage{Programs: programs, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("catalog cache set failed", zap.String("institution_id", institutionID), zap.Error(err))
		}
	}
	return programs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Exists reports whether a program is stored; the enrollment manager
// uses this to verify programId references.
func (s *ProgramService) Exists(ctx context.Context, id string) (bool, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return program != nil, nil
}

func (s *ProgramService) findByID(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.FromError(err)
	}
	return program, nil
}

// checkTrainers verifies every trainer reference exists, belongs to the
// program's institution and holds a staff or admin role.
func (s *ProgramService) checkTrainers(ctx context.Context, institutionID string, trainers []string) error {
	refs, err := s.users.FindRefsByIDs(ctx, trainers)
	if err != nil {
		return appErrors.FromError(err)
	}
	for _, trainerID := range trainers {
		ref, ok := refs[trainerID]
		if !ok {
			return appErrors.Clone(appErrors.ErrReferentialIntegrity,
				fmt.Sprintf("trainer %s does not reference an existing user", trainerID))
		}
		if ref.InstitutionID != institutionID {
			return appErrors.Clone(appErrors.ErrReferentialIntegrity,
				fmt.Sprintf("trainer %s belongs to a different institution", trainerID))
		}
		if ref.Role != models.UserRoleStaff && ref.Role != models.UserRoleAdmin {
			return appErrors.Clone(appErrors.ErrReferentialIntegrity,
				fmt.Sprintf("trainer %s is not a staff or admin user", trainerID))
		}
	}
	return nil
}

func (s *ProgramService) invalidateCatalog(ctx context.Context, institutionID, programID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, catalogCachePattern(institutionID)); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.String("institution_id", institutionID), zap.Error(err))
	}
	if err := s.cache.DeleteByPattern(ctx, programCacheKey(programID)); err != nil {
		s.logger.Warn("program cache invalidation failed", zap.String("program_id", programID), zap.Error(err))
	}
}

func programCacheKey(id string) string {
	return "program:" + id
}

func catalogCacheKey(institutionID string, filter models.ProgramFilter, page, size int) string {
	return fmt.Sprintf("catalog:%s:%s:%s:%d:%d", institutionID, filter.Category, filter.FeeType, page, size)
}

func catalogCachePattern(institutionID string) string {
	return fmt.Sprintf("catalog:%s:*", institutionID)
}

func validateTitle(title string) []appErrors.FieldViolation {
	n := len([]rune(title))
	switch {
	case n < 3:
		return []appErrors.FieldViolation{{Field: "title", Message: "Title must be at least 3 characters long"}}
	case n > 100:
		return []appErrors.FieldViolation{{Field: "title", Message: "Title cannot exceed 100 characters"}}
	}
	return nil
}

func validateDescription(description string) []appErrors.FieldViolation {
	if len([]rune(description)) > 1000 {
		return []appErrors.FieldViolation{{Field: "description", Message: "Description cannot exceed 1000 characters"}}
	}
	return nil
}

func validateFee(amount float64, currency string, feeType models.FeeType) []appErrors.FieldViolation {
	var violations []appErrors.FieldViolation
	if amount < 0 {
		violations = append(violations, appErrors.FieldViolation{Field: "fee.amount", Message: "Fee amount cannot be negative"})
	}
	if !validation.ValidCurrency(currency) {
		violations = append(violations, appErrors.FieldViolation{Field: "fee.currency", Message: "Invalid currency format"})
	}
	if !feeType.Valid() {
		violations = append(violations, appErrors.FieldViolation{Field: "fee.type", Message: "Invalid fee type"})
	}
	return violations
}

// validateSchedule gates the whole sequence: one bad slot rejects the
// entire write.
func validateSchedule(schedule []models.ScheduleSlot) []appErrors.FieldViolation {
	var violations []appErrors.FieldViolation
	for i, slot := range schedule {
		field := fmt.Sprintf("schedule[%d]", i)
		if !models.ValidScheduleDay(slot.Day) {
			violations = append(violations, appErrors.FieldViolation{Field: field + ".day", Message: "Day is required in schedule"})
		}
		startOK := validation.ValidTimeHHMM(slot.StartTime)
		endOK := validation.ValidTimeHHMM(slot.EndTime)
		if !startOK {
			violations = append(violations, appErrors.FieldViolation{Field: field + ".startTime", Message: "Start time must be in HH:mm format"})
		}
		if !endOK {
			violations = append(violations, appErrors.FieldViolation{Field: field + ".endTime", Message: "End time must be in HH:mm format"})
		}
		// zero-padded HH:mm strings order lexicographically
		if startOK && endOK && slot.StartTime >= slot.EndTime {
			violations = append(violations, appErrors.FieldViolation{Field: field, Message: "end time must be later than start time"})
		}
	}
	return violations
}

func validateProgramShape(title, description string, category models.ProgramCategory, amount float64, currency string, feeType models.FeeType, schedule []models.ScheduleSlot) []appErrors.FieldViolation {
	var violations []appErrors.FieldViolation
	violations = append(violations, validateTitle(title)...)
	violations = append(violations, validateDescription(description)...)
	if !category.Valid() {
		violations = append(violations, appErrors.FieldViolation{Field: "category", Message: "Invalid category"})
	}
	violations = append(violations, validateFee(amount, currency, feeType)...)
	violations = append(violations, validateSchedule(schedule)...)
	return violations
}
