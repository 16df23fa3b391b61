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

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	TransitionFromActive(ctx context.Context, id string, status models.EnrollmentStatus) (bool, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
}

type userRefReader interface {
	FindRef(ctx context.Context, id string) (*models.UserRef, error)
}

// EnrollRequest describes enrollment creation input.
type EnrollRequest struct {
	ProgramID string  `json:"programId" validate:"required"`
	StudentID string  `json:"studentId" validate:"required"`
	ParentID  *string `json:"parentId,omitempty"`
	PaymentID *string `json:"paymentId,omitempty"`
}

// EnrollmentService is the entity manager for enrollments, the
// consistency-critical component. Enroll performs no duplicate
// pre-check: the (program_id, student_id) unique index decides, so
// concurrent calls for the same pair yield exactly one success.
type EnrollmentService struct {
	repo      enrollmentRepository
	programs  referenceChecker
	users     userRefReader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	timeout   time.Duration
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, programs referenceChecker, users userRefReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, timeout time.Duration) *EnrollmentService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, programs: programs, users: users, metrics: metrics, validator: validate, logger: logger, timeout: timeout}
}

// Enroll registers a student into a program.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	enrollment, err := s.enroll(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = "error"
		if errors.Is(err, appErrors.ErrDuplicateEnrollment) {
			s.metrics.ObserveConflict("enrollment")
		}
	}
	s.metrics.ObserveOperation("enrollment", "enroll", outcome, time.Since(start))
	return enrollment, err
}

func (s *EnrollmentService) enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	var paymentID *string
	if req.PaymentID != nil {
		trimmed := strings.TrimSpace(*req.PaymentID)
		if !validation.ValidPaymentID(trimmed) {
			return nil, appErrors.ValidationField("paymentId", "Invalid payment ID format")
		}
		paymentID = &trimmed
	}

	exists, err := s.programs.Exists(ctx, req.ProgramID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, "programId does not reference an existing program")
	}

	student, err := s.users.FindRef(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, "studentId does not reference an existing user")
		}
		return nil, appErrors.FromError(err)
	}
	if student.Role != models.UserRoleStudent {
		return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, "studentId does not reference a student user")
	}

	if req.ParentID != nil {
		if _, err := s.users.FindRef(ctx, *req.ParentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, "parentId does not reference an existing user")
			}
			return nil, appErrors.FromError(err)
		}
	}

	enrollment := &models.Enrollment{
		ProgramID: req.ProgramID,
		StudentID: req.StudentID,
		ParentID:  req.ParentID,
		Status:    models.DefaultEnrollmentStatus,
		PaymentID: paymentID,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.FromError(err)
	}
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("program_id", enrollment.ProgramID),
		zap.String("student_id", enrollment.StudentID))
	return enrollment, nil
}

// Cancel moves an active enrollment to cancelled.
func (s *EnrollmentService) Cancel(ctx context.Context, id string) (*models.Enrollment, error) {
	return s.transition(ctx, id, models.EnrollmentStatusCancelled)
}

// Complete moves an active enrollment to completed.
func (s *EnrollmentService) Complete(ctx context.Context, id string) (*models.Enrollment, error) {
	return s.transition(ctx, id, models.EnrollmentStatusCompleted)
}

// transition applies the state machine: only active enrollments move,
// and the conditional update keeps concurrent transitions from both
// succeeding. A zero-row update is then diagnosed as missing record vs
// terminal state.
func (s *EnrollmentService) transition(ctx context.Context, id string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	changed, err := s.repo.TransitionFromActive(ctx, id, status)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if !changed {
		enrollment, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			}
			return nil, appErrors.FromError(err)
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition,
			fmt.Sprintf("cannot transition %s enrollment to %s", enrollment.Status, status))
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	s.logger.Info("enrollment transitioned",
		zap.String("enrollment_id", id),
		zap.String("status", string(status)))
	return enrollment, nil
}

// Get returns an enrollment by identifier.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.FromError(err)
	}
	return enrollment, nil
}

// ListByProgram returns a program's enrollments, optionally filtered by
// status; the admin-dashboard hot path.
func (s *EnrollmentService) ListByProgram(ctx context.Context, programID string, status models.EnrollmentStatus, page, pageSize int) ([]models.Enrollment, *models.Pagination, error) {
	return s.list(ctx, models.EnrollmentFilter{ProgramID: programID, Status: status, Page: page, PageSize: pageSize})
}

// ListByStudent returns a student's enrollments, optionally filtered by
// status; the student-portal hot path.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string, status models.EnrollmentStatus, page, pageSize int) ([]models.Enrollment, *models.Pagination, error) {
	return s.list(ctx, models.EnrollmentFilter{StudentID: studentID, Status: status, Page: page, PageSize: pageSize})
}

func (s *EnrollmentService) list(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.ValidationField("status", "Invalid status")
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.FromError(err)
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
