package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Completed and cancelled are terminal.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// DefaultEnrollmentStatus is applied at creation.
const DefaultEnrollmentStatus = EnrollmentStatusActive

// Valid reports whether the status is a known value.
func (s EnrollmentStatus) Valid() bool {
	return s == EnrollmentStatusActive || s == EnrollmentStatusCompleted || s == EnrollmentStatusCancelled
}

// Terminal reports whether no further transition is permitted from s.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusCompleted || s == EnrollmentStatusCancelled
}

// CanTransitionTo reports whether s -> next is a permitted transition.
// Only active enrollments move, to completed or cancelled.
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	return s == EnrollmentStatusActive && next.Terminal()
}

// Enrollment links a student to a program. The (ProgramID, StudentID)
// pair is unique regardless of status; the storage engine enforces this
// with a unique index so concurrent writers cannot both succeed.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	ProgramID      string           `db:"program_id" json:"program_id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	ParentID       *string          `db:"parent_id" json:"parent_id,omitempty"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollment_date"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	PaymentID      *string          `db:"payment_id" json:"payment_id,omitempty"`
	Revision       int              `db:"revision" json:"-"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// PublicEnrollment is the external representation of an Enrollment.
type PublicEnrollment struct {
	ID             string           `json:"id"`
	ProgramID      string           `json:"programId"`
	StudentID      string           `json:"studentId"`
	ParentID       *string          `json:"parentId,omitempty"`
	EnrollmentDate time.Time        `json:"enrollmentDate"`
	Status         EnrollmentStatus `json:"status"`
	PaymentID      *string          `json:"paymentId,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// Public maps the record to its external representation.
func (e Enrollment) Public() PublicEnrollment {
	return PublicEnrollment{
		ID:             e.ID,
		ProgramID:      e.ProgramID,
		StudentID:      e.StudentID,
		ParentID:       e.ParentID,
		EnrollmentDate: e.EnrollmentDate,
		Status:         e.Status,
		PaymentID:      e.PaymentID,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// EnrollmentFilter provides filters for listing enrollments. The two
// hot paths, ProgramID+Status and StudentID+Status, are index-backed.
type EnrollmentFilter struct {
	ProgramID string
	StudentID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
