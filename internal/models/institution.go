package models

import "time"

// InstitutionStatus represents the approval state of an institution.
type InstitutionStatus string

// Possible institution statuses.
const (
	InstitutionStatusPending InstitutionStatus = "pending"
	InstitutionStatusActive  InstitutionStatus = "active"
)

// DefaultInstitutionStatus is applied at creation; an external approval
// process transitions institutions to active.
const DefaultInstitutionStatus = InstitutionStatusPending

// Valid reports whether the status is a known value.
func (s InstitutionStatus) Valid() bool {
	return s == InstitutionStatusPending || s == InstitutionStatusActive
}

// Institution is a tenant: every User and Program is scoped under one.
type Institution struct {
	ID           string            `db:"id" json:"id"`
	Name         string            `db:"name" json:"name"`
	Status       InstitutionStatus `db:"status" json:"status"`
	ContactEmail string            `db:"contact_email" json:"contact_email"`
	AdminID      string            `db:"admin_id" json:"admin_id"`
	Revision     int               `db:"revision" json:"-"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// PublicInstitution is the external representation of an Institution.
type PublicInstitution struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Status       InstitutionStatus `json:"status"`
	ContactEmail string            `json:"contactEmail"`
	AdminID      string            `json:"adminId"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Public maps the record to its external representation, dropping
// internal-only fields.
func (i Institution) Public() PublicInstitution {
	return PublicInstitution{
		ID:           i.ID,
		Name:         i.Name,
		Status:       i.Status,
		ContactEmail: i.ContactEmail,
		AdminID:      i.AdminID,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

// InstitutionUpdate carries the fields a partial update may change.
// Nil fields are left untouched.
type InstitutionUpdate struct {
	Name         *string
	Status       *InstitutionStatus
	ContactEmail *string
	AdminID      *string
}

// InstitutionFilter provides filters for listing institutions.
type InstitutionFilter struct {
	Status    InstitutionStatus
	AdminID   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
