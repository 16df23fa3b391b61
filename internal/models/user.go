package models

import "time"

// UserRole represents a user's role within their institution.
type UserRole string

// Possible user roles.
const (
	UserRoleStudent UserRole = "student"
	UserRoleStaff   UserRole = "staff"
	UserRoleAdmin   UserRole = "admin"
)

// DefaultUserRole is applied when no role is supplied at creation.
const DefaultUserRole = UserRoleStudent

// Valid reports whether the role is a known value.
func (r UserRole) Valid() bool {
	return r == UserRoleStudent || r == UserRoleStaff || r == UserRoleAdmin
}

// User is a person registered under an institution. AuthID is the
// verified subject identifier supplied by the external identity
// provider; it is unique process-wide and immutable once set, as is
// Email after normalization.
type User struct {
	ID            string     `db:"id" json:"id"`
	AuthID        string     `db:"auth_id" json:"auth_id"`
	InstitutionID string     `db:"institution_id" json:"institution_id"`
	Role          UserRole   `db:"role" json:"role"`
	Email         string     `db:"email" json:"email"`
	FullName      string     `db:"full_name" json:"full_name"`
	DateOfBirth   *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	Revision      int        `db:"revision" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// PublicProfile is the nested profile block of the external user shape.
type PublicProfile struct {
	Name        string     `json:"name"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
}

// PublicUser is the external representation of a User.
type PublicUser struct {
	ID            string        `json:"id"`
	AuthID        string        `json:"externalAuthId"`
	InstitutionID string        `json:"institutionId"`
	Role          UserRole      `json:"role"`
	Email         string        `json:"email"`
	Profile       PublicProfile `json:"profile"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Public maps the record to its external representation.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		AuthID:        u.AuthID,
		InstitutionID: u.InstitutionID,
		Role:          u.Role,
		Email:         u.Email,
		Profile: PublicProfile{
			Name:        u.FullName,
			DateOfBirth: u.DateOfBirth,
			Phone:       u.Phone,
		},
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserRef carries the fields other managers need when verifying a user
// reference: that it exists, which tenant it belongs to, and its role.
type UserRef struct {
	ID            string   `db:"id"`
	InstitutionID string   `db:"institution_id"`
	Role          UserRole `db:"role"`
}

// UserUpdate carries the fields a partial update may change. AuthID and
// InstitutionID are immutable once set; nil fields are left untouched.
type UserUpdate struct {
	Role        *UserRole
	Email       *string
	FullName    *string
	DateOfBirth *time.Time
	Phone       *string
}

// UserFilter provides filters for listing users. InstitutionID plus Role
// is the primary tenant-scoped access path and is served by a compound
// index.
type UserFilter struct {
	InstitutionID string
	Role          UserRole
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
