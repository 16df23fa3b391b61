package models

import "time"

// ProgramCategory classifies a program offering.
type ProgramCategory string

// Possible program categories.
const (
	ProgramCategorySports     ProgramCategory = "Sports"
	ProgramCategoryArts       ProgramCategory = "Arts"
	ProgramCategoryMusic      ProgramCategory = "Music"
	ProgramCategoryAcademics  ProgramCategory = "Academics"
	ProgramCategoryTechnology ProgramCategory = "Technology"
	ProgramCategoryOthers     ProgramCategory = "Others"
)

// Valid reports whether the category is a known value.
func (c ProgramCategory) Valid() bool {
	switch c {
	case ProgramCategorySports, ProgramCategoryArts, ProgramCategoryMusic,
		ProgramCategoryAcademics, ProgramCategoryTechnology, ProgramCategoryOthers:
		return true
	}
	return false
}

// FeeType distinguishes one-off from recurring billing.
type FeeType string

// Possible fee types.
const (
	FeeTypeOneTime      FeeType = "one-time"
	FeeTypeSubscription FeeType = "subscription"
)

// Valid reports whether the fee type is a known value.
func (t FeeType) Valid() bool {
	return t == FeeTypeOneTime || t == FeeTypeSubscription
}

// DefaultFeeCurrency is applied when no currency is supplied.
const DefaultFeeCurrency = "INR"

// Fee describes what a program costs.
type Fee struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Type     FeeType `json:"type"`
}

// ScheduleSlot is one weekly time slot of a program. Times are 24-hour
// zero-padded HH:mm strings, so lexicographic comparison orders them.
type ScheduleSlot struct {
	Day       string `db:"day" json:"day"`
	StartTime string `db:"start_time" json:"startTime"`
	EndTime   string `db:"end_time" json:"endTime"`
}

// ScheduleDays lists the accepted day names in week order.
var ScheduleDays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// ValidScheduleDay reports whether day is an accepted day name.
func ValidScheduleDay(day string) bool {
	for _, d := range ScheduleDays {
		if d == day {
			return true
		}
	}
	return false
}

// Program is a course offering owned by an institution. Trainers are
// ordered user references; the slice position is persisted.
type Program struct {
	ID            string          `db:"id" json:"id"`
	InstitutionID string          `db:"institution_id" json:"institution_id"`
	Title         string          `db:"title" json:"title"`
	Description   string          `db:"description" json:"description"`
	Category      ProgramCategory `db:"category" json:"category"`
	Trainers      []string        `db:"-" json:"trainers"`
	Schedule      []ScheduleSlot  `db:"-" json:"schedule"`
	Fee           Fee             `db:"-" json:"fee"`
	Revision      int             `db:"revision" json:"-"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// PublicProgram is the external representation of a Program.
type PublicProgram struct {
	ID            string          `json:"id"`
	InstitutionID string          `json:"institutionId"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      ProgramCategory `json:"category"`
	Trainers      []string        `json:"trainers"`
	Schedule      []ScheduleSlot  `json:"schedule"`
	Fee           Fee             `json:"fee"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Public maps the record to its external representation.
func (p Program) Public() PublicProgram {
	return PublicProgram{
		ID:            p.ID,
		InstitutionID: p.InstitutionID,
		Title:         p.Title,
		Description:   p.Description,
		Category:      p.Category,
		Trainers:      p.Trainers,
		Schedule:      p.Schedule,
		Fee:           p.Fee,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// ProgramUpdate carries the fields a partial update may change. Nil
// fields are left untouched; a non-nil Trainers or Schedule replaces
// the whole sequence.
type ProgramUpdate struct {
	Title       *string
	Description *string
	Category    *ProgramCategory
	Trainers    *[]string
	Schedule    *[]ScheduleSlot
	Fee         *Fee
}

// ProgramFilter provides filters for listing an institution's catalog.
type ProgramFilter struct {
	Category  ProgramCategory
	FeeType   FeeType
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
