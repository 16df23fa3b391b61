package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RunMigrations applies the registry schema. Every statement is
// idempotent so the set can run on each startup.
//
// The three invariants that must hold under concurrent writers ride on
// unique indexes here, never on application-level checks:
// uq_users_auth_id, uq_users_email and uq_enrollments_program_student.
func RunMigrations(db *sqlx.DB) error {
	for _, stmt := range migrationStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// PlatformInstitutionID hosts platform operators created before any
// tenant exists; it breaks the institution/admin bootstrap cycle.
const PlatformInstitutionID = "00000000-0000-0000-0000-000000000001"

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS institutions (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'active')),
		contact_email TEXT NOT NULL,
		admin_id UUID NOT NULL,
		revision INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_institutions_status ON institutions (status)`,
	`CREATE INDEX IF NOT EXISTS idx_institutions_admin ON institutions (admin_id)`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		auth_id TEXT NOT NULL,
		institution_id UUID NOT NULL REFERENCES institutions (id),
		role TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('student', 'staff', 'admin')),
		email TEXT NOT NULL,
		full_name TEXT NOT NULL,
		date_of_birth DATE,
		phone TEXT,
		revision INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_users_auth_id ON users (auth_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_users_email ON users (email)`,
	`CREATE INDEX IF NOT EXISTS idx_users_institution_role ON users (institution_id, role)`,

	`CREATE TABLE IF NOT EXISTS programs (
		id UUID PRIMARY KEY,
		institution_id UUID NOT NULL REFERENCES institutions (id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL CHECK (category IN ('Sports', 'Arts', 'Music', 'Academics', 'Technology', 'Others')),
		fee_amount NUMERIC(12, 2) NOT NULL CHECK (fee_amount >= 0),
		fee_currency TEXT NOT NULL DEFAULT 'INR',
		fee_type TEXT NOT NULL CHECK (fee_type IN ('one-time', 'subscription')),
		revision INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_programs_institution_category ON programs (institution_id, category)`,
	`CREATE INDEX IF NOT EXISTS idx_programs_fee_type ON programs (fee_type)`,

	`CREATE TABLE IF NOT EXISTS program_trainers (
		program_id UUID NOT NULL REFERENCES programs (id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users (id),
		position INTEGER NOT NULL,
		PRIMARY KEY (program_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_program_trainers_user ON program_trainers (user_id)`,

	`CREATE TABLE IF NOT EXISTS program_schedule_slots (
		program_id UUID NOT NULL REFERENCES programs (id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		day TEXT NOT NULL CHECK (day IN ('Monday', 'Tuesday', 'Wednesday', 'Thursday', 'Friday', 'Saturday', 'Sunday')),
		start_time CHAR(5) NOT NULL,
		end_time CHAR(5) NOT NULL CHECK (start_time < end_time),
		PRIMARY KEY (program_id, position)
	)`,

	`CREATE TABLE IF NOT EXISTS enrollments (
		id UUID PRIMARY KEY,
		program_id UUID NOT NULL REFERENCES programs (id),
		student_id UUID NOT NULL REFERENCES users (id),
		parent_id UUID REFERENCES users (id),
		enrollment_date TIMESTAMPTZ NOT NULL DEFAULT now(),
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed', 'cancelled')),
		payment_id TEXT,
		revision INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_enrollments_program_student ON enrollments (program_id, student_id)`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_program_status ON enrollments (program_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_student_status ON enrollments (student_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_parent ON enrollments (parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_payment ON enrollments (payment_id)`,

	// Seed row hosting platform operators; admin_id is a placeholder
	// since no user can predate it.
	`INSERT INTO institutions (id, name, status, contact_email, admin_id)
		VALUES ('00000000-0000-0000-0000-000000000001', 'Platform', 'active', 'ops@platform.local', '00000000-0000-0000-0000-000000000000')
		ON CONFLICT (id) DO NOTHING`,
}
