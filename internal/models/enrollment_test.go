package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentStatusTransitions(t *testing.T) {
	cases := []struct {
		from    EnrollmentStatus
		to      EnrollmentStatus
		allowed bool
	}{
		{EnrollmentStatusActive, EnrollmentStatusCompleted, true},
		{EnrollmentStatusActive, EnrollmentStatusCancelled, true},
		{EnrollmentStatusActive, EnrollmentStatusActive, false},
		{EnrollmentStatusCompleted, EnrollmentStatusCancelled, false},
		{EnrollmentStatusCancelled, EnrollmentStatusCompleted, false},
		{EnrollmentStatusCancelled, EnrollmentStatusActive, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.allowed, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestEnrollmentStatusTerminal(t *testing.T) {
	assert.False(t, EnrollmentStatusActive.Terminal())
	assert.True(t, EnrollmentStatusCompleted.Terminal())
	assert.True(t, EnrollmentStatusCancelled.Terminal())
}

func TestEnrollmentPublicHidesRevision(t *testing.T) {
	paymentID := "pay_42"
	e := Enrollment{
		ID:             "enr-1",
		ProgramID:      "prog-1",
		StudentID:      "stu-1",
		EnrollmentDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:         EnrollmentStatusActive,
		PaymentID:      &paymentID,
		Revision:       7,
	}

	raw, err := json.Marshal(e.Public())
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "prog-1", out["programId"])
	assert.Equal(t, "stu-1", out["studentId"])
	assert.Equal(t, "pay_42", out["paymentId"])
	assert.NotContains(t, out, "revision")
	assert.NotContains(t, out, "parentId")
}

func TestUserPublicNestsProfile(t *testing.T) {
	dob := time.Date(2010, 6, 15, 0, 0, 0, 0, time.UTC)
	u := User{
		ID:            "usr-1",
		AuthID:        "ext-1",
		InstitutionID: "inst-1",
		Role:          UserRoleStudent,
		Email:         "jo@school.test",
		FullName:      "Jo",
		DateOfBirth:   &dob,
		Revision:      3,
	}

	raw, err := json.Marshal(u.Public())
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "ext-1", out["externalAuthId"])
	assert.NotContains(t, out, "revision")

	profile, ok := out["profile"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Jo", profile["name"])
	assert.NotContains(t, profile, "phone")
}
