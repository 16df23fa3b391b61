package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-registry/internal/models"
	appErrors "github.com/noah-isme/edu-registry/pkg/errors"
	"github.com/noah-isme/edu-registry/pkg/validation"
)

type fakeInstitutionRepo struct {
	institutions map[string]models.Institution
}

func newFakeInstitutionRepo() *fakeInstitutionRepo {
	return &fakeInstitutionRepo{institutions: make(map[string]models.Institution)}
}

func (f *fakeInstitutionRepo) Create(ctx context.Context, institution *models.Institution) error {
	if institution.ID == "" {
		institution.ID = "inst-new"
	}
	f.institutions[institution.ID] = *institution
	return nil
}

func (f *fakeInstitutionRepo) Update(ctx context.Context, id string, update models.InstitutionUpdate) error {
	inst, ok := f.institutions[id]
	if !ok {
		return sql.ErrNoRows
	}
	if update.Name != nil {
		inst.Name = *update.Name
	}
	if update.Status != nil {
		inst.Status = *update.Status
	}
	if update.ContactEmail != nil {
		inst.ContactEmail = *update.ContactEmail
	}
	if update.AdminID != nil {
		inst.AdminID = *update.AdminID
	}
	inst.Revision++
	f.institutions[id] = inst
	return nil
}

func (f *fakeInstitutionRepo) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	if inst, ok := f.institutions[id]; ok {
		return &inst, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeInstitutionRepo) List(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, int, error) {
	var out []models.Institution
	for _, inst := range f.institutions {
		if filter.Status != "" && inst.Status != filter.Status {
			continue
		}
		out = append(out, inst)
	}
	return out, len(out), nil
}

type fakeUserChecker struct {
	users map[string]bool
}

func (f *fakeUserChecker) Exists(ctx context.Context, id string) (bool, error) {
	return f.users[id], nil
}

func newInstitutionService(repo *fakeInstitutionRepo) *InstitutionService {
	users := &fakeUserChecker{users: map[string]bool{"admin-1": true}}
	return NewInstitutionService(repo, users, validation.New(), zap.NewNop(), time.Second)
}

func TestInstitutionServiceCreateDefaultsPending(t *testing.T) {
	svc := newInstitutionService(newFakeInstitutionRepo())

	inst, err := svc.Create(context.Background(), CreateInstitutionRequest{
		Name:         "  Hill Valley High  ",
		ContactEmail: "Office@Hillvalley.test",
		AdminID:      "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.InstitutionStatusPending, inst.Status)
	assert.Equal(t, "Hill Valley High", inst.Name)
	assert.Equal(t, "office@hillvalley.test", inst.ContactEmail)
}

func TestInstitutionServiceCreateBadEmail(t *testing.T) {
	svc := newInstitutionService(newFakeInstitutionRepo())

	_, err := svc.Create(context.Background(), CreateInstitutionRequest{
		Name:         "Hill Valley High",
		ContactEmail: "not-an-email",
		AdminID:      "admin-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "Invalid email format")
}

func TestInstitutionServiceCreateMissingAdmin(t *testing.T) {
	svc := newInstitutionService(newFakeInstitutionRepo())

	_, err := svc.Create(context.Background(), CreateInstitutionRequest{
		Name:         "Hill Valley High",
		ContactEmail: "office@hillvalley.test",
		AdminID:      "ghost",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrReferentialIntegrity)
}

func TestInstitutionServiceUpdateStatus(t *testing.T) {
	repo := newFakeInstitutionRepo()
	svc := newInstitutionService(repo)

	inst, err := svc.Create(context.Background(), CreateInstitutionRequest{
		Name:         "Hill Valley High",
		ContactEmail: "office@hillvalley.test",
		AdminID:      "admin-1",
	})
	require.NoError(t, err)

	active := models.InstitutionStatusActive
	updated, err := svc.Update(context.Background(), inst.ID, UpdateInstitutionRequest{Status: &active})
	require.NoError(t, err)
	assert.Equal(t, models.InstitutionStatusActive, updated.Status)
}

func TestInstitutionServiceUpdateInvalidStatus(t *testing.T) {
	repo := newFakeInstitutionRepo()
	svc := newInstitutionService(repo)

	inst, err := svc.Create(context.Background(), CreateInstitutionRequest{
		Name:         "Hill Valley High",
		ContactEmail: "office@hillvalley.test",
		AdminID:      "admin-1",
	})
	require.NoError(t, err)

	bogus := models.InstitutionStatus("suspended")
	_, err = svc.Update(context.Background(), inst.ID, UpdateInstitutionRequest{Status: &bogus})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestInstitutionServiceUpdateMissingAdmin(t *testing.T) {
	repo := newFakeInstitutionRepo()
	svc := newInstitutionService(repo)

	inst, err := svc.Create(context.Background(), CreateInstitutionRequest{
		Name:         "Hill Valley High",
		ContactEmail: "office@hillvalley.test",
		AdminID:      "admin-1",
	})
	require.NoError(t, err)

	ghost := "ghost"
	_, err = svc.Update(context.Background(), inst.ID, UpdateInstitutionRequest{AdminID: &ghost})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrReferentialIntegrity)
}

func TestInstitutionServiceGetMissing(t *testing.T) {
	svc := newInstitutionService(newFakeInstitutionRepo())

	_, err := svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestInstitutionServiceListInvalidStatusFilter(t *testing.T) {
	svc := newInstitutionService(newFakeInstitutionRepo())

	_, _, err := svc.List(context.Background(), models.InstitutionFilter{Status: "suspended"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
