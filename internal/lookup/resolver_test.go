package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/intake"
	"github.com/wolfman30/clinic-intake/internal/records"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }

func TestResolveNewPatientCreatesRecord(t *testing.T) {
	store := records.NewMemoryStore()
	resolver := NewResolver(store, nil).WithClock(fixedNow)

	res, err := resolver.Resolve(context.Background(), intake.PatientInfo{
		Name: "John Smith", DateOfBirth: "01/15/1990", PreferredDoctor: "Johnson", Location: "Downtown",
	})
	require.NoError(t, err)
	assert.Equal(t, PatientNew, res.PatientType)
	assert.Equal(t, 60, res.DurationMinutes)
	assert.Len(t, res.PatientID, 8)
	assert.Contains(t, res.Message, "60 minutes")

	stored, err := store.GetPatient(context.Background(), res.PatientID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", stored.FirstVisit)
	assert.Equal(t, "Johnson", stored.UsualDoctor)
}

func TestResolveReturningPatientDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	_, err := store.CreatePatient(ctx, records.Patient{PatientID: "old00001", Name: "Ann Lee", DateOfBirth: "02/02/1992",
		FirstVisit: "2021-06-01", UsualDoctor: "Wilson"})
	require.NoError(t, err)

	res, err := NewResolver(store, nil).Resolve(ctx, intake.PatientInfo{Name: "ann lee", DateOfBirth: "02/02/1992", PreferredDoctor: "Smith"})
	require.NoError(t, err)
	assert.Equal(t, PatientReturning, res.PatientType)
	assert.Equal(t, "old00001", res.PatientID)
	assert.Equal(t, 30, res.DurationMinutes)
	assert.Contains(t, res.Message, "since 2021-06-01")
	assert.Contains(t, res.Message, "Dr. Wilson")

	all, err := store.FindPatients(ctx, "Ann Lee", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResolveTieBreakMostRecentFirstVisit(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	for _, p := range []records.Patient{
		{PatientID: "a0000001", Name: "Sam Roe", DateOfBirth: "05/05/1980", FirstVisit: "2019-01-01"},
		{PatientID: "a0000002", Name: "Sam Roe", DateOfBirth: "05/05/1980", FirstVisit: "2023-04-01"},
		{PatientID: "a0000003", Name: "Sam Roe", DateOfBirth: "05/05/1980", FirstVisit: "2023-04-01"},
	} {
		_, err := store.CreatePatient(ctx, p)
		require.NoError(t, err)
	}
	res, err := NewResolver(store, nil).Resolve(ctx, intake.PatientInfo{Name: "Sam Roe", DateOfBirth: "05/05/1980"})
	require.NoError(t, err)
	assert.Equal(t, "a0000002", res.PatientID)
}

func TestResolveDOBRefinesOnlyWhenItMatches(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	_, err := store.CreatePatient(ctx, records.Patient{PatientID: "b0000001", Name: "Kim Park", DateOfBirth: "07/07/1977"})
	require.NoError(t, err)

	res, err := NewResolver(store, nil).Resolve(ctx, intake.PatientInfo{Name: "Kim Park", DateOfBirth: "08/08/1988"})
	require.NoError(t, err)
	assert.Equal(t, PatientReturning, res.PatientType)
	assert.Equal(t, "b0000001", res.PatientID)
}

type failingStore struct {
	records.PatientStore
}

func (failingStore) FindPatients(context.Context, string, string) ([]records.Patient, error) {
	return nil, errors.New("disk full")
}

func TestResolveSurfacesStorageFailure(t *testing.T) {
	_, err := NewResolver(failingStore{}, nil).Resolve(context.Background(), intake.PatientInfo{Name: "Kim Park"})
	assert.ErrorContains(t, err, "disk full")

	_, err = NewResolver(records.NewMemoryStore(), nil).Resolve(context.Background(), intake.PatientInfo{})
	assert.ErrorIs(t, err, ErrIncompleteIdentity)
}
