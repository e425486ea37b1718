package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/careercoach/internal/apperror"
	"github.com/sakif/careercoach/internal/insight"
	"github.com/sakif/careercoach/internal/model"
	"github.com/sakif/careercoach/internal/repository"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestProfile(store repository.Store, gen insight.Generator, inv PathInvalidator) *ProfileService {
	svc := NewProfileService(store, gen, inv, nil, testLogger())
	svc.stock.now = func() time.Time { return fixedNow }
	return svc
}

func validUpdate() model.ProfileUpdate {
	return model.ProfileUpdate{
		Industry:   "tech-software-development",
		Experience: 6,
		Bio:        "Backend engineer",
		Skills:     []string{"Go", "PostgreSQL"},
	}
}

// =========================================================================
// VALIDATION TESTS
// =========================================================================

func TestNormalizeProfileUpdate(t *testing.T) {
	got, err := NormalizeProfileUpdate(model.ProfileUpdate{
		Industry:   "  finance-banking ",
		Experience: 0,
		Bio:        " hi ",
		Skills:     []string{" Go", "", "SQL", "Go ", "  "},
	})
	require.NoError(t, err)

	assert.Equal(t, "finance-banking", got.Industry)
	assert.Equal(t, "hi", got.Bio)
	assert.Equal(t, []string{"Go", "SQL"}, got.Skills)
}

func TestNormalizeProfileUpdate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(u *model.ProfileUpdate)
		field  string
	}{
		{"missing industry", func(u *model.ProfileUpdate) { u.Industry = "   " }, "industry"},
		{"negative experience", func(u *model.ProfileUpdate) { u.Experience = -1 }, "experience"},
		{"too much experience", func(u *model.ProfileUpdate) { u.Experience = MaxExperienceYears + 1 }, "experience"},
		{"bio too long", func(u *model.ProfileUpdate) { u.Bio = strings.Repeat("é", MaxBioLength+1) }, "bio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := validUpdate()
			tt.mutate(&u)

			_, err := NormalizeProfileUpdate(u)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestNormalizeProfileUpdate_BioCountsCharacters(t *testing.T) {
	u := validUpdate()
	u.Bio = strings.Repeat("é", MaxBioLength) // 1000 bytes, 500 characters

	_, err := NormalizeProfileUpdate(u)
	assert.NoError(t, err)
}

// =========================================================================
// UpdateProfile TESTS (fake store)
// =========================================================================

func TestUpdateProfile_Unauthorized(t *testing.T) {
	svc := newTestProfile(newFakeStore(), &fakeGenerator{}, nil)

	_, err := svc.UpdateProfile(context.Background(), "", validUpdate())
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestUpdateProfile_InvalidPayloadWritesNothing(t *testing.T) {
	store := newFakeStore()
	store.seedUser(&model.User{ExternalID: strPtr("github|1"), Email: "a@example.com"})
	gen := &fakeGenerator{}
	svc := newTestProfile(store, gen, nil)

	u := validUpdate()
	u.Industry = ""
	_, err := svc.UpdateProfile(context.Background(), "github|1", u)

	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, 0, gen.callCount())
	assert.Equal(t, 0, store.writeCount())
}

func TestUpdateProfile_UnknownSubject(t *testing.T) {
	svc := newTestProfile(newFakeStore(), &fakeGenerator{}, nil)

	_, err := svc.UpdateProfile(context.Background(), "github|404", validUpdate())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateProfile_NewIndustryCreatesInsight(t *testing.T) {
	store := newFakeStore()
	user := store.seedUser(&model.User{ExternalID: strPtr("github|1"), Email: "a@example.com"})
	gen := &fakeGenerator{}
	inv := &fakeInvalidator{}
	svc := newTestProfile(store, gen, inv)

	updated, err := svc.UpdateProfile(context.Background(), "github|1", validUpdate())
	require.NoError(t, err)

	assert.Equal(t, user.ID, updated.ID)
	assert.Equal(t, "tech-software-development", *updated.Industry)
	assert.Equal(t, 6, updated.Experience)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, updated.Skills)
	assert.True(t, updated.IsOnboarded)

	ins, err := store.GetInsightByIndustry(context.Background(), "tech-software-development")
	require.NoError(t, err)
	assert.Equal(t, 95000.0, ins.AverageSalary)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), ins.NextUpdate)

	assert.Equal(t, 1, gen.callCount())
	assert.Equal(t, 2, store.writeCount(), "one insight insert and one user update")
	assert.Equal(t, []string{"/"}, inv.paths)
}

func TestUpdateProfile_KnownIndustryReusesInsight(t *testing.T) {
	store := newFakeStore()
	store.seedUser(&model.User{ExternalID: strPtr("github|1"), Email: "a@example.com"})
	original := &model.IndustryInsight{
		Industry:      "tech-software-development",
		AverageSalary: 1,
		NextUpdate:    fixedNow.Add(time.Hour),
	}
	store.seedInsight(original)
	gen := &fakeGenerator{}
	svc := newTestProfile(store, gen, nil)

	_, err := svc.UpdateProfile(context.Background(), "github|1", validUpdate())
	require.NoError(t, err)

	assert.Equal(t, 0, gen.callCount())
	ins, _ := store.GetInsightByIndustry(context.Background(), "tech-software-development")
	assert.Equal(t, original.ID, ins.ID)
	assert.Equal(t, 1.0, ins.AverageSalary, "existing insight is not modified")
	assert.Equal(t, 1, store.writeCount())
}

func TestUpdateProfile_GeneratorFailureRollsBack(t *testing.T) {
	store := newFakeStore()
	store.seedUser(&model.User{
		ExternalID: strPtr("github|1"),
		Email:      "a@example.com",
		Industry:   strPtr("retail"),
		Bio:        "before",
	})
	boom := errors.New("model overloaded")
	inv := &fakeInvalidator{}
	svc := newTestProfile(store, &fakeGenerator{err: boom}, inv)

	_, err := svc.UpdateProfile(context.Background(), "github|1", validUpdate())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrTransaction)
	assert.ErrorIs(t, err, boom, "cause is preserved")
	assert.True(t, strings.HasPrefix(err.Error(), "failed to update profile: "), err.Error())

	u, _ := store.GetUserByExternalID(context.Background(), "github|1")
	assert.Equal(t, "retail", *u.Industry)
	assert.Equal(t, "before", u.Bio)
	assert.Empty(t, inv.paths, "nothing is invalidated on failure")
}

func TestUpdateProfile_IndustryRaceReusesWinner(t *testing.T) {
	store := newFakeStore()
	store.seedUser(&model.User{ExternalID: strPtr("github|1"), Email: "a@example.com"})

	winner := &model.IndustryInsight{Industry: "tech-software-development", AverageSalary: 7}
	gen := &fakeGenerator{fn: func(ctx context.Context, industry string) (*insight.Insights, error) {
		// Another transaction commits the same industry while we generate.
		store.seedInsight(winner)
		return &insight.Insights{AverageSalary: 99, InDemandSkills: []string{"x"}}, nil
	}}
	svc := newTestProfile(store, gen, nil)

	updated, err := svc.UpdateProfile(context.Background(), "github|1", validUpdate())
	require.NoError(t, err)
	assert.True(t, updated.IsOnboarded)

	ins, _ := store.GetInsightByIndustry(context.Background(), "tech-software-development")
	assert.Equal(t, winner.ID, ins.ID)
	assert.Equal(t, 7.0, ins.AverageSalary)
}

func TestUpdateProfile_Timeout(t *testing.T) {
	store := newFakeStore()
	store.seedUser(&model.User{ExternalID: strPtr("github|1"), Email: "a@example.com"})
	gen := &fakeGenerator{fn: func(ctx context.Context, industry string) (*insight.Insights, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	svc := newTestProfile(store, gen, nil)
	svc.txTimeout = 30 * time.Millisecond

	_, err := svc.UpdateProfile(context.Background(), "github|1", validUpdate())
	assert.ErrorIs(t, err, apperror.ErrTransaction)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	u, _ := store.GetUserByExternalID(context.Background(), "github|1")
	assert.Nil(t, u.Industry)
}

// =========================================================================
// UpdateProfile TESTS (sqlite)
// =========================================================================

func TestUpdateProfile_SQLite(t *testing.T) {
	db := newSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, db.CreateUser(ctx, &model.User{ExternalID: strPtr("github|1"), Email: "a@example.com"}))

	svc := newTestProfile(db, &fakeGenerator{}, nil)

	updated, err := svc.UpdateProfile(ctx, "github|1", validUpdate())
	require.NoError(t, err)
	assert.Equal(t, "tech-software-development", *updated.Industry)

	ins, err := db.GetInsightByIndustry(ctx, "tech-software-development")
	require.NoError(t, err)
	assert.WithinDuration(t, fixedNow.Add(InsightRefreshInterval), ins.NextUpdate, time.Second)
}

func TestUpdateProfile_SQLiteRollback(t *testing.T) {
	db := newSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, db.CreateUser(ctx, &model.User{ExternalID: strPtr("github|1"), Email: "a@example.com"}))

	// The insight insert succeeds, then the user update fails: both must go.
	svc := newTestProfile(&failingUpdateStore{DB: db}, &fakeGenerator{}, nil)

	_, err := svc.UpdateProfile(ctx, "github|1", validUpdate())
	require.ErrorIs(t, err, apperror.ErrTransaction)

	_, err = db.GetInsightByIndustry(ctx, "tech-software-development")
	assert.ErrorIs(t, err, apperror.ErrNotFound, "insight insert was rolled back")

	u, err := db.GetUserByExternalID(ctx, "github|1")
	require.NoError(t, err)
	assert.Nil(t, u.Industry)
}
