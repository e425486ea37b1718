package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sakif/careercoach/internal/apperror"
	"github.com/sakif/careercoach/internal/auth"
	"github.com/sakif/careercoach/internal/insight"
	"github.com/sakif/careercoach/internal/model"
	"github.com/sakif/careercoach/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================
//
// fakeStore is an in-memory repository.Store. It enforces the same unique
// keys as the real schema and rolls WithTx back by restoring a snapshot, so
// the service logic can be exercised without a database. Hooks let a test
// slip a "concurrent" write in at exactly the point a race would happen.

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	insights map[string]*model.IndustryInsight
	nextID   int
	writes   int

	// beforeCreateUser runs just before CreateUser checks constraints.
	beforeCreateUser func(f *fakeStore)
	// createUserErr, when set, is returned by CreateUser without writing.
	createUserErr error
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*model.User),
		insights: make(map[string]*model.IndustryInsight),
	}
}

func strPtr(s string) *string { return &s }

func copyUser(u *model.User) *model.User {
	c := *u
	if u.ExternalID != nil {
		c.ExternalID = strPtr(*u.ExternalID)
	}
	if u.Industry != nil {
		c.Industry = strPtr(*u.Industry)
	}
	c.Skills = append([]string{}, u.Skills...)
	return &c
}

// seedUser inserts a row directly, bypassing hooks and write counting.
func (f *fakeStore) seedUser(u *model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	f.users[u.ID] = copyUser(u)
	return u
}

func (f *fakeStore) seedInsight(ins *model.IndustryInsight) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ins.ID = fmt.Sprintf("insight-%d", f.nextID)
	c := *ins
	f.insights[ins.Industry] = &c
}

func (f *fakeStore) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return copyUser(u), nil
}

func (f *fakeStore) GetUserByExternalID(_ context.Context, externalID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.IsLinkedTo(externalID) {
			return copyUser(u), nil
		}
	}
	return nil, apperror.NotFound("user", externalID)
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	if f.beforeCreateUser != nil {
		hook := f.beforeCreateUser
		f.beforeCreateUser = nil
		hook(f)
	}
	if f.createUserErr != nil {
		return f.createUserErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.UniqueViolation("users", "email", nil)
		}
		if user.ExternalID != nil && u.IsLinkedTo(*user.ExternalID) {
			return apperror.UniqueViolation("users", "external_id", nil)
		}
	}
	f.nextID++
	f.writes++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = copyUser(user)
	return nil
}

func (f *fakeStore) LinkExternalID(_ context.Context, userID, externalID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, apperror.NotFound("user", userID)
	}
	if u.ExternalID == nil {
		for _, other := range f.users {
			if other.IsLinkedTo(externalID) {
				return nil, apperror.UniqueViolation("users", "external_id", nil)
			}
		}
		u.ExternalID = strPtr(externalID)
		f.writes++
	}
	return copyUser(u), nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, userID string, update model.ProfileUpdate) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, apperror.NotFound("user", userID)
	}
	u.Industry = strPtr(update.Industry)
	u.Experience = update.Experience
	u.Bio = update.Bio
	u.Skills = append([]string{}, update.Skills...)
	u.IsOnboarded = true
	f.writes++
	return copyUser(u), nil
}

func (f *fakeStore) GetInsightByIndustry(_ context.Context, industry string) (*model.IndustryInsight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ins, ok := f.insights[industry]
	if !ok {
		return nil, apperror.NotFound("industry insight", industry)
	}
	c := *ins
	return &c, nil
}

func (f *fakeStore) CreateInsight(_ context.Context, ins *model.IndustryInsight) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.insights[ins.Industry]; ok {
		return apperror.UniqueViolation("industry_insights", "industry", nil)
	}
	f.nextID++
	f.writes++
	ins.ID = fmt.Sprintf("insight-%d", f.nextID)
	c := *ins
	f.insights[ins.Industry] = &c
	return nil
}

func (f *fakeStore) WithTx(ctx context.Context, opts repository.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	f.mu.Lock()
	users := make(map[string]*model.User, len(f.users))
	for k, v := range f.users {
		users[k] = copyUser(v)
	}
	insights := make(map[string]*model.IndustryInsight, len(f.insights))
	for k, v := range f.insights {
		c := *v
		insights[k] = &c
	}
	f.mu.Unlock()

	err := fn(ctx, f)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		f.mu.Lock()
		f.users, f.insights = users, insights
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error { return nil }

// fakeDirectory maps subjects to provider profiles.
type fakeDirectory map[string]*auth.ProviderUser

func (d fakeDirectory) Lookup(_ context.Context, subjectID string) (*auth.ProviderUser, error) {
	u, ok := d[subjectID]
	if !ok {
		return nil, auth.ErrProfileUnavailable
	}
	return u, nil
}

// fakeGenerator counts calls and returns a fixed payload, an error, or
// whatever fn decides.
type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
	fn    func(ctx context.Context, industry string) (*insight.Insights, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, industry string) (*insight.Insights, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.fn != nil {
		return g.fn(ctx, industry)
	}
	if g.err != nil {
		return nil, g.err
	}
	return &insight.Insights{
		AverageSalary:  95000,
		InDemandSkills: []string{"Go", "SQL"},
		IndustryGrowth: 5.5,
		DemandLevel:    "High",
		MarketOutlook:  "Positive",
		KeyTrends:      []string{"Automation"},
	}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeInvalidator struct {
	mu    sync.Mutex
	paths []string
}

func (i *fakeInvalidator) Invalidate(_ context.Context, path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.paths = append(i.paths, path)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func identity(subject, email, first string) *auth.ProviderUser {
	return &auth.ProviderUser{SubjectID: subject, EmailAddresses: []string{email}, FirstName: first}
}

func newTestOnboarding(t *testing.T, store *fakeStore, dir fakeDirectory) *OnboardingService {
	t.Helper()
	return NewOnboardingService(store, dir, nil, testLogger())
}
