// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never a concrete adapter, so the
// same code runs on SQLite, Postgres and the in-memory fakes in the tests.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/careercoach/internal/apperror"
	"github.com/sakif/careercoach/internal/auth"
	"github.com/sakif/careercoach/internal/metrics"
	"github.com/sakif/careercoach/internal/model"
	"github.com/sakif/careercoach/internal/repository"
)

// OutcomeKind tags how ResolveUser arrived at its user.
type OutcomeKind int

const (
	OutcomeFound    OutcomeKind = iota + 1 // already linked to the subject
	OutcomeLinked                          // matched by e-mail and linked now
	OutcomeCreated                         // new row
	OutcomeConflict                        // e-mail belongs to another subject
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeLinked:
		return "linked"
	case OutcomeCreated:
		return "created"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Outcome is the result of ResolveUser. For OutcomeConflict, User is the
// existing row that owns the e-mail; it has not been modified.
type Outcome struct {
	Kind OutcomeKind
	User *model.User
}

// OnboardingStatus is what the dashboard needs to decide between the
// onboarding form and the dashboard itself.
type OnboardingStatus struct {
	IsOnboarded bool        `json:"isOnboarded"`
	User        *model.User `json:"user"`
}

// OnboardingService reconciles provider identities with local user rows.
type OnboardingService struct {
	users     repository.UserRepository
	directory auth.Directory
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

func NewOnboardingService(
	users repository.UserRepository,
	directory auth.Directory,
	rec *metrics.Recorder,
	logger *slog.Logger,
) *OnboardingService {
	return &OnboardingService{
		users:     users,
		directory: directory,
		metrics:   rec,
		logger:    logger,
	}
}

// ResolveOnboardingStatus finds or creates the local user for subjectID and
// reports whether the profile has an industry.
//
// An anonymous caller, or one whose provider detail cannot be read, gets
// {false, nil} and no error: the page simply renders the signed-out state.
// An e-mail owned by a different subject is an apperror.Conflict.
func (s *OnboardingService) ResolveOnboardingStatus(ctx context.Context, subjectID string) (*OnboardingStatus, error) {
	if subjectID == "" {
		return &OnboardingStatus{}, nil
	}

	identity, err := s.directory.Lookup(ctx, subjectID)
	if err != nil {
		s.logger.Warn("provider detail unavailable",
			slog.String("subject", subjectID),
			slog.String("error", err.Error()),
		)
		return &OnboardingStatus{}, nil
	}
	if identity.PrimaryEmail() == "" {
		s.logger.Error("provider user has no email address", slog.String("subject", subjectID))
		return &OnboardingStatus{}, nil
	}

	// The session subject is authoritative over whatever the directory stored.
	id := *identity
	id.SubjectID = subjectID

	out, err := s.ResolveUser(ctx, &id)
	if err != nil {
		s.metrics.IdentityResolved("error")
		return nil, err
	}
	s.metrics.IdentityResolved(out.Kind.String())

	switch out.Kind {
	case OutcomeConflict:
		s.logger.Error("email already linked to a different subject",
			slog.String("subject", subjectID),
			slog.String("userID", out.User.ID),
		)
		return nil, apperror.Conflict("user", "account with this email is already linked to another user")
	case OutcomeLinked, OutcomeCreated:
		s.logger.Info("user resolved",
			slog.String("outcome", out.Kind.String()),
			slog.String("subject", subjectID),
			slog.String("userID", out.User.ID),
		)
	}

	return &OnboardingStatus{
		IsOnboarded: out.User.HasIndustry(),
		User:        out.User,
	}, nil
}

// ResolveUser runs the find-or-create strategy for identity:
//
//  1. a row linked to the subject → Found
//  2. a row with the primary e-mail → linked if unlinked, Found if already
//     linked to this subject, Conflict if linked to another one
//  3. otherwise a new row → Created
//
// A create that loses a race on the e-mail re-reads the winner and applies
// step 2 once. A create that loses on external_id (the same subject
// resolving in parallel) returns the winner as Found.
func (s *OnboardingService) ResolveUser(ctx context.Context, identity *auth.ProviderUser) (Outcome, error) {
	subject := identity.SubjectID
	email := identity.PrimaryEmail()

	user, err := s.users.GetUserByExternalID(ctx, subject)
	if err == nil {
		return Outcome{Kind: OutcomeFound, User: user}, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return Outcome{}, fmt.Errorf("service/onboarding: looking up subject %s: %w", subject, err)
	}

	user, err = s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return s.reconcileEmailMatch(ctx, user, subject)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return Outcome{}, fmt.Errorf("service/onboarding: looking up email %s: %w", email, err)
	}

	created := &model.User{
		ExternalID: &subject,
		Email:      email,
		Name:       identity.DisplayName(),
	}
	err = s.users.CreateUser(ctx, created)
	switch {
	case err == nil:
		return Outcome{Kind: OutcomeCreated, User: created}, nil

	case apperror.IsUniqueViolation(err, "email"):
		s.logger.Warn("email taken during create, retrying as link",
			slog.String("subject", subject),
			slog.String("email", email),
		)
		existing, ferr := s.users.GetUserByEmail(ctx, email)
		if ferr != nil {
			return Outcome{}, fmt.Errorf("service/onboarding: failed to retrieve or create user: %w", errors.Join(err, ferr))
		}
		return s.reconcileEmailMatch(ctx, existing, subject)

	case apperror.IsUniqueViolation(err, "external_id"):
		existing, ferr := s.users.GetUserByExternalID(ctx, subject)
		if ferr != nil {
			return Outcome{}, fmt.Errorf("service/onboarding: failed to retrieve or create user: %w", errors.Join(err, ferr))
		}
		return Outcome{Kind: OutcomeFound, User: existing}, nil

	default:
		return Outcome{}, fmt.Errorf("service/onboarding: creating user for %s: %w", subject, err)
	}
}

func (s *OnboardingService) reconcileEmailMatch(ctx context.Context, user *model.User, subject string) (Outcome, error) {
	if user.IsLinkedTo(subject) {
		return Outcome{Kind: OutcomeFound, User: user}, nil
	}
	if user.ExternalID != nil {
		return Outcome{Kind: OutcomeConflict, User: user}, nil
	}

	linked, err := s.users.LinkExternalID(ctx, user.ID, subject)
	if err != nil {
		if apperror.IsUniqueViolation(err, "external_id") {
			// The subject got its own row in the meantime.
			existing, ferr := s.users.GetUserByExternalID(ctx, subject)
			if ferr != nil {
				return Outcome{}, fmt.Errorf("service/onboarding: failed to retrieve or create user: %w", errors.Join(err, ferr))
			}
			return Outcome{Kind: OutcomeFound, User: existing}, nil
		}
		return Outcome{}, fmt.Errorf("service/onboarding: linking user %s: %w", user.ID, err)
	}

	// The conditional UPDATE leaves a row someone else linked first untouched.
	if !linked.IsLinkedTo(subject) {
		return Outcome{Kind: OutcomeConflict, User: linked}, nil
	}
	return Outcome{Kind: OutcomeLinked, User: linked}, nil
}
