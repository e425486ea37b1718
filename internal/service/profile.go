package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/careercoach/internal/apperror"
	"github.com/sakif/careercoach/internal/insight"
	"github.com/sakif/careercoach/internal/metrics"
	"github.com/sakif/careercoach/internal/model"
	"github.com/sakif/careercoach/internal/repository"
)

// Validation limits for the profile form.
const (
	MaxExperienceYears = 50
	MaxBioLength       = 500 // characters, not bytes
)

// PathInvalidator drops cached renderings of a page.
type PathInvalidator interface {
	Invalidate(ctx context.Context, path string) error
}

// ProfileService applies the profile form.
type ProfileService struct {
	store       repository.Store
	stock       *insightStock
	invalidator PathInvalidator
	metrics     *metrics.Recorder
	logger      *slog.Logger
	txTimeout   time.Duration
}

// NewProfileService wires the updater. invalidator may be nil when no page
// cache is in front of the dashboard.
func NewProfileService(
	store repository.Store,
	generator insight.Generator,
	invalidator PathInvalidator,
	rec *metrics.Recorder,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		store:       store,
		stock:       &insightStock{generator: generator, metrics: rec, logger: logger, now: time.Now},
		invalidator: invalidator,
		metrics:     rec,
		logger:      logger,
		txTimeout:   DefaultTxTimeout,
	}
}

// NormalizeProfileUpdate trims the payload and checks the form limits.
// Skills are trimmed, blanks dropped and duplicates removed in order.
func NormalizeProfileUpdate(u model.ProfileUpdate) (model.ProfileUpdate, error) {
	u.Industry = strings.TrimSpace(u.Industry)
	u.Bio = strings.TrimSpace(u.Bio)

	if u.Industry == "" {
		return u, apperror.ValidationFailed("industry", "industry is required")
	}
	if u.Experience < 0 || u.Experience > MaxExperienceYears {
		return u, apperror.ValidationFailed("experience",
			fmt.Sprintf("experience must be between 0 and %d years", MaxExperienceYears))
	}
	if utf8.RuneCountInString(u.Bio) > MaxBioLength {
		return u, apperror.ValidationFailed("bio",
			fmt.Sprintf("bio must be %d characters or fewer", MaxBioLength))
	}

	skills := make([]string, 0, len(u.Skills))
	seen := make(map[string]struct{}, len(u.Skills))
	for _, sk := range u.Skills {
		sk = strings.TrimSpace(sk)
		if sk == "" {
			continue
		}
		if _, dup := seen[sk]; dup {
			continue
		}
		seen[sk] = struct{}{}
		skills = append(skills, sk)
	}
	u.Skills = skills
	return u, nil
}

// UpdateProfile writes the profile of the user linked to subjectID.
//
// The insight for the chosen industry and the user row are written in one
// transaction bounded by the service timeout. If the generator fails, a
// constraint rejects a write or the deadline passes, nothing is kept and the
// error is an apperror.TransactionFailed wrapping the cause. The dashboard
// cache is dropped only after a successful commit.
func (s *ProfileService) UpdateProfile(ctx context.Context, subjectID string, update model.ProfileUpdate) (*model.User, error) {
	if subjectID == "" {
		return nil, apperror.Unauthorized("sign in to update your profile")
	}

	update, err := NormalizeProfileUpdate(update)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByExternalID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("user", subjectID)
		}
		return nil, fmt.Errorf("service/profile: looking up subject %s: %w", subjectID, err)
	}

	var updated *model.User
	err = s.store.WithTx(ctx, repository.TxOptions{Timeout: s.txTimeout}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := s.stock.ensure(ctx, tx, update.Industry); err != nil {
			return err
		}
		u, err := tx.UpdateProfile(ctx, user.ID, update)
		if err != nil {
			return fmt.Errorf("service/profile: updating user %s: %w", user.ID, err)
		}
		updated = u
		return nil
	})
	if err != nil {
		s.metrics.ProfileUpdated("error")
		s.logger.Error("error updating user and industry",
			slog.String("userID", user.ID),
			slog.String("industry", update.Industry),
			slog.String("error", err.Error()),
		)
		return nil, apperror.TransactionFailed("failed to update profile", err)
	}
	s.metrics.ProfileUpdated("ok")

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, "/"); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("profile updated",
		slog.String("userID", updated.ID),
		slog.String("industry", update.Industry),
	)
	return updated, nil
}
