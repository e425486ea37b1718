package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/careercoach/internal/apperror"
	"github.com/sakif/careercoach/internal/insight"
	"github.com/sakif/careercoach/internal/metrics"
	"github.com/sakif/careercoach/internal/model"
	"github.com/sakif/careercoach/internal/repository"
)

const (
	// DefaultTxTimeout bounds a profile transaction, generator call included.
	DefaultTxTimeout = 10 * time.Second

	// InsightRefreshInterval is how far NextUpdate is set ahead of creation.
	// The refresh job that honours it runs outside this service.
	InsightRefreshInterval = 7 * 24 * time.Hour
)

// insightStock creates missing industry insights inside a caller's
// transaction. ProfileService and InsightService share one.
type insightStock struct {
	generator insight.Generator
	metrics   *metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// ensure returns the insight for industry, generating and inserting it when
// absent. Losing the insert race to another transaction is not an error:
// the winner's row is read back and reused.
func (st *insightStock) ensure(ctx context.Context, tx repository.Tx, industry string) (*model.IndustryInsight, error) {
	existing, err := tx.GetInsightByIndustry(ctx, industry)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/insight: reading %q: %w", industry, err)
	}

	st.logger.Info("generating insights for new industry", slog.String("industry", industry))
	gen, err := st.generator.Generate(ctx, industry)
	if err != nil {
		st.metrics.InsightGenerated("error")
		return nil, fmt.Errorf("service/insight: generating %q: %w", industry, err)
	}
	st.metrics.InsightGenerated("ok")

	now := st.now().UTC()
	row := &model.IndustryInsight{
		Industry:       industry,
		AverageSalary:  gen.AverageSalary,
		InDemandSkills: gen.InDemandSkills,
		IndustryGrowth: gen.IndustryGrowth,
		DemandLevel:    gen.DemandLevel,
		MarketOutlook:  gen.MarketOutlook,
		KeyTrends:      gen.KeyTrends,
		LastUpdated:    now,
		NextUpdate:     now.Add(InsightRefreshInterval),
	}

	err = tx.CreateInsight(ctx, row)
	if apperror.IsUniqueViolation(err, "industry") {
		st.logger.Info("insight created concurrently, reusing", slog.String("industry", industry))
		winner, ferr := tx.GetInsightByIndustry(ctx, industry)
		if ferr != nil {
			return nil, fmt.Errorf("service/insight: re-reading %q: %w", industry, ferr)
		}
		return winner, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/insight: storing %q: %w", industry, err)
	}
	return row, nil
}

// InsightService serves the cached insight for the signed-in user's industry.
type InsightService struct {
	store     repository.Store
	stock     *insightStock
	logger    *slog.Logger
	txTimeout time.Duration
}

func NewInsightService(store repository.Store, generator insight.Generator, rec *metrics.Recorder, logger *slog.Logger) *InsightService {
	return &InsightService{
		store:     store,
		stock:     &insightStock{generator: generator, metrics: rec, logger: logger, now: time.Now},
		logger:    logger,
		txTimeout: DefaultTxTimeout,
	}
}

// GetIndustryInsights returns the insight for the user's industry, creating
// it if the row is missing (for example, for users onboarded before insights
// were stored).
func (s *InsightService) GetIndustryInsights(ctx context.Context, subjectID string) (*model.IndustryInsight, error) {
	if subjectID == "" {
		return nil, apperror.Unauthorized("sign in to view industry insights")
	}

	user, err := s.store.GetUserByExternalID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("user", subjectID)
		}
		return nil, fmt.Errorf("service/insight: looking up subject %s: %w", subjectID, err)
	}
	if !user.HasIndustry() {
		return nil, apperror.ValidationFailed("industry", "complete your profile first")
	}
	industry := *user.Industry

	ins, err := s.store.GetInsightByIndustry(ctx, industry)
	if err == nil {
		return ins, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/insight: reading %q: %w", industry, err)
	}

	err = s.store.WithTx(ctx, repository.TxOptions{Timeout: s.txTimeout}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		ins, err = s.stock.ensure(ctx, tx, industry)
		return err
	})
	if err != nil {
		s.logger.Error("loading industry insights failed",
			slog.String("industry", industry),
			slog.String("error", err.Error()),
		)
		return nil, apperror.TransactionFailed("failed to load industry insights", err)
	}
	return ins, nil
}
