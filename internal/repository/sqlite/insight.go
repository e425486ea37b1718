package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/careercoach/internal/apperror"
	"github.com/sakif/careercoach/internal/model"
)

// GetInsightByIndustry returns the cached insight for an industry.
func (q *queries) GetInsightByIndustry(ctx context.Context, industry string) (*model.IndustryInsight, error) {
	var (
		ins       model.IndustryInsight
		skills    string
		keyTrends string
	)
	err := q.q.QueryRowContext(ctx,
		`SELECT id, industry, average_salary, in_demand_skills, industry_growth,
			demand_level, market_outlook, key_trends, last_updated, next_update
		 FROM industry_insights WHERE industry = ?`,
		industry,
	).Scan(
		&ins.ID,
		&ins.Industry,
		&ins.AverageSalary,
		&skills,
		&ins.IndustryGrowth,
		&ins.DemandLevel,
		&ins.MarketOutlook,
		&keyTrends,
		&ins.LastUpdated,
		&ins.NextUpdate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("industry insight", industry)
		}
		return nil, fmt.Errorf("sqlite: getting insight for %q: %w", industry, err)
	}

	if ins.InDemandSkills, err = decodeStrings(skills); err != nil {
		return nil, fmt.Errorf("sqlite: insight %s: %w", ins.ID, err)
	}
	if ins.KeyTrends, err = decodeStrings(keyTrends); err != nil {
		return nil, fmt.Errorf("sqlite: insight %s: %w", ins.ID, err)
	}
	return &ins, nil
}

// CreateInsight inserts a new insight row.
//
// ON CONFLICT DO NOTHING turns a lost race on the industry key into "zero
// rows inserted" instead of a failed statement, which is reported as a
// UniqueViolation on "industry" while the transaction stays usable.
func (q *queries) CreateInsight(ctx context.Context, insight *model.IndustryInsight) error {
	skills, err := encodeStrings(insight.InDemandSkills)
	if err != nil {
		return fmt.Errorf("sqlite: inserting insight: %w", err)
	}
	keyTrends, err := encodeStrings(insight.KeyTrends)
	if err != nil {
		return fmt.Errorf("sqlite: inserting insight: %w", err)
	}

	id := xid.New().String()
	lastUpdated := insight.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}

	result, err := q.q.ExecContext(ctx,
		`INSERT INTO industry_insights (id, industry, average_salary, in_demand_skills,
			industry_growth, demand_level, market_outlook, key_trends, last_updated, next_update)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(industry) DO NOTHING`,
		id,
		insight.Industry,
		insight.AverageSalary,
		skills,
		insight.IndustryGrowth,
		insight.DemandLevel,
		insight.MarketOutlook,
		keyTrends,
		lastUpdated,
		insight.NextUpdate,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting insight for %q: %w", insight.Industry, asUniqueViolation(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking insert result: %w", err)
	}
	if rows == 0 {
		return apperror.UniqueViolation("industry_insights", "industry", nil)
	}

	insight.ID = id
	insight.LastUpdated = lastUpdated
	return nil
}
