package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/careercoach/internal/apperror"
	"github.com/sakif/careercoach/internal/model"
)

func (q *queries) GetInsightByIndustry(ctx context.Context, industry string) (*model.IndustryInsight, error) {
	var ins model.IndustryInsight
	err := q.q.QueryRow(ctx,
		`SELECT id, industry, average_salary, in_demand_skills, industry_growth,
			demand_level, market_outlook, key_trends, last_updated, next_update
		 FROM industry_insights WHERE industry = $1`,
		industry,
	).Scan(
		&ins.ID,
		&ins.Industry,
		&ins.AverageSalary,
		&ins.InDemandSkills,
		&ins.IndustryGrowth,
		&ins.DemandLevel,
		&ins.MarketOutlook,
		&ins.KeyTrends,
		&ins.LastUpdated,
		&ins.NextUpdate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("industry insight", industry)
		}
		return nil, fmt.Errorf("postgres: get insight for %q: %w", industry, err)
	}
	return &ins, nil
}

// CreateInsight inserts with ON CONFLICT DO NOTHING. A plain duplicate
// insert would abort the whole Postgres transaction, so the lost race is
// detected from the affected row count instead.
func (q *queries) CreateInsight(ctx context.Context, insight *model.IndustryInsight) error {
	skills := insight.InDemandSkills
	if skills == nil {
		skills = []string{}
	}
	trends := insight.KeyTrends
	if trends == nil {
		trends = []string{}
	}
	id := xid.New().String()
	lastUpdated := insight.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}

	tag, err := q.q.Exec(ctx,
		`INSERT INTO industry_insights (id, industry, average_salary, in_demand_skills,
			industry_growth, demand_level, market_outlook, key_trends, last_updated, next_update)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (industry) DO NOTHING`,
		id, insight.Industry, insight.AverageSalary, skills, insight.IndustryGrowth,
		insight.DemandLevel, insight.MarketOutlook, trends, lastUpdated, insight.NextUpdate,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert insight for %q: %w", insight.Industry, asUniqueViolation(err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.UniqueViolation("industry_insights", "industry", nil)
	}

	insight.ID = id
	insight.LastUpdated = lastUpdated
	return nil
}
