// Package insight produces aggregate market data for an industry.
package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Insights is the generated payload stored as an IndustryInsight row.
type Insights struct {
	AverageSalary  float64  `json:"averageSalary"`
	InDemandSkills []string `json:"inDemandSkills"`
	IndustryGrowth float64  `json:"industryGrowth"`
	DemandLevel    string   `json:"demandLevel"`
	MarketOutlook  string   `json:"marketOutlook"`
	KeyTrends      []string `json:"keyTrends"`
}

// Generator produces insights for one industry. Implementations may be slow
// and may fail; callers bound them with ctx.
type Generator interface {
	Generate(ctx context.Context, industry string) (*Insights, error)
}

var ErrInvalidInsights = errors.New("insight: invalid generated insights")

var (
	demandLevels   = []string{"High", "Medium", "Low"}
	marketOutlooks = []string{"Positive", "Neutral", "Negative"}
)

// Validate checks required fields and normalizes the enumerations to their
// canonical casing.
func (in *Insights) Validate() error {
	if in.AverageSalary <= 0 {
		return fmt.Errorf("%w: averageSalary must be positive", ErrInvalidInsights)
	}
	if len(in.InDemandSkills) == 0 {
		return fmt.Errorf("%w: inDemandSkills is empty", ErrInvalidInsights)
	}

	level, ok := canonical(in.DemandLevel, demandLevels)
	if !ok {
		return fmt.Errorf("%w: unknown demandLevel %q", ErrInvalidInsights, in.DemandLevel)
	}
	outlook, ok := canonical(in.MarketOutlook, marketOutlooks)
	if !ok {
		return fmt.Errorf("%w: unknown marketOutlook %q", ErrInvalidInsights, in.MarketOutlook)
	}
	in.DemandLevel = level
	in.MarketOutlook = outlook

	if in.KeyTrends == nil {
		in.KeyTrends = []string{}
	}
	return nil
}

func canonical(v string, allowed []string) (string, bool) {
	v = strings.TrimSpace(v)
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return a, true
		}
	}
	return "", false
}
