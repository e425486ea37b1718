package model

import "time"

// IndustryInsight is the cached aggregate dataset for one industry.
// Rows are created lazily the first time a profile names the industry and
// are keyed by the industry string (UNIQUE).
type IndustryInsight struct {
	ID             string    `json:"id"`
	Industry       string    `json:"industry"`
	AverageSalary  float64   `json:"averageSalary"`
	InDemandSkills []string  `json:"inDemandSkills"`
	IndustryGrowth float64   `json:"industryGrowth"`
	DemandLevel    string    `json:"demandLevel"`
	MarketOutlook  string    `json:"marketOutlook"`
	KeyTrends      []string  `json:"keyTrends"`
	LastUpdated    time.Time `json:"lastUpdated"`
	NextUpdate     time.Time `json:"nextUpdate"`
}
