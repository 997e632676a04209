package occupancy

import (
	"fmt"
	"time"
)

// Result bundles everything the dashboard renders for one query.
type Result struct {
	Trend   []Bucket     `json:"trend"`
	Summary SummaryStats `json:"summary"`
}

// Analyze runs the full forward pipeline over raw readings of one lot:
// enrich, then resample and summarize. Empty input stops with
// ErrNoDataInRange before anything is computed.
func Analyze(readings []Reading, totalCapacity int, g time.Duration, opts SummaryOptions) (Result, error) {
	if len(readings) == 0 {
		return Result{}, ErrNoDataInRange
	}
	if err := ValidateGranularity(g); err != nil {
		return Result{}, err
	}

	enriched, err := Enrich(readings, totalCapacity)
	if err != nil {
		return Result{}, err
	}

	trend, err := Resample(enriched, g)
	if err != nil {
		return Result{}, fmt.Errorf("resample: %w", err)
	}

	summary, err := Summarize(enriched, opts)
	if err != nil {
		return Result{}, fmt.Errorf("summarize: %w", err)
	}

	return Result{Trend: trend, Summary: summary}, nil
}
