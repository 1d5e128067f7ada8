package analysis

import (
	"math"
	"time"

	"github.com/flipcheck/flipcheck/internal/models"
)

// Weight adjustments applied to individual findings
const (
	verifiedBoost    = 1.5
	recencyBoost     = 1.3
	stalenessPenalty = 0.8
	recentDays       = 30
	staleDays        = 365
)

// AggregateConfidence combines finding scores into one 0-100 value.
//
// Each finding is weighted by its verification, the age of the midpoint between its two
// statements and its own score, so the aggregate is a mean in which confident findings
// count more. A single finding always aggregates to its own score.
func AggregateConfidence(findings []models.Finding, now time.Time) int {
	if len(findings) == 0 {
		return 0
	}

	var weighted, total float64
	for _, f := range findings {
		score := f.Confidence()
		w := findingWeight(f, now) * score / 100
		weighted += score * w
		total += w
	}

	if total == 0 {
		return 0
	}
	return min(max(int(math.Round(weighted/total)), 0), 100)
}

func findingWeight(f models.Finding, now time.Time) float64 {
	w := 1.0
	if f.Verified {
		w *= verifiedBoost
	}
	if f.Dates != nil {
		ageDays := now.Sub(f.Dates.Midpoint()).Hours() / 24
		switch {
		case ageDays < recentDays:
			w *= recencyBoost
		case ageDays > staleDays:
			w *= stalenessPenalty
		}
	}
	return w
}
