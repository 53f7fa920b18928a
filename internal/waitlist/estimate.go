package waitlist

import "math"

// AverageWeeklyTurnover is how many waitlist positions clear per week on average.
const AverageWeeklyTurnover = 2.5

// EstimateWait converts a 1-based position into weeks of waiting. The estimate never exceeds
// the weeks left until the preferred date and is at least one week.
func EstimateWait(position, daysUntilPreferred int) Estimate {
	weeks := int(math.Ceil(float64(position) / AverageWeeklyTurnover))
	if upper := int(math.Ceil(float64(daysUntilPreferred) / 7)); weeks > upper {
		weeks = upper
	}
	if weeks < 1 {
		weeks = 1
	}

	confidence := ConfidenceLow
	switch {
	case position <= 5:
		confidence = ConfidenceHigh
	case position <= 15:
		confidence = ConfidenceMedium
	}
	return Estimate{Weeks: weeks, Confidence: confidence}
}
