package waitlist

import (
	"math"
	"testing"
)

func TestEstimateWait(t *testing.T) {
	tests := []struct {
		position, days int
		want           Estimate
	}{
		{1, 30, Estimate{Weeks: 1, Confidence: ConfidenceHigh}},
		{5, 30, Estimate{Weeks: 2, Confidence: ConfidenceHigh}},
		{12, 60, Estimate{Weeks: 5, Confidence: ConfidenceMedium}},
		{15, 60, Estimate{Weeks: 6, Confidence: ConfidenceMedium}},
		{40, 14, Estimate{Weeks: 2, Confidence: ConfidenceLow}},
		{3, 0, Estimate{Weeks: 1, Confidence: ConfidenceHigh}},
	}
	for _, tt := range tests {
		if got := EstimateWait(tt.position, tt.days); got != tt.want {
			t.Errorf("EstimateWait(%d, %d) = %+v, want %+v", tt.position, tt.days, got, tt.want)
		}
	}
}

func TestEstimateWaitBounds(t *testing.T) {
	for pos := 1; pos <= 100; pos++ {
		for days := 0; days <= 120; days++ {
			got := EstimateWait(pos, days)
			upper := max(1, int(math.Ceil(float64(days)/7)))
			if got.Weeks < 1 || got.Weeks > upper {
				t.Fatalf("EstimateWait(%d, %d) = %d weeks, want within [1, %d]", pos, days, got.Weeks, upper)
			}
		}
	}
}
