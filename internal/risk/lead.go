package risk

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LeadStats summarises how early true positives fire, in frames before the
// end of the recording.
type LeadStats struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Lead computes LeadStats over the true positives of a result.
func Lead(res Result) LeadStats {
	var leads []float64
	for _, s := range res.Scenarios {
		if s.Outcome == TruePositive {
			leads = append(leads, float64(s.LeadFrames))
		}
	}
	if len(leads) == 0 {
		return LeadStats{}
	}
	mean, std := stat.MeanStdDev(leads, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return LeadStats{
		N:      len(leads),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(leads),
		Max:    floats.Max(leads),
	}
}
