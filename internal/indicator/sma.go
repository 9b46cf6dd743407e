package indicator

import (
	"slices"
	"strings"
)

const (
	// DoubleSMAPeriod is the moving-average window, in trading days.
	DoubleSMAPeriod = 20
	// DoubleSMAMultiplier scales every average.
	DoubleSMAMultiplier = 2
)

// ClosePoint is one daily close.
type ClosePoint struct {
	Date  string
	Close float64
}

// ComputeDoubleSMA sorts points chronologically and emits, for every date
// with a full window behind it, twice the mean of the DoubleSMAPeriod
// closes ending at that date. Output is oldest first; fewer than
// DoubleSMAPeriod points give an empty result.
func ComputeDoubleSMA(points []ClosePoint) []DoubleSMA {
	return movingAverage(points, DoubleSMAPeriod, DoubleSMAMultiplier)
}

func movingAverage(points []ClosePoint, period int, multiplier float64) []DoubleSMA {
	if period <= 0 || len(points) < period {
		return []DoubleSMA{}
	}

	// ISO dates order lexically.
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b ClosePoint) int {
		return strings.Compare(a.Date, b.Date)
	})

	out := make([]DoubleSMA, 0, len(sorted)-period+1)
	for i := period - 1; i < len(sorted); i++ {
		// Sum each window afresh so a NaN close only spoils the windows that contain it.
		var sum float64
		for _, p := range sorted[i-period+1 : i+1] {
			sum += p.Close
		}
		out = append(out, DoubleSMA{
			Date:  sorted[i].Date,
			Mult2: Float(sum / float64(period) * multiplier),
		})
	}
	return out
}
