package platform

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the numeric samples of one telemetry key.
type Summary struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	First  time.Time
	Last   time.Time
	// Skipped counts samples whose value is not numeric.
	Skipped int
}

// Summarize computes descriptive statistics over the numeric samples.
func Summarize(points []Point) (Summary, error) {
	var s Summary
	values := make([]float64, 0, len(points))
	stamps := make([]time.Time, 0, len(points))
	for _, p := range points {
		v, err := p.Float()
		if err != nil {
			s.Skipped++
			continue
		}
		values = append(values, v)
		stamps = append(stamps, p.TS)
	}
	if len(values) == 0 {
		return s, fmt.Errorf("no numeric samples")
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	s.Count = len(values)
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if s.Count == 1 {
		s.StdDev = 0
	}
	s.First, s.Last = stamps[0], stamps[len(stamps)-1]
	return s, nil
}
