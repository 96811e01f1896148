// Package vitals bands raw vital-sign readings into normal/caution/critical
// using per-metric threshold predicates. Classification is pure; callers
// decide what to do with the band.
package vitals

import "strconv"

// Band is the classification of a single vital-sign reading.
type Band string

const (
	// BandNormal means the reading is inside the expected range, or absent.
	BandNormal Band = "normal"

	// BandCaution means the reading warrants closer observation.
	BandCaution Band = "caution"

	// BandCritical means the reading is outside safe limits.
	BandCritical Band = "critical"
)

// Threshold holds the banding predicates for one metric. The critical
// predicate is always evaluated first; when the source ranges overlap,
// critical wins.
type Threshold struct {
	Metric     string
	Unit       string
	IsCritical func(v float64) bool
	IsCaution  func(v float64) bool
}

// Table maps metric IDs to their thresholds.
type Table map[string]Threshold

// Default returns the standard adult observation thresholds.
func Default() Table {
	return Table{
		"temp": {
			Metric:     "Temperature",
			Unit:       "°C",
			IsCritical: func(v float64) bool { return v > 39 || v < 35 },
			IsCaution:  func(v float64) bool { return v >= 38 && v <= 39 },
		},
		"pulse": {
			Metric:     "Pulse",
			Unit:       "bpm",
			IsCritical: func(v float64) bool { return v < 50 || v > 120 },
			IsCaution:  func(v float64) bool { return v >= 100 && v <= 120 },
		},
		"bp": {
			Metric:     "Blood Pressure (systolic)",
			Unit:       "mmHg",
			IsCritical: func(v float64) bool { return v < 90 || v > 180 },
			IsCaution:  func(v float64) bool { return v >= 140 && v <= 180 },
		},
		"spo2": {
			Metric:     "SpO2",
			Unit:       "%",
			IsCritical: func(v float64) bool { return v < 90 },
			IsCaution:  func(v float64) bool { return v >= 90 && v < 94 },
		},
		"rr": {
			Metric:     "Respiratory Rate",
			Unit:       "breaths/min",
			IsCritical: func(v float64) bool { return v < 10 || v > 30 },
			IsCaution:  func(v float64) bool { return v >= 21 && v <= 30 },
		},
	}
}

// Known reports whether the table has a threshold for the metric.
func (t Table) Known(metric string) bool {
	_, ok := t[metric]
	return ok
}

// Classify bands a raw reading for the given metric. Empty or non-numeric
// input is treated as an absent reading and bands as normal: absent data is
// never alarmed. Unknown metrics band as normal for the same reason.
func (t Table) Classify(metric, raw string) Band {
	th, ok := t[metric]
	if !ok {
		return BandNormal
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return BandNormal
	}
	if th.IsCritical != nil && th.IsCritical(v) {
		return BandCritical
	}
	if th.IsCaution != nil && th.IsCaution(v) {
		return BandCaution
	}
	return BandNormal
}
