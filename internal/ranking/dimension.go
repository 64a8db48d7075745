package ranking

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimension is returned when a caller asks for a dimension that is
// not in the dimension table.
var ErrInvalidDimension = errors.New("invalid dimension")

// Dimension names a metric axis.
type Dimension string

// Known dimensions.
const (
	DimensionOnSceneTime        Dimension = "on_scene_time"
	DimensionChartClosureRate   Dimension = "chart_closure_rate"
	DimensionSurveyCaptureRate  Dimension = "survey_capture_rate"
	DimensionNetPromoterScore   Dimension = "net_promoter_score"
	DimensionOnTaskPercent      Dimension = "on_task_percent"
	DimensionEscalationRate     Dimension = "escalation_rate"
	DimensionAbxPrescribingRate Dimension = "abx_prescribing_rate"
)

// SortDirection orders rank groups.
type SortDirection string

// Sort directions. Ascending means lower values are better.
const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// ParseSortDirection accepts "asc" or "desc". The empty string yields an
// empty direction, meaning "use the dimension default".
func ParseSortDirection(s string) (SortDirection, error) {
	switch SortDirection(s) {
	case "", Ascending, Descending:
		return SortDirection(s), nil
	default:
		return "", fmt.Errorf("unknown sort direction %q", s)
	}
}

// DimensionSpec binds a dimension to the fields it reads and how it is
// displayed and ordered.
type DimensionSpec struct {
	Key       Dimension
	Label     string
	Value     func(Metrics) *float64
	Change    func(Metrics) *float64
	Direction SortDirection
	// Convert maps a stored value to display units. Nil means identity.
	Convert func(float64) float64
}

// SecondsToMinutes converts a duration in seconds to minutes.
func SecondsToMinutes(v float64) float64 {
	return v / 60
}

// dimensions is ordered; Dimensions and the catalog preserve this order.
var dimensions = []DimensionSpec{
	{
		Key:       DimensionOnSceneTime,
		Label:     "On Scene Time",
		Value:     func(m Metrics) *float64 { return m.OnSceneTimeMedianSeconds },
		Change:    func(m Metrics) *float64 { return m.OnSceneTimeWeekChangeSeconds },
		Direction: Ascending,
		Convert:   SecondsToMinutes,
	},
	{
		Key:       DimensionChartClosureRate,
		Label:     "Chart Closure",
		Value:     func(m Metrics) *float64 { return m.ChartClosureRate },
		Change:    func(m Metrics) *float64 { return m.ChartClosureRateWeekChange },
		Direction: Descending,
	},
	{
		Key:       DimensionSurveyCaptureRate,
		Label:     "Survey Capture",
		Value:     func(m Metrics) *float64 { return m.SurveyCaptureRate },
		Change:    func(m Metrics) *float64 { return m.SurveyCaptureRateWeekChange },
		Direction: Descending,
	},
	{
		Key:       DimensionNetPromoterScore,
		Label:     "Net Promoter Score",
		Value:     func(m Metrics) *float64 { return m.NetPromoterScoreAverage },
		Change:    func(m Metrics) *float64 { return m.NetPromoterScoreWeekChange },
		Direction: Descending,
	},
	{
		Key:       DimensionOnTaskPercent,
		Label:     "On Task",
		Value:     func(m Metrics) *float64 { return m.OnTaskPercent },
		Change:    func(m Metrics) *float64 { return m.OnTaskPercentWeekChange },
		Direction: Descending,
	},
	{
		Key:       DimensionEscalationRate,
		Label:     "Escalation Rate",
		Value:     func(m Metrics) *float64 { return m.EscalationRate },
		Change:    func(m Metrics) *float64 { return m.EscalationRateWeekChange },
		Direction: Ascending,
	},
	{
		Key:       DimensionAbxPrescribingRate,
		Label:     "ABX Prescribing Rate",
		Value:     func(m Metrics) *float64 { return m.AbxPrescribingRate },
		Change:    func(m Metrics) *float64 { return m.AbxPrescribingRateWeekChange },
		Direction: Ascending,
	},
}

// Dimensions returns the dimension table in display order.
func Dimensions() []DimensionSpec {
	out := make([]DimensionSpec, len(dimensions))
	copy(out, dimensions)
	return out
}

// LookupDimension returns the spec for key, or ErrInvalidDimension.
func LookupDimension(key Dimension) (DimensionSpec, error) {
	for _, d := range dimensions {
		if d.Key == key {
			return d, nil
		}
	}
	return DimensionSpec{}, fmt.Errorf("%w: %q", ErrInvalidDimension, key)
}

// roundLimit is the magnitude from which v*100 has no fractional part, so
// Round2 returns such values unchanged.
const roundLimit = float64(1<<52) / 100

// Round2 rounds half-up to two decimal places. Representation error of up
// to one part in 1e12 is absorbed, so 1.005 rounds to 1.01 while
// 1.0049999999 rounds to 1.00. Non-finite input is returned as is.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= roundLimit {
		return v
	}
	scaled := v * 100
	scaled += math.Abs(scaled) * 1e-12
	return math.Floor(scaled+0.5) / 100
}

func isFinite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
