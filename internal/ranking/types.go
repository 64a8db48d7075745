package ranking

import "strings"

// Category classifies a provider by position. The zero value is an unset
// category.
type Category string

// Recognized categories.
const (
	CategoryAPP  Category = "APP"  // advanced practice provider
	CategoryDHMT Category = "DHMT" // EMT / DHMT
)

// Recognized reports whether c is one of the known categories.
func (c Category) Recognized() bool {
	return c == CategoryAPP || c == CategoryDHMT
}

// ParseCategory maps an upstream job title or category code to a Category.
// Unknown titles map to an unrecognized Category carrying the raw value so
// they still pass through a category filter.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "app", "advanced practice provider":
		return CategoryAPP
	case "dhmt", "emt":
		return CategoryDHMT
	default:
		return Category(strings.TrimSpace(s))
	}
}

// Metrics holds every metric the upstream store tracks for one provider in
// one scope. A nil field means the metric is absent.
type Metrics struct {
	OnSceneTimeMedianSeconds     *float64 `json:"on_scene_time_median_seconds,omitempty" yaml:"on_scene_time_median_seconds"`
	OnSceneTimeWeekChangeSeconds *float64 `json:"on_scene_time_week_change_seconds,omitempty" yaml:"on_scene_time_week_change_seconds"`
	ChartClosureRate             *float64 `json:"chart_closure_rate,omitempty" yaml:"chart_closure_rate"`
	ChartClosureRateWeekChange   *float64 `json:"chart_closure_rate_week_change,omitempty" yaml:"chart_closure_rate_week_change"`
	SurveyCaptureRate            *float64 `json:"survey_capture_rate,omitempty" yaml:"survey_capture_rate"`
	SurveyCaptureRateWeekChange  *float64 `json:"survey_capture_rate_week_change,omitempty" yaml:"survey_capture_rate_week_change"`
	NetPromoterScoreAverage      *float64 `json:"net_promoter_score_average,omitempty" yaml:"net_promoter_score_average"`
	NetPromoterScoreWeekChange   *float64 `json:"net_promoter_score_week_change,omitempty" yaml:"net_promoter_score_week_change"`
	OnTaskPercent                *float64 `json:"on_task_percent,omitempty" yaml:"on_task_percent"`
	OnTaskPercentWeekChange      *float64 `json:"on_task_percent_week_change,omitempty" yaml:"on_task_percent_week_change"`
	EscalationRate               *float64 `json:"escalation_rate,omitempty" yaml:"escalation_rate"`
	EscalationRateWeekChange     *float64 `json:"escalation_rate_week_change,omitempty" yaml:"escalation_rate_week_change"`
	AbxPrescribingRate           *float64 `json:"abx_prescribing_rate,omitempty" yaml:"abx_prescribing_rate"`
	AbxPrescribingRateWeekChange *float64 `json:"abx_prescribing_rate_week_change,omitempty" yaml:"abx_prescribing_rate_week_change"`
}

// Record is one provider's metric snapshot for a single market and window.
type Record struct {
	EntityID    string   `json:"entity_id"`
	DisplayName string   `json:"display_name"`
	Category    Category `json:"category,omitempty"`
	AvatarRef   string   `json:"avatar_ref,omitempty"`
	Metrics     Metrics  `json:"metrics"`
}

// Row is a record projected onto a single dimension.
type Row struct {
	EntityID    string   `json:"entity_id"`
	DisplayName string   `json:"display_name"`
	Category    Category `json:"category,omitempty"`
	AvatarRef   string   `json:"avatar_ref,omitempty"`
	Value       float64  `json:"value"`
	Change      float64  `json:"change"`
}

// RankedRow is a projected row with its dense rank.
type RankedRow struct {
	Row
	Rank int `json:"rank"`
}

// Group is a set of rows sharing the same rounded value.
type Group struct {
	Value   float64
	Members []Row
}

// Podium holds the three best rank groups.
type Podium struct {
	FirstPosition  []RankedRow `json:"first_position"`
	SecondPosition []RankedRow `json:"second_position"`
	ThirdPosition  []RankedRow `json:"third_position"`
}

// Result is a finished leaderboard.
type Result struct {
	Podium    Podium      `json:"podium"`
	SelfRow   *RankedRow  `json:"self"`
	Remainder []RankedRow `json:"remainder"`
}
