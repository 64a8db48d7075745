package ranking

import "strconv"

func floatPtr(v float64) *float64 {
	return &v
}

// chartRecords builds chart-closure records with ids "1".."n" and a zero change.
func chartRecords(values ...float64) []Record {
	records := make([]Record, 0, len(values))
	for i, v := range values {
		id := strconv.Itoa(i + 1)
		records = append(records, Record{
			EntityID:    id,
			DisplayName: "Provider " + id,
			Metrics: Metrics{
				ChartClosureRate:           floatPtr(v),
				ChartClosureRateWeekChange: floatPtr(0),
			},
		})
	}
	return records
}

func ranksOf(rows []RankedRow) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Rank
	}
	return out
}

func idsOf(rows []RankedRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.EntityID
	}
	return out
}
