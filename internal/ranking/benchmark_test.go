package ranking

import (
	"strconv"
	"testing"
)

func benchmarkRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		id := strconv.Itoa(i)
		records[i] = Record{
			EntityID:    id,
			DisplayName: "Provider " + id,
			Category:    CategoryAPP,
			Metrics: Metrics{
				OnSceneTimeMedianSeconds:     floatPtr(float64(1800 + (i*37)%2400)),
				OnSceneTimeWeekChangeSeconds: floatPtr(float64(i%120 - 60)),
			},
		}
	}
	return records
}

// BenchmarkRank benchmarks the full pipeline for a typical market.
func BenchmarkRank(b *testing.B) {
	records := benchmarkRecords(200)
	opts := Options{Dimension: DimensionOnSceneTime, SelfID: "17"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Rank(records, opts); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRankLargeMarket benchmarks the pipeline with many providers.
func BenchmarkRankLargeMarket(b *testing.B) {
	records := benchmarkRecords(5000)
	opts := Options{Dimension: DimensionOnSceneTime, SelfID: "4242", Categories: []Category{CategoryAPP}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Rank(records, opts); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRound2 benchmarks display rounding.
func BenchmarkRound2(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Round2(61.23456)
	}
}
