// Package ranking builds peer leaderboards from a snapshot of per-provider
// metric records.
//
// Basic Usage:
//
//	result, err := ranking.Rank(records, ranking.Options{
//		Dimension:  ranking.DimensionOnSceneTime,
//		SelfID:     "42",
//		Categories: []ranking.Category{ranking.CategoryAPP},
//	})
//	if err != nil {
//		// only an unknown dimension fails
//	}
//	render(result.Podium, result.SelfRow, result.Remainder)
//
// Pipeline:
//
// Records without a finite value or change for the chosen dimension are
// dropped, the rest are converted to display units and rounded to two
// decimals, grouped by exact rounded value, ordered by the dimension's
// better direction and given dense ranks (ties share a rank, the next value
// gets rank+1). The three best rank groups form the podium; every other row
// lands in the remainder, where all display names except the caller's own
// are blanked.
//
// Everything in this package is a pure function of its arguments. Inputs are
// never mutated and no state is kept between calls, so callers may rank
// concurrently without coordination.
//
// Catalog:
//
// Which dimensions a deployment exposes, and their labels, is read from a
// JSON catalog at startup (see LoadCatalog). Missing or partial catalogs
// fall back to DefaultCatalog.
package ranking
