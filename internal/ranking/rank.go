package ranking

import "sort"

// RankGroups clusters rows by exact value and orders the clusters by
// direction. Members keep their input order. An empty direction sorts
// descending.
func RankGroups(rows []Row, direction SortDirection) []Group {
	index := make(map[float64]int, len(rows))
	groups := make([]Group, 0)
	for _, row := range rows {
		i, ok := index[row.Value]
		if !ok {
			i = len(groups)
			index[row.Value] = i
			groups = append(groups, Group{Value: row.Value})
		}
		groups[i].Members = append(groups[i].Members, row)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if direction == Ascending {
			return groups[i].Value < groups[j].Value
		}
		return groups[i].Value > groups[j].Value
	})
	return groups
}

// AssignRanks flattens ordered groups into rows with dense ranks: the group
// at index i gets rank i+1.
func AssignRanks(groups []Group) []RankedRow {
	n := 0
	for _, g := range groups {
		n += len(g.Members)
	}

	ranked := make([]RankedRow, 0, n)
	for i, g := range groups {
		for _, m := range g.Members {
			ranked = append(ranked, RankedRow{Row: m, Rank: i + 1})
		}
	}
	return ranked
}
