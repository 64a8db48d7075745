package ranking

// podiumSlots is the number of rank groups shown on the podium.
const podiumSlots = 3

// Partition splits ranked rows into the podium and the remainder. The
// podium slots take every row of the first, second and third distinct rank
// present; missing slots are empty. ranked must be in ascending rank order,
// as AssignRanks produces.
func Partition(ranked []RankedRow) (Podium, []RankedRow) {
	slots := [podiumSlots][]RankedRow{{}, {}, {}}
	remainder := make([]RankedRow, 0)

	slot, lastRank := -1, 0
	for _, row := range ranked {
		if slot < podiumSlots && row.Rank != lastRank {
			slot++
			lastRank = row.Rank
		}
		if slot < podiumSlots {
			slots[slot] = append(slots[slot], row)
			continue
		}
		remainder = append(remainder, row)
	}

	return Podium{
		FirstPosition:  slots[0],
		SecondPosition: slots[1],
		ThirdPosition:  slots[2],
	}, remainder
}

// FindSelf returns a copy of the row whose entity id equals selfID, or nil.
func FindSelf(ranked []RankedRow, selfID string) *RankedRow {
	if selfID == "" {
		return nil
	}
	for _, row := range ranked {
		if row.EntityID == selfID {
			self := row
			return &self
		}
	}
	return nil
}

// ApplySelfRedaction returns a copy of remainder with every display name
// blanked except the one belonging to selfID.
func ApplySelfRedaction(remainder []RankedRow, selfID string) []RankedRow {
	out := make([]RankedRow, len(remainder))
	for i, row := range remainder {
		if selfID == "" || row.EntityID != selfID {
			row.DisplayName = ""
		}
		out[i] = row
	}
	return out
}
