package ranking

// Options selects what to rank and for whom.
type Options struct {
	Dimension Dimension
	// Direction overrides the dimension's default when set.
	Direction SortDirection
	// SelfID is the caller's own entity id; its remainder row keeps its name.
	SelfID string
	// Categories restricts recognized categories; empty means all.
	Categories []Category
}

// Rank runs the full pipeline over records. The only error is
// ErrInvalidDimension for a dimension outside the table.
func Rank(records []Record, opts Options) (*Result, error) {
	spec, err := LookupDimension(opts.Dimension)
	if err != nil {
		return nil, err
	}

	direction := opts.Direction
	if direction == "" {
		direction = spec.Direction
	}

	rows := Project(records, spec, opts.Categories)
	ranked := AssignRanks(RankGroups(rows, direction))
	podium, remainder := Partition(ranked)

	return &Result{
		Podium:    podium,
		SelfRow:   FindSelf(ranked, opts.SelfID),
		Remainder: ApplySelfRedaction(remainder, opts.SelfID),
	}, nil
}
