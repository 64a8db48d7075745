package ranking

// Project filters records for spec and maps the survivors to rows in display
// units. A record is dropped when its value or change is absent or not
// finite before or after conversion, or when categories is non-empty and the record carries a
// recognized category outside it. Records with an unrecognized or unset
// category are kept regardless of the filter.
func Project(records []Record, spec DimensionSpec, categories []Category) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		value := spec.Value(rec.Metrics)
		change := spec.Change(rec.Metrics)
		if !isFinite(value) || !isFinite(change) {
			continue
		}
		if !categoryAllowed(rec.Category, categories) {
			continue
		}

		v, c := *value, *change
		if spec.Convert != nil {
			v = spec.Convert(v)
			c = spec.Convert(c)
		}
		v, c = Round2(v), Round2(c)
		if !isFinite(&v) || !isFinite(&c) {
			continue
		}

		rows = append(rows, Row{
			EntityID:    rec.EntityID,
			DisplayName: rec.DisplayName,
			Category:    rec.Category,
			AvatarRef:   rec.AvatarRef,
			Value:       v,
			Change:      c,
		})
	}
	return rows
}

func categoryAllowed(c Category, filter []Category) bool {
	if len(filter) == 0 || !c.Recognized() {
		return true
	}
	for _, f := range filter {
		if f == c {
			return true
		}
	}
	return false
}
