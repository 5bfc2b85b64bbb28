package calendar

// SameSeries reports whether a and b are occurrences of the same recurring series.
//
// Events created by this service carry a SeriesId and are matched on it. Events without one
// (seeded or imported data) fall back to matching on title and color, which cannot tell apart
// two series that share both.
func SameSeries(a, b Event) bool {
	if !a.Recurring || !b.Recurring {
		return false
	}
	if a.SeriesId.Valid && b.SeriesId.Valid {
		return a.SeriesId.UUID == b.SeriesId.UUID
	}
	if a.SeriesId.Valid != b.SeriesId.Valid {
		return false
	}
	return a.Title == b.Title && a.Color == b.Color
}
