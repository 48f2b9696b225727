package segtree

import (
	"encoding/json"

	"flametrace/pkg/models"
)

// CategoryStat aggregates the events of one category.
type CategoryStat struct {
	Count         int   `json:"count"`
	TotalDuration int64 `json:"total_duration"`
}

// CategoryStats holds one slot per category of the closed set.
type CategoryStats [models.NumCategories]CategoryStat

// Add accumulates count events totalling duration under c.
func (s *CategoryStats) Add(c models.Category, count int, duration int64) {
	if !c.Valid() {
		return
	}
	s[c].Count += count
	s[c].TotalDuration += duration
}

// Merge sums other into s, category by category.
func (s *CategoryStats) Merge(other *CategoryStats) {
	for i := range s {
		s[i].Count += other[i].Count
		s[i].TotalDuration += other[i].TotalDuration
	}
}

// Count returns the number of events across all categories.
func (s *CategoryStats) Count() int {
	n := 0
	for i := range s {
		n += s[i].Count
	}
	return n
}

// Dominant picks the present category with the best priority, then the larger
// total duration, then the larger count. Remaining ties go to declaration order.
// The zero Category is returned when no category is present.
func (s *CategoryStats) Dominant() models.Category {
	best := -1
	for i := range s {
		if s[i].Count == 0 {
			continue
		}
		if best < 0 || outranks(models.Category(i), s[i], models.Category(best), s[best]) {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return models.Category(best)
}

func outranks(a models.Category, as CategoryStat, b models.Category, bs CategoryStat) bool {
	if pa, pb := a.Priority(), b.Priority(); pa != pb {
		return pa < pb
	}
	if as.TotalDuration != bs.TotalDuration {
		return as.TotalDuration > bs.TotalDuration
	}
	return as.Count > bs.Count
}

// MarshalJSON encodes present categories keyed by label.
func (s CategoryStats) MarshalJSON() ([]byte, error) {
	out := make(map[models.Category]CategoryStat, len(s))
	for i := range s {
		if s[i].Count > 0 {
			out[models.Category(i)] = s[i]
		}
	}
	return json.Marshal(out)
}
