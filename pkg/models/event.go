package models

// Duration holds inclusive and exclusive time for an event, in nanoseconds.
type Duration struct {
	Total int64 `json:"total"`
	Self  int64 `json:"self"`
}

// Event is one node of a parsed call tree.
//
// Children are ordered by Timestamp and never overlap; a child never exits
// after its parent. Depth is implied by tree position (roots are depth 0).
type Event struct {
	Timestamp int64    `json:"timestamp"`
	Duration  Duration `json:"duration"`
	Category  Category `json:"category"`
	Text      string   `json:"text,omitempty"`
	Children  []*Event `json:"children,omitempty"`
}

// ExitStamp returns the time the event ends.
func (e *Event) ExitStamp() int64 {
	return e.Timestamp + e.Duration.Total
}

// Bounds is a visible time/depth window. Depths are inclusive on both ends.
type Bounds struct {
	TimeStart  float64 `json:"time_start"`
	TimeEnd    float64 `json:"time_end"`
	DepthStart int     `json:"depth_start"`
	DepthEnd   int     `json:"depth_end"`
}

// ContainsDepth reports whether depth lies inside the window.
func (b Bounds) ContainsDepth(depth int) bool {
	return depth >= b.DepthStart && depth <= b.DepthEnd
}

// OverlapsTime reports whether [start, end) intersects the window.
// Zero-width intervals count when their single instant lies inside it.
func (b Bounds) OverlapsTime(start, end float64) bool {
	if start >= b.TimeEnd {
		return false
	}
	if end > b.TimeStart {
		return true
	}
	return start == end && start >= b.TimeStart
}
