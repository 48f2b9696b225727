package segtree

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"flametrace/internal/viewport"
	"flametrace/pkg/models"
)

// ErrDatasetMismatch is returned when a viewport bound to one event set queries a tree built from another.
var ErrDatasetMismatch = errors.New("viewport and segment tree describe different event sets")

// Window is the resolved input of one query.
type Window struct {
	Bounds models.Bounds
	// Threshold is the time span at or below which a node is bucketed.
	Threshold float64
	// BucketTimeWidth is the grid cell width in nanoseconds.
	BucketTimeWidth float64
	Zoom            float64
	OffsetX         float64
}

// WindowFor derives a query window from a viewport. Both the threshold and the
// grid cell are bucketPx screen pixels wide at the current zoom.
func WindowFor(vp *viewport.Viewport, bucketPx float64) Window {
	span := bucketPx / vp.Zoom()
	return Window{
		Bounds:          vp.Bounds(),
		Threshold:       span,
		BucketTimeWidth: span,
		Zoom:            vp.Zoom(),
		OffsetX:         vp.OffsetX(),
	}
}

// Rect is one event wide enough to draw on its own.
type Rect struct {
	X     float64
	Width float64
	Depth int
	Event *models.Event
}

// MarshalJSON flattens the source event so children are not serialized.
func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X         float64         `json:"x"`
		Width     float64         `json:"width"`
		Depth     int             `json:"depth"`
		Timestamp int64           `json:"timestamp"`
		Duration  models.Duration `json:"duration"`
		Text      string          `json:"text,omitempty"`
	}{r.X, r.Width, r.Depth, r.Event.Timestamp, r.Event.Duration, r.Event.Text})
}

// PixelBucket aggregates nodes too narrow to draw inside one grid cell at one depth.
// Events is populated only while the bucket holds a single event.
type PixelBucket struct {
	Depth       int             `json:"depth"`
	BucketIndex int64           `json:"bucket_index"`
	TimeStart   float64         `json:"time_start"`
	TimeEnd     float64         `json:"time_end"`
	X           float64         `json:"x"`
	Width       float64         `json:"width"`
	EventCount  int             `json:"event_count"`
	Stats       CategoryStats   `json:"category_stats"`
	Dominant    models.Category `json:"dominant_category"`
	Events      []*models.Event `json:"-"`
}

// Opacity is a rendering hint that grows with the number of aggregated events.
func (b *PixelBucket) Opacity() float64 {
	if b.EventCount <= 1 {
		return 0.35
	}
	return math.Min(1, 0.35+0.15*math.Log2(float64(b.EventCount)))
}

// Result is the transient output of one query.
type Result struct {
	VisibleRects map[models.Category][]Rect `json:"visible_rects"`
	Buckets      []PixelBucket              `json:"buckets"`
	Stats        models.FrameStats          `json:"stats"`
}

type bucketKey struct {
	depth int
	index int64
}

// Query resolves the viewport into a window and runs QueryWindow.
func (t *Tree) Query(vp *viewport.Viewport) (*Result, error) {
	if n := vp.EventCount(); n != 0 && n != t.eventCount {
		return nil, fmt.Errorf("%w: viewport=%d tree=%d", ErrDatasetMismatch, n, t.eventCount)
	}
	return t.QueryWindow(WindowFor(vp, t.opts.BucketPixelWidth)), nil
}

// QueryWindow visits only overlapping subtrees at visible depths. Nodes whose
// span is at or below the threshold are folded into grid-aligned buckets; wider
// leaves become visible rectangles. Only events overlapping the window are
// ever emitted or bucketed.
func (t *Tree) QueryWindow(w Window) *Result {
	res := &Result{VisibleRects: make(map[models.Category][]Rect)}
	buckets := make(map[bucketKey]*PixelBucket)

	cell := w.BucketTimeWidth
	if cell <= 0 || math.IsNaN(cell) || math.IsInf(cell, 0) {
		cell = w.Threshold
	}

	first := max(w.Bounds.DepthStart, 0)
	last := min(w.Bounds.DepthEnd, len(t.roots)-1)
	var stack []*Node
	for depth := first; depth <= last; depth++ {
		root := t.roots[depth]
		if root == nil {
			continue
		}
		stack = append(stack[:0], root)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if !w.Bounds.OverlapsTime(float64(n.TimeStart), float64(n.TimeEnd)) {
				continue
			}
			// a narrow branch straddling the window edge is split so events
			// outside the window never reach a bucket
			if n.Span <= w.Threshold && cell > 0 && (n.IsLeaf() || w.contains(n)) {
				addToBucket(buckets, n, cell, w)
				continue
			}
			if n.IsLeaf() {
				res.VisibleRects[n.Event.Category] = append(res.VisibleRects[n.Event.Category], Rect{
					X:     float64(n.TimeStart)*w.Zoom - w.OffsetX,
					Width: float64(n.Event.Duration.Total) * w.Zoom,
					Depth: depth,
					Event: n.Event,
				})
				res.Stats.VisibleCount++
				continue
			}
			for i := len(n.Children) - 1; i >= 0; i-- {
				stack = append(stack, n.Children[i])
			}
		}
	}

	res.Buckets = make([]PixelBucket, 0, len(buckets))
	for _, b := range buckets {
		b.Dominant = b.Stats.Dominant()
		res.Buckets = append(res.Buckets, *b)
		res.Stats.BucketedEventCount += b.EventCount
		if b.EventCount > res.Stats.MaxEventsPerBucket {
			res.Stats.MaxEventsPerBucket = b.EventCount
		}
	}
	sort.Slice(res.Buckets, func(i, j int) bool {
		if res.Buckets[i].Depth != res.Buckets[j].Depth {
			return res.Buckets[i].Depth < res.Buckets[j].Depth
		}
		return res.Buckets[i].BucketIndex < res.Buckets[j].BucketIndex
	})
	res.Stats.BucketCount = len(res.Buckets)
	return res
}

// contains reports whether every event under n overlaps the window. Exit
// times are exclusive, so a node may end on the window edge, but no event
// may start there.
func (w Window) contains(n *Node) bool {
	return float64(n.TimeStart) >= w.Bounds.TimeStart &&
		float64(n.TimeEnd) <= w.Bounds.TimeEnd &&
		float64(n.LastStart) < w.Bounds.TimeEnd
}

func addToBucket(buckets map[bucketKey]*PixelBucket, n *Node, cell float64, w Window) {
	key := bucketKey{depth: n.Depth, index: int64(math.Floor(float64(n.TimeStart) / cell))}
	b, ok := buckets[key]
	if !ok {
		start := float64(key.index) * cell
		b = &PixelBucket{
			Depth:       key.depth,
			BucketIndex: key.index,
			TimeStart:   start,
			TimeEnd:     start + cell,
			X:           start*w.Zoom - w.OffsetX,
			Width:       cell * w.Zoom,
		}
		buckets[key] = b
	}
	b.EventCount += n.EventCount
	b.Stats.Merge(&n.Stats)
	switch {
	case b.EventCount == 1 && n.IsLeaf():
		b.Events = []*models.Event{n.Event}
	case b.EventCount > 1:
		b.Events = nil
	}
}
