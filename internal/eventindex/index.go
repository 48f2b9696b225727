// Package eventindex answers exact structural queries over a parsed call tree:
// which event sits under a pointer, and which events fall inside a region.
package eventindex

import (
	"math"

	"flametrace/internal/viewport"
	"flametrace/pkg/models"
)

// DefaultHitMinWidth is the narrowest rendered width, in pixels, that can be hit.
const DefaultHitMinWidth = 0.05

// Index wraps a read-only event tree.
type Index struct {
	roots         []*models.Event
	maxDepth      int
	totalDuration int64
	eventCount    int
	hitMinWidth   float64
}

// Option customizes an Index.
type Option func(*Index)

// WithHitMinWidth overrides the minimum hittable width in pixels.
func WithHitMinWidth(px float64) Option {
	return func(ix *Index) {
		if px >= 0 && !math.IsNaN(px) {
			ix.hitMinWidth = px
		}
	}
}

type frame struct {
	event *models.Event
	depth int
}

// New builds an index over roots. An empty tree yields zero depth and duration.
func New(roots []*models.Event, opts ...Option) *Index {
	ix := &Index{
		roots:       roots,
		hitMinWidth: DefaultHitMinWidth,
	}
	for _, opt := range opts {
		opt(ix)
	}

	// maxDepth counts only chains through events that have both a duration and
	// children, so a childless or instantaneous event never deepens the tree.
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		if r := roots[i]; r != nil {
			stack = append(stack, frame{event: r})
			if exit := r.ExitStamp(); exit > ix.totalDuration {
				ix.totalDuration = exit
			}
		}
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ix.eventCount++

		e := top.event
		if e.Duration.Total > 0 && len(e.Children) > 0 && top.depth+1 > ix.maxDepth {
			ix.maxDepth = top.depth + 1
		}
		for i := len(e.Children) - 1; i >= 0; i-- {
			if c := e.Children[i]; c != nil {
				stack = append(stack, frame{event: c, depth: top.depth + 1})
			}
		}
	}
	return ix
}

// Roots returns the root events.
func (ix *Index) Roots() []*models.Event { return ix.roots }

// MaxDepth returns the deepest depth reachable through events with duration and children.
func (ix *Index) MaxDepth() int { return ix.maxDepth }

// TotalDuration returns the latest exit time over all root events.
func (ix *Index) TotalDuration() int64 { return ix.totalDuration }

// EventCount returns the number of events counted while indexing.
func (ix *Index) EventCount() int { return ix.eventCount }

// FindEventAtPosition resolves a screen position to an event, deriving the
// target depth from screenY. It returns nil when nothing is hit.
func (ix *Index) FindEventAtPosition(screenX, screenY float64, vp *viewport.Viewport, ignoreWidthThreshold bool) *models.Event {
	return ix.FindEventAtDepth(screenX, vp, vp.ScreenYToDepth(screenY), ignoreWidthThreshold)
}

// FindEventAtDepth binary-searches siblings level by level until it reaches
// targetDepth. Events narrower than the hit width are skipped unless
// ignoreWidthThreshold is set.
func (ix *Index) FindEventAtDepth(screenX float64, vp *viewport.Viewport, targetDepth int, ignoreWidthThreshold bool) *models.Event {
	if targetDepth < 0 || vp == nil {
		return nil
	}
	minWidth := ix.hitMinWidth
	if ignoreWidthThreshold {
		minWidth = 0
	}

	siblings := ix.roots
	for depth := 0; depth <= targetDepth; depth++ {
		e := searchSiblings(siblings, screenX, vp)
		if e == nil {
			return nil
		}
		width := float64(e.Duration.Total) * vp.Zoom()
		if width <= 0 || width < minWidth {
			return nil
		}
		if depth == targetDepth {
			return e
		}
		siblings = e.Children
	}
	return nil
}

// searchSiblings finds the sibling whose screen interval [x, x+width) contains screenX.
func searchSiblings(siblings []*models.Event, screenX float64, vp *viewport.Viewport) *models.Event {
	zoom := vp.Zoom()
	lo, hi := 0, len(siblings)-1
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		e := siblings[mid]
		start := vp.TimeToScreenX(float64(e.Timestamp))
		end := start + float64(e.Duration.Total)*zoom
		switch {
		case screenX < start:
			hi = mid - 1
		case screenX >= end:
			lo = mid + 1
		default:
			return e
		}
	}
	return nil
}

// FindEventsInRegion collects, in depth-first order, every event overlapping
// the time window at a depth inside the depth window.
func (ix *Index) FindEventsInRegion(bounds models.Bounds) []*models.Event {
	var out []*models.Event
	if bounds.DepthEnd < bounds.DepthStart || bounds.DepthEnd < 0 {
		return out
	}

	stack := make([]frame, 0, len(ix.roots))
	for i := len(ix.roots) - 1; i >= 0; i-- {
		if r := ix.roots[i]; r != nil {
			stack = append(stack, frame{event: r})
		}
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		e := top.event
		// children never extend past their parent, so a miss prunes the subtree
		if !bounds.OverlapsTime(float64(e.Timestamp), float64(e.ExitStamp())) {
			continue
		}
		if bounds.ContainsDepth(top.depth) {
			out = append(out, e)
		}
		if top.depth >= bounds.DepthEnd {
			continue
		}
		for i := len(e.Children) - 1; i >= 0; i-- {
			if c := e.Children[i]; c != nil {
				stack = append(stack, frame{event: c, depth: top.depth + 1})
			}
		}
	}
	return out
}
