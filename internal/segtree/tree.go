// Package segtree pre-aggregates a call tree into one balanced segment tree per
// nesting depth so viewport queries touch O(k log n) nodes instead of every event.
//
// Trees are immutable once built. A changed event set needs a new Build; a
// theme change does not, since nodes carry category labels and never colors.
package segtree

import (
	"math"
	"sort"

	"flametrace/pkg/models"
)

const (
	// DefaultBranchingFactor is the number of children merged per branch.
	DefaultBranchingFactor = 8
	// DefaultMinSpan is the smallest node span in nanoseconds.
	DefaultMinSpan = 1.0
	// DefaultBucketPixelWidth is the screen width of one bucket in pixels.
	DefaultBucketPixelWidth = 2.0
)

// Options are the construction and query tuning knobs.
type Options struct {
	// BranchingFactor is the number of children merged per branch.
	BranchingFactor int
	// MinSpan is the smallest nodeSpan in nanoseconds.
	MinSpan float64
	// BucketPixelWidth is the screen width one bucket represents.
	BucketPixelWidth float64
}

// DefaultOptions returns the default tuning knobs.
func DefaultOptions() Options {
	return Options{
		BranchingFactor:  DefaultBranchingFactor,
		MinSpan:          DefaultMinSpan,
		BucketPixelWidth: DefaultBucketPixelWidth,
	}
}

func (o Options) withDefaults() Options {
	if o.BranchingFactor < 2 {
		o.BranchingFactor = DefaultBranchingFactor
	}
	if o.MinSpan <= 0 || math.IsNaN(o.MinSpan) || math.IsInf(o.MinSpan, 0) {
		o.MinSpan = DefaultMinSpan
	}
	if o.BucketPixelWidth <= 0 || math.IsNaN(o.BucketPixelWidth) || math.IsInf(o.BucketPixelWidth, 0) {
		o.BucketPixelWidth = DefaultBucketPixelWidth
	}
	return o
}

// Node is a segment of one depth's timeline. Leaves reference their event;
// branches span exactly their first to last child and sum their stats.
// Every branch has at least two children.
type Node struct {
	TimeStart int64
	TimeEnd   int64
	// LastStart is the latest event timestamp in the subtree.
	LastStart  int64
	Span       float64
	Stats      CategoryStats
	Dominant   models.Category
	EventCount int
	Depth      int
	Children   []*Node
	Event      *models.Event
}

// IsLeaf reports whether the node wraps a single event.
func (n *Node) IsLeaf() bool { return n.Event != nil }

// Tree holds one root per depth. Depths without events have a nil root.
type Tree struct {
	roots      []*Node
	eventCount int
	opts       Options
}

type pending struct {
	event *models.Event
	depth int
}

// Build groups events by depth, sorts each depth by timestamp, and builds each
// depth's tree bottom-up with the configured branching factor.
func Build(roots []*models.Event, opts Options) *Tree {
	opts = opts.withDefaults()
	t := &Tree{opts: opts}

	levels := groupByDepth(roots)
	t.roots = make([]*Node, len(levels))
	for depth, events := range levels {
		if len(events) == 0 {
			continue
		}
		t.eventCount += len(events)
		t.roots[depth] = buildLevel(events, depth, opts)
	}
	return t
}

func groupByDepth(roots []*models.Event) [][]*models.Event {
	var levels [][]*models.Event
	stack := make([]pending, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		if roots[i] != nil {
			stack = append(stack, pending{event: roots[i]})
		}
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for len(levels) <= top.depth {
			levels = append(levels, nil)
		}
		levels[top.depth] = append(levels[top.depth], top.event)

		children := top.event.Children
		for i := len(children) - 1; i >= 0; i-- {
			if children[i] != nil {
				stack = append(stack, pending{event: children[i], depth: top.depth + 1})
			}
		}
	}
	for _, events := range levels {
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Timestamp < events[j].Timestamp
		})
	}
	return levels
}

func buildLevel(events []*models.Event, depth int, opts Options) *Node {
	level := make([]*Node, len(events))
	for i, e := range events {
		n := &Node{
			TimeStart:  e.Timestamp,
			TimeEnd:    e.ExitStamp(),
			LastStart:  e.Timestamp,
			Span:       math.Max(opts.MinSpan, float64(e.Duration.Total)),
			EventCount: 1,
			Depth:      depth,
			Event:      e,
		}
		n.Stats.Add(e.Category, 1, e.Duration.Total)
		n.Dominant = n.Stats.Dominant()
		level[i] = n
	}

	for len(level) > 1 {
		next := make([]*Node, 0, (len(level)+opts.BranchingFactor-1)/opts.BranchingFactor)
		for start := 0; start < len(level); start += opts.BranchingFactor {
			end := min(start+opts.BranchingFactor, len(level))
			if end-start == 1 {
				// a trailing lone node moves up as is
				next = append(next, level[start])
				continue
			}
			next = append(next, newBranch(level[start:end], depth, opts))
		}
		level = next
	}
	return level[0]
}

func newBranch(children []*Node, depth int, opts Options) *Node {
	first, last := children[0], children[len(children)-1]
	n := &Node{
		TimeStart: first.TimeStart,
		TimeEnd:   last.TimeEnd,
		LastStart: last.LastStart,
		Depth:     depth,
		Children:  children,
	}
	n.Span = math.Max(opts.MinSpan, float64(n.TimeEnd-n.TimeStart))
	for _, c := range children {
		n.EventCount += c.EventCount
		n.Stats.Merge(&c.Stats)
	}
	n.Dominant = n.Stats.Dominant()
	return n
}

// Root returns the tree root for depth, or nil.
func (t *Tree) Root(depth int) *Node {
	if depth < 0 || depth >= len(t.roots) {
		return nil
	}
	return t.roots[depth]
}

// Depths returns the number of depth levels, including empty ones.
func (t *Tree) Depths() int { return len(t.roots) }

// EventCount returns the number of events the tree was built from.
func (t *Tree) EventCount() int { return t.eventCount }

// Options returns the effective options.
func (t *Tree) Options() Options { return t.opts }
