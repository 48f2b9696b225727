// Package session ties one loaded trace to its event index, its segment trees
// and any number of viewports over them.
package session

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"flametrace/internal/eventindex"
	"flametrace/internal/logger"
	"flametrace/internal/metrics"
	"flametrace/internal/segtree"
	"flametrace/internal/viewport"
	"flametrace/pkg/models"
)

// Options carries the tuning knobs for every component of a session.
type Options struct {
	Tree        segtree.Options
	Viewport    viewport.Options
	HitMinWidth float64
	// DegenerateShare logs a warning when one bucket holds at least this share of a frame's events.
	DegenerateShare float64
}

// DefaultOptions returns the component defaults.
func DefaultOptions() Options {
	return Options{
		Tree:            segtree.DefaultOptions(),
		Viewport:        viewport.DefaultOptions(),
		HitMinWidth:     eventindex.DefaultHitMinWidth,
		DegenerateShare: 0.5,
	}
}

// Session is built once per dataset load. After New returns, the index and
// tree are read-only, so frames for independent viewports may run concurrently.
type Session struct {
	TraceID string

	index *eventindex.Index
	tree  *segtree.Tree
	opts  Options
	now   func() time.Time
}

// New builds the index and segment trees for roots.
func New(traceID string, roots []*models.Event, opts Options) *Session {
	start := time.Now()
	index := eventindex.New(roots, eventindex.WithHitMinWidth(opts.HitMinWidth))
	tree := segtree.Build(roots, opts.Tree)
	elapsed := time.Since(start)

	metrics.ObserveBuild(elapsed, tree.EventCount())
	logger.Infof("Trace %s indexed: events=%d max_depth=%d duration_ns=%d build=%s",
		traceID, index.EventCount(), index.MaxDepth(), index.TotalDuration(), elapsed)

	return &Session{
		TraceID: traceID,
		index:   index,
		tree:    tree,
		opts:    opts,
		now:     time.Now,
	}
}

// Index returns the event index.
func (s *Session) Index() *eventindex.Index { return s.index }

// Tree returns the segment tree.
func (s *Session) Tree() *segtree.Tree { return s.tree }

// NewViewport creates a fit-all viewport bound to this dataset.
func (s *Session) NewViewport(width, height float64) (*viewport.Viewport, error) {
	opts := s.opts.Viewport
	opts.EventCount = s.tree.EventCount()
	vp, err := viewport.New(float64(s.index.TotalDuration()), s.index.MaxDepth(), width, height, opts)
	if err != nil {
		return nil, fmt.Errorf("create viewport: %w", err)
	}
	return vp, nil
}

// Query runs one viewport query and records its metrics.
func (s *Session) Query(label string, vp *viewport.Viewport) (*segtree.Result, time.Duration, error) {
	start := time.Now()
	res, err := s.tree.Query(vp)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}
	metrics.ObserveQuery(label, elapsed, res.Stats)

	total := res.Stats.BucketedEventCount + res.Stats.VisibleCount
	if s.opts.DegenerateShare > 0 && total > 0 &&
		float64(res.Stats.MaxEventsPerBucket) >= s.opts.DegenerateShare*float64(total) && res.Stats.MaxEventsPerBucket > 1 {
		logger.Warnf("Trace %s frame %s: one bucket holds %d of %d visible events (zoom=%g)",
			s.TraceID, label, res.Stats.MaxEventsPerBucket, total, vp.Zoom())
	}
	return res, elapsed, nil
}

// Frame runs a query and summarizes it for writers and alerting.
func (s *Session) Frame(label string, vp *viewport.Viewport) (*segtree.Result, models.FrameSummary, error) {
	res, elapsed, err := s.Query(label, vp)
	if err != nil {
		return nil, models.FrameSummary{}, err
	}
	return res, s.summarize(label, vp, res, elapsed), nil
}

func (s *Session) summarize(label string, vp *viewport.Viewport, res *segtree.Result, elapsed time.Duration) models.FrameSummary {
	st := vp.State()
	return models.FrameSummary{
		TraceID:     s.TraceID,
		Label:       label,
		EventCount:  s.tree.EventCount(),
		Zoom:        st.Zoom,
		OffsetX:     st.OffsetX,
		OffsetY:     st.OffsetY,
		Width:       st.DisplayWidth,
		Height:      st.DisplayHeight,
		Bounds:      vp.Bounds(),
		Stats:       res.Stats,
		QueryTime:   elapsed,
		GeneratedAt: s.now().UTC(),
	}
}

// HitTest resolves a pointer position to an event, or nil.
func (s *Session) HitTest(vp *viewport.Viewport, x, y float64) *models.Event {
	e := s.index.FindEventAtPosition(x, y, vp, false)
	metrics.ObserveHitTest(e != nil)
	return e
}

// Sweep queries the whole timeline at several zoom multipliers of fit-all. Each
// level gets its own viewport; the shared tree is only read, so levels run concurrently.
func (s *Session) Sweep(ctx context.Context, width, height float64, levels []float64) ([]models.FrameSummary, error) {
	out := make([]models.FrameSummary, len(levels))
	g, ctx := errgroup.WithContext(ctx)
	for i, level := range levels {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vp, err := s.NewViewport(width, height)
			if err != nil {
				return err
			}
			if _, err := vp.SetZoomAt(vp.MinZoom()*level, 0); err != nil {
				return fmt.Errorf("zoom level %g: %w", level, err)
			}
			_, summary, err := s.Frame(LevelLabel(level), vp)
			if err != nil {
				return fmt.Errorf("zoom level %g: %w", level, err)
			}
			out[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LevelLabel names a zoom multiplier frame, e.g. "x10".
func LevelLabel(level float64) string {
	if level <= 1 {
		return "fit"
	}
	return fmt.Sprintf("x%g", level)
}
