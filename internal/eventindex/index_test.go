package eventindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flametrace/internal/viewport"
	"flametrace/pkg/models"
)

func ev(ts, dur int64, cat models.Category, children ...*models.Event) *models.Event {
	return &models.Event{
		Timestamp: ts,
		Duration:  models.Duration{Total: dur, Self: dur},
		Category:  cat,
		Children:  children,
	}
}

func viewportFor(t *testing.T, ix *Index, width, height, maxZoom float64) *viewport.Viewport {
	t.Helper()
	vp, err := viewport.New(float64(ix.TotalDuration()), ix.MaxDepth(), width, height, viewport.Options{
		MaxZoom:    maxZoom,
		EventCount: ix.EventCount(),
	})
	require.NoError(t, err)
	return vp
}

func TestHitTestPrecision(t *testing.T) {
	e := ev(100_000, 100_000, models.CategoryMethod)
	ix := New([]*models.Event{e})

	// 200px over 200µs is 0.001 px/ns
	vp := viewportFor(t, ix, 200, 100, viewport.DefaultMaxZoom)
	require.Equal(t, 0.001, vp.Zoom())
	require.Zero(t, vp.OffsetX())

	y := vp.DepthToScreenY(0)
	assert.Same(t, e, ix.FindEventAtPosition(150, y, vp, false))
	assert.Nil(t, ix.FindEventAtPosition(50, y, vp, false))
	assert.Nil(t, ix.FindEventAtPosition(250, y, vp, false))
}

func TestFlatSiblings(t *testing.T) {
	a := ev(0, 100, models.CategoryMethod)
	b := ev(200, 100, models.CategorySOQL)
	c := ev(400, 100, models.CategoryDML)
	ix := New([]*models.Event{a, b, c})

	vp := viewportFor(t, ix, 500, 100, 1)
	require.Equal(t, 1.0, vp.Zoom())
	y := vp.DepthToScreenY(0)

	assert.Nil(t, ix.FindEventAtPosition(250, y, vp, false))
	assert.Same(t, a, ix.FindEventAtPosition(50, y, vp, false))
	assert.Same(t, c, ix.FindEventAtPosition(450, y, vp, false))

	// intervals are half-open
	assert.Nil(t, ix.FindEventAtPosition(100, y, vp, false))
	assert.Same(t, b, ix.FindEventAtPosition(200, y, vp, false))
	assert.Same(t, b, ix.FindEventAtPosition(299.5, y, vp, false))
}

func TestNestedDepthMismatch(t *testing.T) {
	child := ev(50, 20, models.CategorySOQL)
	parent := ev(0, 100, models.CategoryMethod, child)
	ix := New([]*models.Event{parent})
	require.Equal(t, 1, ix.MaxDepth())

	vp := viewportFor(t, ix, 100, 100, 1)
	require.Equal(t, 1.0, vp.Zoom())

	for _, x := range []float64{50, 55, 60, 69.9} {
		assert.Same(t, parent, ix.FindEventAtDepth(x, vp, 0, false), "x=%v", x)
		assert.Same(t, child, ix.FindEventAtDepth(x, vp, 1, false), "x=%v", x)
	}
	assert.Nil(t, ix.FindEventAtDepth(20, vp, 1, false))
	assert.Nil(t, ix.FindEventAtDepth(60, vp, 2, false))
	assert.Nil(t, ix.FindEventAtDepth(60, vp, -1, false))

	assert.Same(t, child, ix.FindEventAtPosition(60, vp.DepthToScreenY(1), vp, false))
	assert.Same(t, parent, ix.FindEventAtPosition(20, vp.DepthToScreenY(0), vp, false))
}

func TestHitWidthThreshold(t *testing.T) {
	tiny := ev(0, 10, models.CategoryDML)
	wide := ev(10, 999_990, models.CategoryMethod)
	ix := New([]*models.Event{tiny, wide})

	vp := viewportFor(t, ix, 1000, 100, viewport.DefaultMaxZoom)
	require.InDelta(t, 0.001, vp.Zoom(), 1e-15)
	y := vp.DepthToScreenY(0)

	// 10ns at 0.001 px/ns is 0.01px wide
	assert.Nil(t, ix.FindEventAtPosition(0.005, y, vp, false))
	assert.Same(t, tiny, ix.FindEventAtPosition(0.005, y, vp, true))
	assert.Same(t, wide, ix.FindEventAtPosition(500, y, vp, false))

	loose := New([]*models.Event{tiny, wide}, WithHitMinWidth(0))
	assert.Same(t, tiny, loose.FindEventAtPosition(0.005, y, vp, false))
}

func TestZeroDurationNeverHit(t *testing.T) {
	z := ev(50, 0, models.CategoryMethod)
	wide := ev(100, 100, models.CategoryMethod)
	ix := New([]*models.Event{z, wide})

	vp := viewportFor(t, ix, 200, 100, 1)
	y := vp.DepthToScreenY(0)
	assert.Nil(t, ix.FindEventAtPosition(50, y, vp, true))
	assert.Nil(t, ix.FindEventAtPosition(50, y, vp, false))
}

func TestDerivedStatistics(t *testing.T) {
	leaf := ev(20, 10, models.CategorySOQL)
	mid := ev(10, 50, models.CategoryMethod, leaf)
	root := ev(0, 100, models.CategoryCodeUnit, mid)
	// an instantaneous event never deepens the tree, even with children
	instant := ev(200, 0, models.CategoryCodeUnit, ev(200, 0, models.CategoryMethod))

	ix := New([]*models.Event{root, instant})
	assert.Equal(t, 2, ix.MaxDepth())
	assert.Equal(t, int64(200), ix.TotalDuration())
	assert.Equal(t, 5, ix.EventCount())
	assert.Len(t, ix.Roots(), 2)
}

func TestEmptyIndex(t *testing.T) {
	ix := New(nil)
	assert.Zero(t, ix.MaxDepth())
	assert.Zero(t, ix.TotalDuration())
	assert.Zero(t, ix.EventCount())

	vp := viewportFor(t, ix, 100, 100, 1)
	assert.Nil(t, ix.FindEventAtPosition(10, 90, vp, true))
	assert.Empty(t, ix.FindEventsInRegion(models.Bounds{TimeEnd: 1000, DepthEnd: 5}))
}

func TestFindEventsInRegion(t *testing.T) {
	child := ev(50, 20, models.CategorySOQL)
	parent := ev(0, 100, models.CategoryMethod, child)
	b := ev(200, 100, models.CategorySOQL)
	c := ev(400, 100, models.CategoryDML)
	ix := New([]*models.Event{parent, b, c})

	cases := []struct {
		name   string
		bounds models.Bounds
		want   []*models.Event
	}{
		{"time window at root depth", models.Bounds{TimeStart: 150, TimeEnd: 450, DepthStart: 0, DepthEnd: 0}, []*models.Event{b, c}},
		{"end is exclusive", models.Bounds{TimeStart: 150, TimeEnd: 400, DepthStart: 0, DepthEnd: 0}, []*models.Event{b}},
		{"child only", models.Bounds{TimeStart: 0, TimeEnd: 100, DepthStart: 1, DepthEnd: 1}, []*models.Event{child}},
		{"depth-first order", models.Bounds{TimeStart: 0, TimeEnd: 1000, DepthStart: 0, DepthEnd: 1}, []*models.Event{parent, child, b, c}},
		{"child outside window", models.Bounds{TimeStart: 0, TimeEnd: 40, DepthStart: 0, DepthEnd: 1}, []*models.Event{parent}},
		{"inverted depth window", models.Bounds{TimeStart: 0, TimeEnd: 1000, DepthStart: 1, DepthEnd: 0}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ix.FindEventsInRegion(tc.bounds)
			require.Len(t, got, len(tc.want))
			for i := range tc.want {
				assert.Same(t, tc.want[i], got[i])
			}
		})
	}
}
