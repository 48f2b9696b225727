package viewport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViewport(t *testing.T, total float64, maxDepth int, w, h float64) *Viewport {
	t.Helper()
	vp, err := New(total, maxDepth, w, h, DefaultOptions())
	require.NoError(t, err)
	return vp
}

func TestNewFitsWholeTimeline(t *testing.T) {
	vp := newTestViewport(t, 10_000_000, 5, 1000, 300)

	assert.InDelta(t, 1e-4, vp.Zoom(), 1e-12)
	assert.Equal(t, vp.MinZoom(), vp.Zoom())
	assert.Equal(t, DefaultMaxZoom, vp.MaxZoom())
	assert.Zero(t, vp.OffsetX())
	assert.Zero(t, vp.OffsetY())
	assert.True(t, vp.IsFitAll())
}

func TestDepthRoundTrip(t *testing.T) {
	vp := newTestViewport(t, 10_000_000, 50, 1000, 300)

	check := func() {
		for d := 0; d <= vp.MaxDepth(); d++ {
			require.Equal(t, d, vp.ScreenYToDepth(vp.DepthToScreenY(d)), "depth %d offsetY %v", d, vp.OffsetY())
		}
	}
	check()

	vp.SetPanY(100)
	require.Equal(t, 100.0, vp.OffsetY())
	check()

	vp.SetPanY(1e9)
	check()
}

func TestDepthInversionIsMonotonic(t *testing.T) {
	vp := newTestViewport(t, 10_000_000, 20, 1000, 300)
	for d := 0; d < vp.MaxDepth(); d++ {
		assert.Greater(t, vp.DepthToScreenY(d), vp.DepthToScreenY(d+1))
	}
}

func TestScreenYInsideRow(t *testing.T) {
	vp := newTestViewport(t, 1000, 3, 100, 60)
	// rows are 15px tall; depth 0 occupies [45, 60)
	assert.Equal(t, 0, vp.ScreenYToDepth(45))
	assert.Equal(t, 0, vp.ScreenYToDepth(59.9))
	assert.Equal(t, 1, vp.ScreenYToDepth(44.9))
	assert.Equal(t, 1, vp.ScreenYToDepth(30))
	assert.Equal(t, 3, vp.ScreenYToDepth(0))
}

func TestTimeTransformsInvert(t *testing.T) {
	vp := newTestViewport(t, 10_000_000, 5, 1000, 300)
	_, err := vp.SetZoomAt(5e-4, 0)
	require.NoError(t, err)
	vp.SetPanX(1234)

	for _, ts := range []float64{0, 2_468_000, 3_000_000, 9_999_999} {
		assert.InDelta(t, ts, vp.ScreenXToTime(vp.TimeToScreenX(ts)), 1e-6)
	}
}

func TestClampingUnderAdversarialInput(t *testing.T) {
	const total = 10_000_000
	vp := newTestViewport(t, total, 40, 1000, 300)

	assertInBounds := func(step string) {
		t.Helper()
		s := vp.State()
		require.GreaterOrEqual(t, s.Zoom, vp.MinZoom(), step)
		require.LessOrEqual(t, s.Zoom, vp.MaxZoom(), step)
		require.GreaterOrEqual(t, s.OffsetX, 0.0, step)
		require.LessOrEqual(t, s.OffsetX, math.Max(0, s.Zoom*total-s.DisplayWidth)+1e-6, step)
		require.GreaterOrEqual(t, s.OffsetY, 0.0, step)
		require.LessOrEqual(t, s.OffsetY, float64(vp.MaxDepth()+1)*vp.RowHeight()-s.DisplayHeight+1e-6, step)
	}

	vp.SetPan(1e18, 1e18)
	assertInBounds("huge pan")
	vp.PanBy(-1e18, -1e18)
	assertInBounds("huge negative pan")

	_, err := vp.SetZoom(1e9)
	require.NoError(t, err)
	assertInBounds("huge zoom")
	assert.Equal(t, vp.MaxZoom(), vp.Zoom())

	vp.PanBy(1e12, 0)
	assertInBounds("pan at max zoom")

	_, err = vp.SetZoom(0)
	require.NoError(t, err)
	assertInBounds("zero zoom")
	assert.Equal(t, vp.MinZoom(), vp.Zoom())

	for i := 0; i < 50; i++ {
		_, err := vp.ZoomBy(3, float64(i*37%1000))
		require.NoError(t, err)
		vp.PanBy(float64(i*1e5), -float64(i*7))
		assertInBounds("zoom/pan sequence")
	}
}

func TestZoomByKeepsAnchorTime(t *testing.T) {
	vp := newTestViewport(t, 10_000_000, 5, 1000, 300)
	before := vp.ScreenXToTime(500)

	changed, err := vp.ZoomBy(2, 500)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.InDelta(t, 2e-4, vp.Zoom(), 1e-12)
	assert.InDelta(t, before, vp.ScreenXToTime(500), 1e-3)
	assert.False(t, vp.IsFitAll())
}

func TestSetZoomReportsNoChangeAtLimit(t *testing.T) {
	vp := newTestViewport(t, 10_000_000, 5, 1000, 300)
	changed, err := vp.SetZoom(vp.MinZoom() / 10)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestInvalidZoom(t *testing.T) {
	vp := newTestViewport(t, 10_000_000, 5, 1000, 300)
	for _, z := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := vp.SetZoom(z)
		assert.ErrorIs(t, err, ErrInvalidZoom)
	}
	_, err := vp.ZoomBy(0, 0)
	assert.ErrorIs(t, err, ErrInvalidZoom)
	assert.InDelta(t, 1e-4, vp.Zoom(), 1e-12)
}

func TestNegativeDimensions(t *testing.T) {
	_, err := New(1000, 1, -1, 100, DefaultOptions())
	assert.ErrorIs(t, err, ErrNegativeDimension)
	_, err = New(1000, 1, 100, math.NaN(), DefaultOptions())
	assert.ErrorIs(t, err, ErrNegativeDimension)

	vp := newTestViewport(t, 1000, 1, 100, 100)
	assert.ErrorIs(t, vp.Resize(100, -5), ErrNegativeDimension)
	assert.Equal(t, 100.0, vp.Height())
}

func TestDegenerateInputsFallBackToUnitZoom(t *testing.T) {
	cases := []struct {
		name     string
		total    float64
		maxDepth int
		w, h     float64
	}{
		{"zero duration", 0, 3, 1000, 300},
		{"zero width", 1_000_000, 3, 0, 300},
		{"everything zero", 0, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vp := newTestViewport(t, tc.total, tc.maxDepth, tc.w, tc.h)
			assert.Equal(t, 1.0, vp.MinZoom())
			assert.Equal(t, 1.0, vp.Zoom())
			b := vp.Bounds()
			assert.False(t, math.IsNaN(b.TimeStart) || math.IsInf(b.TimeEnd, 0))
		})
	}
}

func TestResizeRefitsOnlyAtFitAll(t *testing.T) {
	vp := newTestViewport(t, 10_000_000, 3, 1000, 300)

	require.NoError(t, vp.Resize(2000, 300))
	assert.InDelta(t, 2e-4, vp.Zoom(), 1e-12)
	assert.True(t, vp.IsFitAll())

	_, err := vp.SetZoom(5e-4)
	require.NoError(t, err)
	require.NoError(t, vp.Resize(1500, 300))
	assert.Equal(t, 5e-4, vp.Zoom())
	assert.InDelta(t, 1.5e-4, vp.MinZoom(), 1e-12)
}

func TestFitAll(t *testing.T) {
	vp := newTestViewport(t, 10_000_000, 3, 1000, 300)
	_, err := vp.ZoomBy(4, 800)
	require.NoError(t, err)
	require.NotZero(t, vp.OffsetX())

	assert.True(t, vp.FitAll())
	assert.Equal(t, vp.MinZoom(), vp.Zoom())
	assert.Zero(t, vp.OffsetX())
	assert.False(t, vp.FitAll())
}

func TestBounds(t *testing.T) {
	vp := newTestViewport(t, 10_000_000, 10, 1000, 150)

	b := vp.Bounds()
	assert.Zero(t, b.TimeStart)
	assert.InDelta(t, 10_000_000, b.TimeEnd, 1e-3)
	assert.Equal(t, 0, b.DepthStart)
	assert.Equal(t, 9, b.DepthEnd)

	// (10+1)*15 - 150 caps the vertical pan at 15px
	vp.SetPanY(30)
	assert.Equal(t, 15.0, vp.OffsetY())
	b = vp.Bounds()
	assert.Equal(t, 1, b.DepthStart)
	assert.Equal(t, 10, b.DepthEnd)
}

func TestIndependentViewports(t *testing.T) {
	main := newTestViewport(t, 10_000_000, 3, 1000, 300)
	mini := newTestViewport(t, 10_000_000, 3, 200, 40)

	_, err := main.ZoomBy(8, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2e-5, mini.Zoom(), 1e-12)
	assert.True(t, mini.IsFitAll())
}
