// Package viewport owns the zoom/pan state of one timeline view and converts
// between nanosecond time, call-stack depth, and screen pixels.
//
// Depth 0 renders at the bottom of the drawing area and deeper rows stack
// upwards. Every viewport is independent; a main view and a minimap over the
// same trace are simply two Viewport values.
package viewport

import (
	"errors"
	"fmt"
	"math"

	"flametrace/pkg/models"
)

var (
	// ErrNegativeDimension is returned when a display size is negative or not finite.
	ErrNegativeDimension = errors.New("viewport dimension must be a finite, non-negative number")
	// ErrInvalidZoom is returned for negative, NaN or infinite zoom values and factors.
	ErrInvalidZoom = errors.New("zoom must be a finite, non-negative number")
)

const (
	// DefaultMaxZoom is the resolution ceiling in pixels per nanosecond (1µs per pixel).
	DefaultMaxZoom = 0.001
	// DefaultRowHeight is the height of one depth row in pixels.
	DefaultRowHeight = 15.0
)

// Options configure zoom limits and row geometry.
type Options struct {
	// MaxZoom is the resolution ceiling in pixels per nanosecond.
	MaxZoom float64
	// RowHeight is the pixel height of a depth row.
	RowHeight float64
	// EventCount binds the viewport to a dataset so mismatched queries can be rejected.
	// Zero disables the check.
	EventCount int
}

// DefaultOptions returns the default zoom ceiling and row height.
func DefaultOptions() Options {
	return Options{
		MaxZoom:   DefaultMaxZoom,
		RowHeight: DefaultRowHeight,
	}
}

// State is a snapshot of the mutable viewport fields.
type State struct {
	Zoom          float64 `json:"zoom"`
	OffsetX       float64 `json:"offset_x"`
	OffsetY       float64 `json:"offset_y"`
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
}

// Viewport is mutated in place by pan/zoom/resize gestures and read by queries.
// It is not safe for concurrent mutation.
type Viewport struct {
	state State

	totalDuration float64
	maxDepth      int
	eventCount    int

	rowHeight  float64
	maxZoomCfg float64
	minZoom    float64
	maxZoom    float64
}

// New creates a viewport fitted to the whole timeline.
func New(totalDuration float64, maxDepth int, width, height float64, opts Options) (*Viewport, error) {
	if err := checkDimension(width, height); err != nil {
		return nil, err
	}
	if opts.MaxZoom <= 0 || !isFinite(opts.MaxZoom) {
		opts.MaxZoom = DefaultMaxZoom
	}
	if opts.RowHeight <= 0 || !isFinite(opts.RowHeight) {
		opts.RowHeight = DefaultRowHeight
	}
	if totalDuration < 0 || !isFinite(totalDuration) {
		totalDuration = 0
	}
	if maxDepth < 0 {
		maxDepth = 0
	}

	v := &Viewport{
		state: State{
			DisplayWidth:  width,
			DisplayHeight: height,
		},
		totalDuration: totalDuration,
		maxDepth:      maxDepth,
		eventCount:    opts.EventCount,
		rowHeight:     opts.RowHeight,
		maxZoomCfg:    opts.MaxZoom,
	}
	v.recomputeLimits()
	v.state.Zoom = v.minZoom
	v.clampOffsets()
	return v, nil
}

func checkDimension(width, height float64) error {
	if width < 0 || height < 0 || !isFinite(width) || !isFinite(height) {
		return fmt.Errorf("%w: width=%v height=%v", ErrNegativeDimension, width, height)
	}
	return nil
}

// fitZoom is the zoom that fits duration into width, or 1 when either is zero.
func fitZoom(width, duration float64) float64 {
	if width <= 0 || duration <= 0 {
		return 1
	}
	z := width / duration
	if z <= 0 || !isFinite(z) {
		return 1
	}
	return z
}

func (v *Viewport) recomputeLimits() {
	v.minZoom = fitZoom(v.state.DisplayWidth, v.totalDuration)
	v.maxZoom = math.Max(v.maxZoomCfg, v.minZoom)
}

func (v *Viewport) maxOffsetX() float64 {
	return math.Max(0, v.state.Zoom*v.totalDuration-v.state.DisplayWidth)
}

func (v *Viewport) maxOffsetY() float64 {
	return math.Max(0, float64(v.maxDepth+1)*v.rowHeight-v.state.DisplayHeight)
}

func (v *Viewport) clampOffsets() {
	v.state.OffsetX = clamp(v.state.OffsetX, 0, v.maxOffsetX())
	v.state.OffsetY = clamp(v.state.OffsetY, 0, v.maxOffsetY())
}

// TimeToScreenX maps a timestamp to a horizontal pixel position.
func (v *Viewport) TimeToScreenX(t float64) float64 {
	return t*v.state.Zoom - v.state.OffsetX
}

// ScreenXToTime is the inverse of TimeToScreenX.
func (v *Viewport) ScreenXToTime(x float64) float64 {
	return (x + v.state.OffsetX) / v.state.Zoom
}

// DepthToScreenY returns the top edge of the row for depth.
func (v *Viewport) DepthToScreenY(depth int) float64 {
	return v.state.DisplayHeight + v.state.OffsetY - float64(depth+1)*v.rowHeight
}

// ScreenYToDepth returns the depth row containing y. A row owns its top edge,
// so ScreenYToDepth(DepthToScreenY(d)) == d.
func (v *Viewport) ScreenYToDepth(y float64) int {
	rows := (v.state.DisplayHeight + v.state.OffsetY - y) / v.rowHeight
	if r := math.Round(rows); math.Abs(rows-r) < 1e-9 {
		return int(r) - 1
	}
	return int(math.Ceil(rows)) - 1
}

// SetZoom zooms around the horizontal center of the display.
func (v *Viewport) SetZoom(zoom float64) (bool, error) {
	return v.SetZoomAt(zoom, v.state.DisplayWidth/2)
}

// SetZoomAt clamps zoom to [MinZoom, MaxZoom] and keeps the time under anchorX
// fixed on screen. It reports whether the view changed.
func (v *Viewport) SetZoomAt(zoom, anchorX float64) (bool, error) {
	if zoom < 0 || !isFinite(zoom) {
		return false, fmt.Errorf("%w: %v", ErrInvalidZoom, zoom)
	}
	zoom = clamp(zoom, v.minZoom, v.maxZoom)
	if zoom == v.state.Zoom {
		return false, nil
	}

	anchorTime := v.ScreenXToTime(anchorX)
	v.state.Zoom = zoom
	v.state.OffsetX = anchorTime*zoom - anchorX
	v.clampOffsets()

	return true, nil
}

// ZoomBy multiplies the current zoom by factor around anchorX.
func (v *Viewport) ZoomBy(factor, anchorX float64) (bool, error) {
	if factor <= 0 || !isFinite(factor) {
		return false, fmt.Errorf("%w: factor %v", ErrInvalidZoom, factor)
	}
	return v.SetZoomAt(v.state.Zoom*factor, anchorX)
}

// FitAll resets to the minimum zoom with no horizontal pan.
func (v *Viewport) FitAll() bool {
	changed := v.state.Zoom != v.minZoom || v.state.OffsetX != 0
	v.state.Zoom = v.minZoom
	v.state.OffsetX = 0
	v.clampOffsets()
	return changed
}

// IsFitAll reports whether the viewport sits at minimum zoom.
func (v *Viewport) IsFitAll() bool {
	return v.state.Zoom <= v.minZoom
}

// SetPan sets both offsets, clamped to bounds. NaN leaves an axis unchanged.
func (v *Viewport) SetPan(x, y float64) bool {
	prevX, prevY := v.state.OffsetX, v.state.OffsetY
	if !math.IsNaN(x) {
		v.state.OffsetX = clamp(x, 0, v.maxOffsetX())
	}
	if !math.IsNaN(y) {
		v.state.OffsetY = clamp(y, 0, v.maxOffsetY())
	}
	return v.state.OffsetX != prevX || v.state.OffsetY != prevY
}

// SetPanX sets the horizontal offset only.
func (v *Viewport) SetPanX(x float64) bool { return v.SetPan(x, math.NaN()) }

// SetPanY sets the vertical offset only.
func (v *Viewport) SetPanY(y float64) bool { return v.SetPan(math.NaN(), y) }

// PanBy moves both offsets by a delta.
func (v *Viewport) PanBy(dx, dy float64) bool {
	return v.SetPan(v.state.OffsetX+dx, v.state.OffsetY+dy)
}

// Resize changes the display size. A fit-all view re-fits to the new width;
// a zoomed-in view keeps its zoom and only re-clamps offsets.
func (v *Viewport) Resize(width, height float64) error {
	if err := checkDimension(width, height); err != nil {
		return err
	}
	wasFit := v.IsFitAll()
	v.state.DisplayWidth = width
	v.state.DisplayHeight = height
	v.recomputeLimits()
	if wasFit {
		v.state.Zoom = v.minZoom
	} else {
		v.state.Zoom = clamp(v.state.Zoom, v.minZoom, v.maxZoom)
	}
	v.clampOffsets()
	return nil
}

// Bounds returns the visible time and depth window.
func (v *Viewport) Bounds() models.Bounds {
	s := v.state
	depthStart := int(math.Floor(s.OffsetY / v.rowHeight))
	depthEnd := int(math.Ceil((s.OffsetY+s.DisplayHeight)/v.rowHeight)) - 1
	if depthStart < 0 {
		depthStart = 0
	}
	if depthEnd > v.maxDepth {
		depthEnd = v.maxDepth
	}
	return models.Bounds{
		TimeStart:  s.OffsetX / s.Zoom,
		TimeEnd:    (s.OffsetX + s.DisplayWidth) / s.Zoom,
		DepthStart: depthStart,
		DepthEnd:   depthEnd,
	}
}

// State returns a copy of the current state.
func (v *Viewport) State() State { return v.state }

// Zoom returns the current scale in pixels per nanosecond.
func (v *Viewport) Zoom() float64 { return v.state.Zoom }

// OffsetX returns the horizontal pan in pixels.
func (v *Viewport) OffsetX() float64 { return v.state.OffsetX }

// OffsetY returns the vertical pan in pixels.
func (v *Viewport) OffsetY() float64 { return v.state.OffsetY }

// Width returns the display width in pixels.
func (v *Viewport) Width() float64 { return v.state.DisplayWidth }

// Height returns the display height in pixels.
func (v *Viewport) Height() float64 { return v.state.DisplayHeight }

// MinZoom returns the fit-all zoom.
func (v *Viewport) MinZoom() float64 { return v.minZoom }

// MaxZoom returns the zoom ceiling.
func (v *Viewport) MaxZoom() float64 { return v.maxZoom }

// TotalDuration returns the timeline length in nanoseconds.
func (v *Viewport) TotalDuration() float64 { return v.totalDuration }

// MaxDepth returns the deepest row index.
func (v *Viewport) MaxDepth() int { return v.maxDepth }

// RowHeight returns the height of one depth row in pixels.
func (v *Viewport) RowHeight() float64 { return v.rowHeight }

// EventCount returns the event count of the dataset the viewport is bound to, or 0.
func (v *Viewport) EventCount() int { return v.eventCount }

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
