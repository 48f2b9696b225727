package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"flametrace/config"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.FlameTrace.Index.BranchingFactor = 4
	hitMinWidth := 0.5
	cfg.FlameTrace.Index.HitMinWidth = &hitMinWidth
	cfg.FlameTrace.Alerts.MaxBucketShare = 0.8

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 4, opts.Tree.BranchingFactor)
	assert.Equal(t, 0.5, opts.HitMinWidth)
	assert.Equal(t, 0.8, opts.DegenerateShare)
	assert.Equal(t, cfg.FlameTrace.Index.MaxZoom, opts.Viewport.MaxZoom)
	assert.Equal(t, cfg.FlameTrace.Index.RowHeight, opts.Viewport.RowHeight)

	zero := 0.0
	cfg.FlameTrace.Index.HitMinWidth = &zero
	assert.Zero(t, OptionsFromConfig(cfg).HitMinWidth)

	cfg.FlameTrace.Index.HitMinWidth = nil
	assert.Equal(t, DefaultOptions().HitMinWidth, OptionsFromConfig(cfg).HitMinWidth)
}
