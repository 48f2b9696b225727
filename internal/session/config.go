package session

import (
	"flametrace/config"
	"flametrace/internal/segtree"
	"flametrace/internal/viewport"
)

// OptionsFromConfig maps the index and alert sections of cfg onto session options.
func OptionsFromConfig(cfg *config.Config) Options {
	idx := cfg.FlameTrace.Index
	opts := DefaultOptions()
	opts.Tree = segtree.Options{
		BranchingFactor:  idx.BranchingFactor,
		MinSpan:          idx.MinSpanNs,
		BucketPixelWidth: idx.BucketPixelWidth,
	}
	opts.Viewport = viewport.Options{
		MaxZoom:   idx.MaxZoom,
		RowHeight: idx.RowHeight,
	}
	if idx.HitMinWidth != nil {
		opts.HitMinWidth = *idx.HitMinWidth
	}
	if cfg.FlameTrace.Alerts.MaxBucketShare > 0 {
		opts.DegenerateShare = cfg.FlameTrace.Alerts.MaxBucketShare
	}
	return opts
}
