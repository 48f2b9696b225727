package models

import "time"

// FrameStats summarizes one viewport query.
type FrameStats struct {
	VisibleCount       int `json:"visible_count"`
	BucketedEventCount int `json:"bucketed_event_count"`
	BucketCount        int `json:"bucket_count"`
	MaxEventsPerBucket int `json:"max_events_per_bucket"`
}

// FrameSummary is the host-facing record of one query against a loaded trace.
type FrameSummary struct {
	TraceID     string        `json:"trace_id"`
	Label       string        `json:"label"`
	EventCount  int           `json:"event_count"`
	Zoom        float64       `json:"zoom"`
	OffsetX     float64       `json:"offset_x"`
	OffsetY     float64       `json:"offset_y"`
	Width       float64       `json:"width"`
	Height      float64       `json:"height"`
	Bounds      Bounds        `json:"bounds"`
	Stats       FrameStats    `json:"stats"`
	QueryTime   time.Duration `json:"query_time_ns"`
	GeneratedAt time.Time     `json:"generated_at"`
}
