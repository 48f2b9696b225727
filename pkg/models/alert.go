package models

import "time"

// Alert describes a frame whose buckets absorbed a disproportionate share of events.
type Alert struct {
	AlertID     string       `json:"alert_id"`
	TraceID     string       `json:"trace_id"`
	Frame       string       `json:"frame"`
	Reason      string       `json:"reason"`
	BucketShare float64      `json:"bucket_share"`
	RaisedAt    time.Time    `json:"raised_at"`
	Summary     FrameSummary `json:"summary"`
}
