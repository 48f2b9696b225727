package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"flametrace/pkg/models"
)

// Config controls alert scoring behavior.
type Config struct {
	// Window bounds how long per-trace state is remembered after its last frame.
	Window time.Duration
	// MaxBucketShare is the fraction of frame events one bucket must hold to alert.
	MaxBucketShare float64
	// MinBucketEvents is the bucket population below which frames never alert.
	MinBucketEvents int
	Cooldown        time.Duration
}

// Scorer flags frames where a single pixel bucket swallows most of the visible events.
type Scorer struct {
	mu      sync.Mutex
	cfg     Config
	byTrace map[string]*traceState
	clock   clockwork.Clock
}

type traceState struct {
	lastSeen  time.Time
	lastAlert time.Time
}

// NewScorer creates a new scorer on the wall clock.
func NewScorer(cfg Config) *Scorer {
	return NewScorerWithClock(cfg, clockwork.NewRealClock())
}

// NewScorerWithClock creates a scorer driven by clock.
func NewScorerWithClock(cfg Config, clock clockwork.Clock) *Scorer {
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Minute
	}
	if cfg.MaxBucketShare <= 0 || cfg.MaxBucketShare > 1 {
		cfg.MaxBucketShare = 0.5
	}
	if cfg.MinBucketEvents <= 0 {
		cfg.MinBucketEvents = 1000
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Minute
	}
	return &Scorer{
		cfg:     cfg,
		byTrace: make(map[string]*traceState),
		clock:   clock,
	}
}

// Score ingests frame summaries and returns alerts for the degenerate ones.
func (s *Scorer) Score(frames []models.FrameSummary) []*models.Alert {
	if len(frames) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.prune(now)

	var out []*models.Alert
	for _, f := range frames {
		if f.TraceID == "" {
			continue
		}
		state := s.byTrace[f.TraceID]
		if state == nil {
			state = &traceState{}
			s.byTrace[f.TraceID] = state
		}
		state.lastSeen = now

		share, ok := s.degenerate(f.Stats)
		if !ok {
			continue
		}
		if !state.lastAlert.IsZero() && now.Sub(state.lastAlert) < s.cfg.Cooldown {
			continue
		}

		out = append(out, &models.Alert{
			AlertID:     uuid.NewString(),
			TraceID:     f.TraceID,
			Frame:       f.Label,
			Reason:      fmt.Sprintf("one bucket holds %d of %d visible events", f.Stats.MaxEventsPerBucket, visibleEvents(f.Stats)),
			BucketShare: share,
			RaisedAt:    now,
			Summary:     f,
		})
		state.lastAlert = now
	}
	return out
}

func (s *Scorer) degenerate(st models.FrameStats) (float64, bool) {
	total := visibleEvents(st)
	if total == 0 || st.MaxEventsPerBucket < s.cfg.MinBucketEvents {
		return 0, false
	}
	share := float64(st.MaxEventsPerBucket) / float64(total)
	return share, share >= s.cfg.MaxBucketShare
}

func (s *Scorer) prune(now time.Time) {
	cutoff := now.Add(-s.cfg.Window)
	for id, state := range s.byTrace {
		if state.lastSeen.Before(cutoff) {
			delete(s.byTrace, id)
		}
	}
}

// Tracked returns the number of traces with live state.
func (s *Scorer) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byTrace)
}

func visibleEvents(st models.FrameStats) int {
	return st.VisibleCount + st.BucketedEventCount
}
