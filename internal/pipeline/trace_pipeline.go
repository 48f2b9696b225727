package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flametrace/internal/alerts"
	"flametrace/internal/logger"
	"flametrace/internal/metrics"
	"flametrace/internal/session"
	"flametrace/internal/transform/tracejson"
	"flametrace/pkg/models"
)

// Options controls worker fan-out, batching and the frames planned per trace.
type Options struct {
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
	RetryInterval time.Duration

	Session    session.Options
	Width      float64
	Height     float64
	ZoomLevels []float64
}

// TracePipeline consumes trace documents, builds a session per trace and
// writes one frame summary per configured zoom level.
type TracePipeline struct {
	source      Source
	writer      FrameWriter
	scorer      *alerts.Scorer
	alertWriter AlertWriter
	opts        Options
}

type workItem struct {
	frames []models.FrameSummary
}

// NewTracePipeline creates a pipeline. scorer and alertWriter may be nil.
func NewTracePipeline(source Source, writer FrameWriter, scorer *alerts.Scorer, alertWriter AlertWriter, opts Options) *TracePipeline {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	if opts.Width <= 0 {
		opts.Width = 1920
	}
	if opts.Height <= 0 {
		opts.Height = 600
	}
	if len(opts.ZoomLevels) == 0 {
		opts.ZoomLevels = []float64{1}
	}
	return &TracePipeline{
		source:      source,
		writer:      writer,
		scorer:      scorer,
		alertWriter: alertWriter,
		opts:        opts,
	}
}

// Run starts the pipeline loop and blocks until ctx is cancelled.
func (p *TracePipeline) Run(ctx context.Context) error {
	logger.Infof("Trace pipeline started: workers=%d batch=%d levels=%v", p.opts.Workers, p.opts.BatchSize, p.opts.ZoomLevels)

	msgCh := make(chan []byte, p.opts.Workers*4)
	workCh := make(chan workItem, p.opts.Workers*4)

	go func() {
		p.readLoop(ctx, msgCh)
		close(msgCh)
	}()

	var workers sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			p.workerLoop(ctx, msgCh, workCh)
		}()
	}
	go func() {
		workers.Wait()
		close(workCh)
	}()

	p.writeLoop(ctx, workCh)
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *TracePipeline) Close() error {
	if p.alertWriter != nil {
		if err := p.alertWriter.Close(); err != nil {
			logger.Errorf("Failed to close alert writer: %v", err)
		}
	}
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			logger.Errorf("Failed to close frame writer: %v", err)
		}
	}
	if p.source != nil {
		return p.source.Close()
	}
	return nil
}

func (p *TracePipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		payload, err := p.source.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop trace: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if payload == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (p *TracePipeline) workerLoop(ctx context.Context, in <-chan []byte, out chan<- workItem) {
	for payload := range in {
		frames, err := p.process(ctx, payload)
		metrics.ObserveTrace(err)
		if err != nil {
			logger.Warnf("Failed to process trace: %v", err)
			continue
		}
		select {
		case out <- workItem{frames: frames}:
		case <-ctx.Done():
			return
		}
	}
}

// process decodes one payload and sweeps the configured zoom levels over it.
func (p *TracePipeline) process(ctx context.Context, payload []byte) ([]models.FrameSummary, error) {
	doc, err := tracejson.Parse(payload)
	if err != nil {
		return nil, err
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("trace document has no id")
	}
	s := session.New(doc.ID, doc.Events, p.opts.Session)
	return s.Sweep(ctx, p.opts.Width, p.opts.Height, p.opts.ZoomLevels)
}

func (p *TracePipeline) writeLoop(ctx context.Context, in <-chan workItem) {
	ticker := time.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()

	var batchFrames []models.FrameSummary
	var batchAlerts []*models.Alert

	flush := func() {
		if len(batchFrames) > 0 {
			if !p.retry(ctx, "frames", func() error { return p.writer.WriteFrames(batchFrames) }) {
				return
			}
			batchFrames = nil
		}
		if p.alertWriter != nil && len(batchAlerts) > 0 {
			if !p.retry(ctx, "alerts", func() error { return p.alertWriter.WriteAlerts(batchAlerts) }) {
				return
			}
			batchAlerts = nil
		}
	}

	accept := func(item workItem) {
		if len(item.frames) == 0 {
			return
		}
		batchFrames = append(batchFrames, item.frames...)
		if p.scorer != nil {
			raised := p.scorer.Score(item.frames)
			if len(raised) > 0 {
				metrics.ObserveAlerts(len(raised))
				batchAlerts = append(batchAlerts, raised...)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			drain(in, accept)
			flush()
			return
		case <-ticker.C:
			flush()
		case item, ok := <-in:
			if !ok {
				flush()
				return
			}
			accept(item)
			if len(batchFrames) >= p.opts.BatchSize {
				flush()
			}
		}
	}
}

// drain hands work already queued when shutdown began to accept.
func drain(in <-chan workItem, accept func(workItem)) {
	for {
		select {
		case item, ok := <-in:
			if !ok {
				return
			}
			accept(item)
		default:
			return
		}
	}
}

// retry repeats write until it succeeds. On cancellation it makes one last
// attempt and reports whether the batch was written.
func (p *TracePipeline) retry(ctx context.Context, what string, write func() error) bool {
	for {
		err := write()
		if err == nil {
			return true
		}
		logger.Errorf("Failed to write %s: %v", what, err)
		if ctx.Err() != nil {
			return false
		}
		select {
		case <-ctx.Done():
			return write() == nil
		case <-time.After(p.opts.RetryInterval):
		}
	}
}
