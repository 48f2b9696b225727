package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"flametrace/config"
	"flametrace/internal/output/framejson"
	"flametrace/internal/session"
	"flametrace/internal/transform/tracejson"
	"flametrace/pkg/models"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "Path to flametrace.yml (index tuning and viewport defaults)")
	inputs := pflag.StringSliceP("input", "i", nil, "Trace documents to sweep (repeatable or comma-separated)")
	output := pflag.StringP("output", "o", "output/sweep.jsonl", "Frame summary JSONL output path")
	levels := pflag.String("levels", "", "Comma-separated zoom multipliers of the fit-all zoom (default from config)")
	width := pflag.Float64("width", 0, "Display width in px (default from config)")
	height := pflag.Float64("height", 0, "Display height in px (default from config)")
	parallel := pflag.Int("parallel", 4, "Traces swept concurrently")
	pflag.Parse()

	if len(*inputs) == 0 {
		fmt.Fprintln(os.Stderr, "at least one --input is required")
		os.Exit(2)
	}
	cfg, _, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	zoomLevels := cfg.FlameTrace.Viewport.ZoomLevels
	if *levels != "" {
		zoomLevels, err = parseLevels(*levels)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --levels: %v\n", err)
			os.Exit(2)
		}
	}
	if *width == 0 {
		*width = cfg.FlameTrace.Viewport.Width
	}
	if *height == 0 {
		*height = cfg.FlameTrace.Viewport.Height
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	frames, events, err := sweep(ctx, *inputs, session.OptionsFromConfig(cfg), zoomLevels, *width, *height, *parallel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep failed: %v\n", err)
		os.Exit(1)
	}

	if err := writeFrames(*output, frames); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write frames: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("swept traces=%d events=%s frames=%d elapsed=%s output=%s\n",
		len(*inputs), humanize.Comma(int64(events)), len(frames), time.Since(start).Round(time.Millisecond), *output)
	for _, f := range frames {
		fmt.Printf("  %-24s %-6s visible=%-8s buckets=%-8s max/bucket=%-8s query=%s\n",
			f.TraceID, f.Label,
			humanize.Comma(int64(f.Stats.VisibleCount)),
			humanize.Comma(int64(f.Stats.BucketCount)),
			humanize.Comma(int64(f.Stats.MaxEventsPerBucket)),
			f.QueryTime)
	}
}

// sweep loads each trace and queries it at every zoom level. Output keeps input order.
func sweep(ctx context.Context, inputs []string, opts session.Options, levels []float64, width, height float64, parallel int) ([]models.FrameSummary, int, error) {
	perTrace := make([][]models.FrameSummary, len(inputs))
	counts := make([]int, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, path := range inputs {
		g.Go(func() error {
			doc, err := tracejson.LoadFile(path)
			if err != nil {
				return err
			}
			s := session.New(doc.ID, doc.Events, opts)
			frames, err := s.Sweep(ctx, width, height, levels)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			perTrace[i] = frames
			counts[i] = s.Tree().EventCount()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var out []models.FrameSummary
	total := 0
	for i := range perTrace {
		out = append(out, perTrace[i]...)
		total += counts[i]
	}
	return out, total, nil
}

func writeFrames(path string, frames []models.FrameSummary) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := framejson.NewStreamWriter(w).WriteFrames(frames); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func parseLevels(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		level, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		if level < 1 {
			return nil, fmt.Errorf("level %g is below fit-all", level)
		}
		out = append(out, level)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no levels given")
	}
	return out, nil
}
