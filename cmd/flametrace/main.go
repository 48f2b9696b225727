package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"flametrace/config"
	"flametrace/internal/alerts"
	inputredis "flametrace/internal/input/redis"
	"flametrace/internal/logger"
	"flametrace/internal/output/alerthttp"
	"flametrace/internal/output/alertjson"
	"flametrace/internal/output/frameclickhouse"
	"flametrace/internal/output/framejson"
	"flametrace/internal/pipeline"
	"flametrace/internal/segtree"
	"flametrace/internal/session"
	"flametrace/internal/theme"
	"flametrace/internal/transform/tracejson"
	"flametrace/internal/viewport"
	"flametrace/pkg/models"
)

func runServe(args []string) int {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	configFlag := fs.StringP("config", "c", "", "Path to flametrace.yml")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	configArg := *configFlag
	if configArg == "" && fs.NArg() > 0 {
		configArg = fs.Arg(0)
	}

	cfg, configPath, err := config.LoadOrDefault(configArg)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}
	ft := cfg.FlameTrace

	if err := logger.Init(logger.Config{
		Enabled: ft.Logging.Enabled,
		Level:   ft.Logging.Level,
		File:    ft.Logging.File,
		Console: ft.Logging.Console,
	}); err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}
	defer logger.Close()

	logger.Infof("FlameTrace starting")
	if configPath != "" {
		logger.Infof("Config loaded from: %s", configPath)
	} else {
		logger.Infof("No config file found, using defaults")
	}

	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:         ft.Input.Redis.Addr,
		Password:     ft.Input.Redis.Password,
		DB:           ft.Input.Redis.DB,
		Key:          ft.Input.Redis.Key,
		BlockTimeout: ft.Input.Redis.BlockTimeout,
	})
	if err != nil {
		logger.Errorf("Failed to create Redis consumer: %v", err)
		return 1
	}

	var scorer *alerts.Scorer
	var alertWriter pipeline.AlertWriter
	if ft.Alerts.Enabled {
		scorer = alerts.NewScorer(alerts.Config{
			Window:          ft.Alerts.Window,
			MaxBucketShare:  ft.Alerts.MaxBucketShare,
			MinBucketEvents: ft.Alerts.MinBucketEvents,
			Cooldown:        ft.Alerts.Cooldown,
		})
		switch ft.Alerts.Output.Mode {
		case "file":
			w, err := alertjson.NewWriter(ft.Alerts.Output.File.Path)
			if err != nil {
				logger.Errorf("Failed to create alert file writer: %v", err)
				return 1
			}
			alertWriter = w
			logger.Infof("Alert output mode: file (%s)", ft.Alerts.Output.File.Path)
		case "http":
			w, err := alerthttp.NewWriter(alerthttp.Config{
				URL:     ft.Alerts.Output.HTTP.URL,
				Timeout: ft.Alerts.Output.HTTP.Timeout,
				Headers: ft.Alerts.Output.HTTP.Headers,
			})
			if err != nil {
				logger.Errorf("Failed to create alert HTTP writer: %v", err)
				return 1
			}
			alertWriter = w
			logger.Infof("Alert output mode: http (%s)", ft.Alerts.Output.HTTP.URL)
		}
	}

	var frameWriter pipeline.FrameWriter
	switch ft.Output.Mode {
	case "file":
		w, err := framejson.NewWriter(ft.Output.File.Path)
		if err != nil {
			logger.Errorf("Failed to create frame file writer: %v", err)
			return 1
		}
		frameWriter = w
		logger.Infof("Output mode: file (%s)", ft.Output.File.Path)
	case "clickhouse":
		ch := ft.Output.ClickHouse
		w, err := frameclickhouse.NewWriter(frameclickhouse.Config{
			Addr:     ch.Addr,
			Database: ch.Database,
			Table:    ch.Table,
			Username: ch.Username,
			Password: ch.Password,
			Secure:   ch.Secure,
			Timeout:  ch.Timeout,
		})
		if err != nil {
			logger.Errorf("Failed to create frame ClickHouse writer: %v", err)
			return 1
		}
		frameWriter = w
		logger.Infof("Output mode: clickhouse (%s/%s.%s)", ch.Addr, ch.Database, ch.Table)
	}

	pipe := pipeline.NewTracePipeline(consumer, frameWriter, scorer, alertWriter, pipeline.Options{
		Workers:       ft.Pipeline.Workers,
		BatchSize:     ft.Pipeline.BatchSize,
		FlushInterval: ft.Pipeline.FlushInterval,
		Session:       session.OptionsFromConfig(cfg),
		Width:         ft.Viewport.Width,
		Height:        ft.Viewport.Height,
		ZoomLevels:    ft.Viewport.ZoomLevels,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var srv *http.Server
	if ft.Metrics.Enabled {
		srv = &http.Server{
			Addr:              ft.Metrics.ListenAddr,
			Handler:           newRouter(consumer),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Infof("Metrics server listening on %s", ft.Metrics.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := pipe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warnf("Pipeline did not stop within 10s")
	}
	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}
	logger.Infof("FlameTrace stopped")
	return 0
}

// frameOutput is the JSON document printed by the query command.
type frameOutput struct {
	Summary      models.FrameSummary  `json:"summary"`
	Colors       map[string]string    `json:"colors"`
	VisibleRects map[string][]rectOut `json:"visible_rects"`
	Buckets      []bucketOut          `json:"buckets"`
}

type rectOut struct {
	segtree.Rect
	Y float64 `json:"y"`
}

func (r rectOut) MarshalJSON() ([]byte, error) {
	base, err := r.Rect.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	m["y"] = r.Y
	return json.Marshal(m)
}

type bucketOut struct {
	segtree.PixelBucket
	Y       float64 `json:"y"`
	Opacity float64 `json:"opacity"`
	Color   string  `json:"color"`
}

func buildFrameOutput(summary models.FrameSummary, res *segtree.Result, vp *viewport.Viewport, palette *theme.Palette) frameOutput {
	out := frameOutput{
		Summary:      summary,
		Colors:       make(map[string]string, models.NumCategories),
		VisibleRects: make(map[string][]rectOut, len(res.VisibleRects)),
		Buckets:      make([]bucketOut, 0, len(res.Buckets)),
	}
	for _, c := range models.Categories() {
		out.Colors[c.String()] = palette.Color(c)
	}
	for c, rects := range res.VisibleRects {
		list := make([]rectOut, 0, len(rects))
		for _, r := range rects {
			list = append(list, rectOut{Rect: r, Y: vp.DepthToScreenY(r.Depth)})
		}
		out.VisibleRects[c.String()] = list
	}
	for i := range res.Buckets {
		b := res.Buckets[i]
		out.Buckets = append(out.Buckets, bucketOut{
			PixelBucket: b,
			Y:           vp.DepthToScreenY(b.Depth),
			Opacity:     b.Opacity(),
			Color:       palette.Color(b.Dominant),
		})
	}
	return out
}

type viewFlags struct {
	configPath string
	input      string
	width      float64
	height     float64
	zoom       float64
	panX       float64
	panY       float64
}

func (v *viewFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&v.configPath, "config", "c", "", "Path to flametrace.yml")
	fs.StringVarP(&v.input, "input", "i", "", "Trace document (JSON)")
	fs.Float64Var(&v.width, "width", 0, "Display width in px (default from config)")
	fs.Float64Var(&v.height, "height", 0, "Display height in px (default from config)")
	fs.Float64Var(&v.zoom, "zoom", 0, "Zoom in px/ns; 0 fits the whole trace")
	fs.Float64Var(&v.panX, "pan-x", 0, "Horizontal offset in px")
	fs.Float64Var(&v.panY, "pan-y", 0, "Vertical offset in px")
}

// open loads config and trace, builds the session and positions a viewport.
func (v *viewFlags) open() (*config.Config, *session.Session, *viewport.Viewport, error) {
	if v.input == "" {
		return nil, nil, nil, fmt.Errorf("--input is required")
	}
	cfg, _, err := config.LoadOrDefault(v.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	doc, err := tracejson.LoadFile(v.input)
	if err != nil {
		return nil, nil, nil, err
	}

	width, height := v.width, v.height
	if width == 0 {
		width = cfg.FlameTrace.Viewport.Width
	}
	if height == 0 {
		height = cfg.FlameTrace.Viewport.Height
	}

	s := session.New(doc.ID, doc.Events, session.OptionsFromConfig(cfg))
	vp, err := s.NewViewport(width, height)
	if err != nil {
		return nil, nil, nil, err
	}
	if v.zoom > 0 {
		if _, err := vp.SetZoomAt(v.zoom, 0); err != nil {
			return nil, nil, nil, err
		}
	}
	vp.SetPan(v.panX, v.panY)
	return cfg, s, vp, nil
}

func runQuery(args []string, stdout io.Writer) int {
	fs := pflag.NewFlagSet("query", pflag.ContinueOnError)
	var vf viewFlags
	vf.register(fs)
	output := fs.StringP("output", "o", "", "Write the frame JSON here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, s, vp, err := vf.open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		return 1
	}
	palette, err := theme.NewPalette(cfg.FlameTrace.Theme.Overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		return 1
	}

	res, summary, err := s.Frame("query", vp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		return 1
	}
	doc := buildFrameOutput(summary, res, vp, palette)

	w := stdout
	if *output != "" {
		if dir := filepath.Dir(*output); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				fmt.Fprintf(os.Stderr, "query: create output directory: %v\n", err)
				return 1
			}
		}
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "query: create output file: %v\n", err)
			return 1
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		fmt.Fprintf(os.Stderr, "query: encode frame: %v\n", err)
		return 1
	}
	if *output != "" {
		fmt.Fprintf(stdout, "frame events=%s visible=%s bucketed=%s buckets=%s query=%s output=%s\n",
			humanize.Comma(int64(summary.EventCount)),
			humanize.Comma(int64(summary.Stats.VisibleCount)),
			humanize.Comma(int64(summary.Stats.BucketedEventCount)),
			humanize.Comma(int64(summary.Stats.BucketCount)),
			summary.QueryTime,
			*output,
		)
	}
	return 0
}

type hitOutput struct {
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Depth int       `json:"depth"`
	Hit   bool      `json:"hit"`
	Event *hitEvent `json:"event,omitempty"`
}

type hitEvent struct {
	Timestamp int64           `json:"timestamp"`
	ExitStamp int64           `json:"exit_stamp"`
	Duration  models.Duration `json:"duration"`
	Category  models.Category `json:"category"`
	Text      string          `json:"text,omitempty"`
	Children  int             `json:"children"`
}

func runHit(args []string, stdout io.Writer) int {
	fs := pflag.NewFlagSet("hit", pflag.ContinueOnError)
	var vf viewFlags
	vf.register(fs)
	x := fs.Float64("x", 0, "Pointer x in px")
	y := fs.Float64("y", 0, "Pointer y in px")
	depth := fs.Int("depth", -1, "Search this depth instead of deriving it from y")
	exact := fs.Bool("exact", false, "Ignore the minimum rendered width")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_, s, vp, err := vf.open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hit: %v\n", err)
		return 1
	}

	out := hitOutput{X: *x, Y: *y}
	var e *models.Event
	if *depth >= 0 {
		out.Depth = *depth
		e = s.Index().FindEventAtDepth(*x, vp, *depth, *exact)
	} else {
		out.Depth = vp.ScreenYToDepth(*y)
		if *exact {
			e = s.Index().FindEventAtPosition(*x, *y, vp, true)
		} else {
			e = s.HitTest(vp, *x, *y)
		}
	}
	if e != nil {
		out.Hit = true
		out.Event = &hitEvent{
			Timestamp: e.Timestamp,
			ExitStamp: e.ExitStamp(),
			Duration:  e.Duration,
			Category:  e.Category,
			Text:      e.Text,
			Children:  len(e.Children),
		}
	}
	enc := json.NewEncoder(stdout)
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "hit: encode result: %v\n", err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: flametrace <command> [flags]

commands:
  serve [config]   consume traces from Redis and write frame summaries
  query            render one frame of a trace file as JSON
  hit              resolve a pointer position to an event
`)
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			os.Exit(runServe(os.Args[2:]))
		case "query":
			os.Exit(runQuery(os.Args[2:], os.Stdout))
		case "hit":
			os.Exit(runHit(os.Args[2:], os.Stdout))
		case "-h", "--help", "help":
			usage()
			return
		default:
			// First arg is a config path.
			os.Exit(runServe(os.Args[1:]))
		}
	}

	os.Exit(runServe(nil))
}
