package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"flametrace/pkg/models"
)

// Config is the root configuration.
type Config struct {
	FlameTrace FlameTraceConfig `yaml:"flametrace"`
}

// FlameTraceConfig is the project configuration.
type FlameTraceConfig struct {
	Index    IndexConfig    `yaml:"index"`
	Viewport ViewportConfig `yaml:"viewport"`
	Input    InputConfig    `yaml:"input"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Output   OutputConfig   `yaml:"output"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Theme    ThemeConfig    `yaml:"theme"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// IndexConfig tunes the event index and segment trees.
type IndexConfig struct {
	BranchingFactor  int      `yaml:"branching_factor"`
	MinSpanNs        float64  `yaml:"min_span_ns"`
	BucketPixelWidth float64  `yaml:"bucket_pixel_width"`
	MaxZoom          float64  `yaml:"max_zoom"` // px per ns
	RowHeight        float64  `yaml:"row_height"`
	HitMinWidth      *float64 `yaml:"hit_min_width"` // nil uses the default; 0 makes every event hittable
}

// ViewportConfig is the display used for batch frames.
type ViewportConfig struct {
	Width      float64   `yaml:"width"`
	Height     float64   `yaml:"height"`
	ZoomLevels []float64 `yaml:"zoom_levels"` // multipliers of fit-all zoom
}

// InputConfig controls the input reader.
type InputConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig controls Redis input.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// PipelineConfig controls pipeline behavior.
type PipelineConfig struct {
	Workers       int           `yaml:"workers"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// AlertsConfig controls degenerate-frame alerting.
type AlertsConfig struct {
	Enabled         bool              `yaml:"enabled"`
	Window          time.Duration     `yaml:"window"`
	MaxBucketShare  float64           `yaml:"max_bucket_share"`
	MinBucketEvents int               `yaml:"min_bucket_events"`
	Cooldown        time.Duration     `yaml:"cooldown"`
	Output          AlertOutputConfig `yaml:"output"`
}

// AlertOutputConfig controls the alert sink.
type AlertOutputConfig struct {
	Mode string           `yaml:"mode"` // file|http
	File FileOutputConfig `yaml:"file"`
	HTTP HTTPOutputConfig `yaml:"http"`
}

// OutputConfig controls the frame summary sink.
type OutputConfig struct {
	Mode       string                 `yaml:"mode"` // file|clickhouse
	File       FileOutputConfig       `yaml:"file"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
}

// ClickHouseOutputConfig config for native protocol batch inserts.
type ClickHouseOutputConfig struct {
	Addr     string        `yaml:"addr"`
	Database string        `yaml:"database"`
	Table    string        `yaml:"table"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Secure   bool          `yaml:"secure"`
	Timeout  time.Duration `yaml:"timeout"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// ThemeConfig overrides category colors.
type ThemeConfig struct {
	Overrides map[string]string `yaml:"overrides"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads, defaults and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config holding only defaults.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	f := &c.FlameTrace

	if f.Index.BranchingFactor == 0 {
		f.Index.BranchingFactor = 8
	}
	if f.Index.MinSpanNs == 0 {
		f.Index.MinSpanNs = 1
	}
	if f.Index.BucketPixelWidth == 0 {
		f.Index.BucketPixelWidth = 2
	}
	if f.Index.MaxZoom == 0 {
		f.Index.MaxZoom = 0.001
	}
	if f.Index.RowHeight == 0 {
		f.Index.RowHeight = 15
	}
	if f.Index.HitMinWidth == nil {
		hitMinWidth := 0.05
		f.Index.HitMinWidth = &hitMinWidth
	}

	if f.Viewport.Width == 0 {
		f.Viewport.Width = 1920
	}
	if f.Viewport.Height == 0 {
		f.Viewport.Height = 600
	}
	if len(f.Viewport.ZoomLevels) == 0 {
		f.Viewport.ZoomLevels = []float64{1, 10, 100}
	}

	if f.Input.Redis.Addr == "" {
		f.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if f.Input.Redis.Key == "" {
		f.Input.Redis.Key = "flametrace:traces"
	}
	if f.Input.Redis.BlockTimeout == 0 {
		f.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if f.Pipeline.Workers == 0 {
		f.Pipeline.Workers = 4
	}
	if f.Pipeline.BatchSize == 0 {
		f.Pipeline.BatchSize = 100
	}
	if f.Pipeline.FlushInterval == 0 {
		f.Pipeline.FlushInterval = 2 * time.Second
	}

	if f.Alerts.Window == 0 {
		f.Alerts.Window = 10 * time.Minute
	}
	if f.Alerts.MaxBucketShare == 0 {
		f.Alerts.MaxBucketShare = 0.5
	}
	if f.Alerts.MinBucketEvents == 0 {
		f.Alerts.MinBucketEvents = 1000
	}
	if f.Alerts.Cooldown == 0 {
		f.Alerts.Cooldown = 2 * time.Minute
	}
	if f.Alerts.Output.Mode == "" {
		f.Alerts.Output.Mode = "file"
	}
	if f.Alerts.Output.File.Path == "" {
		f.Alerts.Output.File.Path = "output/alerts.jsonl"
	}

	if f.Output.Mode == "" {
		f.Output.Mode = "file"
	}
	if f.Output.File.Path == "" {
		f.Output.File.Path = "output/frames.jsonl"
	}
	if f.Output.ClickHouse.Database == "" {
		f.Output.ClickHouse.Database = "default"
	}
	if f.Output.ClickHouse.Table == "" {
		f.Output.ClickHouse.Table = "frame_summaries"
	}

	if f.Metrics.ListenAddr == "" {
		f.Metrics.ListenAddr = ":9464"
	}

	if f.Logging.Level == "" {
		f.Logging.Level = "info"
	}
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	f := &c.FlameTrace

	if f.Index.BranchingFactor < 2 {
		return fmt.Errorf("index.branching_factor must be at least 2, got %d", f.Index.BranchingFactor)
	}
	if f.Index.MinSpanNs <= 0 {
		return fmt.Errorf("index.min_span_ns must be positive, got %g", f.Index.MinSpanNs)
	}
	if f.Index.BucketPixelWidth <= 0 {
		return fmt.Errorf("index.bucket_pixel_width must be positive, got %g", f.Index.BucketPixelWidth)
	}
	if f.Index.MaxZoom <= 0 {
		return fmt.Errorf("index.max_zoom must be positive, got %g", f.Index.MaxZoom)
	}
	if f.Index.RowHeight <= 0 {
		return fmt.Errorf("index.row_height must be positive, got %g", f.Index.RowHeight)
	}
	if f.Index.HitMinWidth != nil && *f.Index.HitMinWidth < 0 {
		return fmt.Errorf("index.hit_min_width must not be negative, got %g", *f.Index.HitMinWidth)
	}

	if f.Viewport.Width < 0 || f.Viewport.Height < 0 {
		return fmt.Errorf("viewport dimensions must not be negative, got %gx%g", f.Viewport.Width, f.Viewport.Height)
	}
	for _, z := range f.Viewport.ZoomLevels {
		if z < 1 {
			return fmt.Errorf("viewport.zoom_levels entries must be >= 1, got %g", z)
		}
	}

	if f.Alerts.MaxBucketShare <= 0 || f.Alerts.MaxBucketShare > 1 {
		return fmt.Errorf("alerts.max_bucket_share must be in (0, 1], got %g", f.Alerts.MaxBucketShare)
	}
	switch f.Alerts.Output.Mode {
	case "file":
	case "http":
		if f.Alerts.Enabled && f.Alerts.Output.HTTP.URL == "" {
			return fmt.Errorf("alerts.output.http.url is required for http mode")
		}
	default:
		return fmt.Errorf("unknown alerts.output.mode %q", f.Alerts.Output.Mode)
	}

	switch f.Output.Mode {
	case "file":
	case "clickhouse":
		if f.Output.ClickHouse.Addr == "" {
			return fmt.Errorf("output.clickhouse.addr is required for clickhouse mode")
		}
	default:
		return fmt.Errorf("unknown output.mode %q", f.Output.Mode)
	}

	for label := range f.Theme.Overrides {
		if _, err := models.ParseCategory(label); err != nil {
			return fmt.Errorf("theme.overrides: %w", err)
		}
	}
	return nil
}
