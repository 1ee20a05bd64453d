// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tuition-receipts-go/ledger"
	"tuition-receipts-go/models"
	"tuition-receipts-go/render"
)

// Config is the whole config.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Layout    ledger.Layout   `yaml:"layout"`
	Bank      models.BankInfo `yaml:"bank"`
	Receipt   ReceiptConfig   `yaml:"receipt"`
	Render    RenderConfig    `yaml:"render"`
	Export    ExportConfig    `yaml:"export"`
	Clipboard string          `yaml:"clipboard"` // system, memory or none
	LogLevel  string          `yaml:"log_level"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Websocket origins; empty allows any
	MaxUploadMB    int64    `yaml:"max_upload_mb"`
}

// StoreConfig picks where payment state lives.
type StoreConfig struct {
	Kind          string `yaml:"kind"` // memory or redis
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

type ReceiptConfig struct {
	render.Texts `yaml:",inline"`
	Logo         string `yaml:"logo"`
	QR           string `yaml:"qr"`
	QRPayload    string `yaml:"qr_payload"`
	FontRegular  string `yaml:"font_regular"`
	FontBold     string `yaml:"font_bold"`
}

type RenderConfig struct {
	Width            int           `yaml:"width"`
	Scale            float64       `yaml:"scale"`
	Grace            time.Duration `yaml:"grace"`
	Timeout          time.Duration `yaml:"timeout"`
	FrameInterval    time.Duration `yaml:"frame_interval"`
	AssetTimeout     time.Duration `yaml:"asset_timeout"`
	AllowCrossOrigin *bool         `yaml:"allow_cross_origin"`
}

type ExportConfig struct {
	OutputDir    string        `yaml:"output_dir"`
	Pacing       time.Duration `yaml:"pacing"`
	ToastWindow  time.Duration `yaml:"toast_window"`
	CopiedWindow time.Duration `yaml:"copied_window"`
	Format       string        `yaml:"format"`
	QueueSize    int           `yaml:"queue_size"`
	JobRetention time.Duration `yaml:"job_retention"` // Finished exports are forgotten after this
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads path and fills in defaults. A missing file is not an error when
// allowMissing is set; the defaults are returned instead.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Keys absent from the file keep their defaults.
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 10
	}
	if c.Store.Kind == "" {
		c.Store.Kind = "memory"
	}
	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = "localhost:6379"
	}
	if c.Layout == (ledger.Layout{}) {
		c.Layout = ledger.DefaultLayout()
	}
	if c.Receipt.Texts == (render.Texts{}) {
		c.Receipt.Texts = render.DefaultTexts()
	}

	opts := render.DefaultOptions()
	if c.Render.Width == 0 {
		c.Render.Width = opts.Width
	}
	if c.Render.Scale == 0 {
		c.Render.Scale = opts.Scale
	}
	if c.Render.Grace == 0 {
		c.Render.Grace = opts.Grace
	}
	if c.Render.Timeout == 0 {
		c.Render.Timeout = opts.Timeout
	}
	if c.Render.FrameInterval == 0 {
		c.Render.FrameInterval = time.Second / 60
	}
	if c.Render.AssetTimeout == 0 {
		c.Render.AssetTimeout = 5 * time.Second
	}
	if c.Render.AllowCrossOrigin == nil {
		allow := opts.AllowCrossOrigin
		c.Render.AllowCrossOrigin = &allow
	}

	if c.Export.OutputDir == "" {
		c.Export.OutputDir = "receipts"
	}
	if c.Export.Pacing == 0 {
		c.Export.Pacing = 200 * time.Millisecond
	}
	if c.Export.ToastWindow == 0 {
		c.Export.ToastWindow = 2 * time.Second
	}
	if c.Export.CopiedWindow == 0 {
		c.Export.CopiedWindow = 2 * time.Second
	}
	if c.Export.Format == "" {
		c.Export.Format = "png"
	}
	if c.Export.QueueSize == 0 {
		c.Export.QueueSize = 16
	}
	if c.Export.JobRetention == 0 {
		c.Export.JobRetention = 10 * time.Minute
	}
	if c.Clipboard == "" {
		c.Clipboard = "memory"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Kind {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("store.kind must be memory or redis, got %q", c.Store.Kind))
	}
	if err := c.Layout.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("layout: %w", err))
	}
	if c.Render.Width <= 0 || c.Render.Scale <= 0 {
		errs = append(errs, fmt.Errorf("render width and scale must be positive"))
	}
	if c.Render.Timeout < 0 || c.Render.Grace < 0 {
		errs = append(errs, fmt.Errorf("render durations must not be negative"))
	}
	switch c.Export.Format {
	case "png", "pdf":
	default:
		errs = append(errs, fmt.Errorf("export.format must be png or pdf, got %q", c.Export.Format))
	}
	switch c.Clipboard {
	case "system", "memory", "none":
	default:
		errs = append(errs, fmt.Errorf("clipboard must be system, memory or none, got %q", c.Clipboard))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// RenderOptions converts the render section for the pipeline.
func (c *Config) RenderOptions() render.Options {
	opts := render.DefaultOptions()
	opts.Width = c.Render.Width
	opts.Scale = c.Render.Scale
	opts.Grace = c.Render.Grace
	opts.Timeout = c.Render.Timeout
	if c.Render.AllowCrossOrigin != nil {
		opts.AllowCrossOrigin = *c.Render.AllowCrossOrigin
	}
	return opts
}

// Content is the student-independent receipt content.
func (c *Config) Content() render.Content {
	return render.Content{
		Bank:      c.Bank,
		Texts:     c.Receipt.Texts,
		LogoRef:   c.Receipt.Logo,
		QRRef:     c.Receipt.QR,
		QRPayload: c.Receipt.QRPayload,
	}
}
