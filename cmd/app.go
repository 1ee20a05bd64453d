package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/go-redis/redis/v8"

	"tuition-receipts-go/config"
	"tuition-receipts-go/db"
	"tuition-receipts-go/export"
	"tuition-receipts-go/payments"
	"tuition-receipts-go/render"
)

// app is the set of components every command builds from the config.
type app struct {
	cfg       *config.Config
	store     payments.Store
	redis     *redis.Client
	pipeline  *render.Pipeline
	pdf       *export.PDFRenderer
	clipboard export.Clipboard
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	switch cfg.Store.Kind {
	case "redis":
		client, err := db.InitializeRedisClient(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.store = db.NewRedisService(client, cfg.Store.KeyPrefix)
	default:
		a.store = payments.NewMemoryStore()
	}

	faces, err := render.LoadFaces(cfg.Receipt.FontRegular, cfg.Receipt.FontBold)
	if err != nil {
		a.close()
		return nil, err
	}
	mounter := &render.Renderer{
		Assets: render.NewAssetLoader(cfg.Render.AssetTimeout),
		Width:  cfg.Render.Width,
	}
	a.pipeline = render.NewPipeline(mounter, render.NewPainter(faces), render.NewFrameClock(cfg.Render.FrameInterval),
		cfg.Content(), cfg.RenderOptions())
	a.pdf = &export.PDFRenderer{
		Content:     cfg.Content(),
		FontRegular: cfg.Receipt.FontRegular,
		FontBold:    cfg.Receipt.FontBold,
	}

	a.clipboard, err = export.NewClipboard(cfg.Clipboard)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) orchestrator(notify export.Notifier) (*export.Orchestrator, error) {
	format, err := export.ParseFormat(a.cfg.Export.Format)
	if err != nil {
		return nil, err
	}
	return export.NewOrchestrator(a.pipeline, a.pdf, a.clipboard, notify, export.Options{
		Pacing:       a.cfg.Export.Pacing,
		ToastWindow:  a.cfg.Export.ToastWindow,
		CopiedWindow: a.cfg.Export.CopiedWindow,
		Format:       format,
		QueueSize:    a.cfg.Export.QueueSize,
		JobRetention: a.cfg.Export.JobRetention,
	}), nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}
}

func describeStore(cfg *config.Config) string {
	if cfg.Store.Kind == "redis" {
		return fmt.Sprintf("redis %s/%d", cfg.Store.RedisAddr, cfg.Store.RedisDB)
	}
	return "memory"
}
