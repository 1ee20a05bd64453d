package render

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/charmbracelet/log"

	"tuition-receipts-go/models"
)

// Options tune the receipt pipeline.
type Options struct {
	Width            int           // Logical receipt width
	Scale            float64       // Pixel density of the bitmap
	Grace            time.Duration // Extra wait after the frame for late images
	Timeout          time.Duration // Upper bound on waiting for the mount
	AllowCrossOrigin bool
	Background       color.Color
}

// DefaultOptions match the receipt design: 1080 wide at 2x, 80ms grace, 3s bound.
func DefaultOptions() Options {
	return Options{
		Width:            1080,
		Scale:            2,
		Grace:            80 * time.Millisecond,
		Timeout:          3 * time.Second,
		AllowCrossOrigin: true,
		Background:       color.White,
	}
}

// Content is the part of every receipt that does not depend on the student.
type Content struct {
	Bank      models.BankInfo
	Texts     Texts
	LogoRef   string
	QRRef     string
	QRPayload string
}

// Pipeline renders one student's receipt off-screen and rasterizes it.
type Pipeline struct {
	scratch *Scratch
	mounter Mounter
	frames  FrameClock
	raster  Rasterizer
	content Content
	opts    Options
}

func NewPipeline(mounter Mounter, raster Rasterizer, frames FrameClock, content Content, opts Options) *Pipeline {
	return &Pipeline{
		scratch: NewScratch(opts.Width, mounter),
		mounter: mounter,
		frames:  frames,
		raster:  raster,
		content: content,
		opts:    opts,
	}
}

// Markup builds the receipt markup for a student.
func (p *Pipeline) Markup(s models.StudentRecord) Markup {
	return Markup{
		Student:   s,
		Bank:      p.content.Bank,
		Texts:     p.content.Texts,
		LogoRef:   p.content.LogoRef,
		QRRef:     p.content.QRRef,
		QRPayload: p.content.QRPayload,
	}
}

// Scratch exposes the off-screen surface, mainly so callers can check that
// nothing was left mounted.
func (p *Pipeline) Scratch() *Scratch {
	return p.scratch
}

// Render mounts the receipt off-screen, waits until its root exists, lets one
// frame and the grace delay pass, and rasterizes it. If the root does not
// appear within the timeout, whatever is present is rasterized once; if
// nothing is, ErrReceiptNotFound is returned. A mount that fails outright
// returns ErrReceiptNotFound at once. The surface is released on every path.
func (p *Pipeline) Render(ctx context.Context, s models.StudentRecord) (*Bitmap, error) {
	surf, err := p.scratch.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.scratch.Release(surf)

	surf.Mount(p.Markup(s))

	timeout := time.NewTimer(p.opts.Timeout)
	defer timeout.Stop()

	select {
	case <-surf.Mounted():
		if err := surf.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReceiptNotFound, err)
		}
		if err := p.settle(ctx); err != nil {
			return nil, err
		}
		return p.rasterize(surf.Root(), p.opts.Scale)
	case <-timeout.C:
		root := surf.Root()
		if root == nil {
			log.Warn("Receipt did not mount in time", "student", s.Name, "timeout", p.opts.Timeout)
			return nil, ErrReceiptNotFound
		}
		return p.rasterize(root, p.opts.Scale)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// settle waits for the next frame boundary plus the grace delay.
func (p *Pipeline) settle(ctx context.Context) error {
	select {
	case <-p.frames.NextFrame():
	case <-ctx.Done():
		return ctx.Err()
	}
	if p.opts.Grace <= 0 {
		return nil
	}
	grace := time.NewTimer(p.opts.Grace)
	defer grace.Stop()
	select {
	case <-grace.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) rasterize(tree *Tree, scale float64) (*Bitmap, error) {
	if tree == nil {
		return nil, ErrReceiptNotFound
	}
	img, err := p.raster.Rasterize(tree, RasterOptions{
		Scale:            scale,
		Background:       p.opts.Background,
		AllowCrossOrigin: p.opts.AllowCrossOrigin,
	})
	if err != nil {
		return nil, &RasterError{Err: err}
	}
	return &Bitmap{Image: img}, nil
}

// OpenPreview mounts a receipt on-screen for the preview modal, sized to the
// given viewport. The preview does not use the off-screen surface.
func (p *Pipeline) OpenPreview(ctx context.Context, s models.StudentRecord, viewportW, viewportH float64) (*Preview, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	tree, err := p.mounter.Mount(ctx, p.Markup(s))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}
	pv := &Preview{
		Student:  s,
		tree:     tree,
		pipeline: p,
		scale:    1,
	}
	pv.Resize(viewportW, viewportH)
	return pv, nil
}
