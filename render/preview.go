package render

import (
	"math"
	"sync"

	"tuition-receipts-go/models"
)

// FitScale is the display scale that fits a width x height receipt into 90% of
// the viewport, leaving room for the modal chrome. It never enlarges.
func FitScale(viewportW, viewportH float64, width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 1
	}
	sx := (viewportW*0.9 - 40) / float64(width)
	sy := (viewportH*0.9 - 140) / float64(height)
	s := math.Min(math.Min(sx, sy), 1)
	if s <= 0 {
		// Viewport too small for the chrome; keep something visible.
		return 0.1
	}
	return s
}

// Preview is a receipt mounted on-screen inside the modal. It is shown
// scaled down to fit the viewport.
type Preview struct {
	Student models.StudentRecord

	tree     *Tree
	pipeline *Pipeline

	mu    sync.Mutex
	scale float64
}

// Resize recomputes the display scale for a new viewport.
func (p *Preview) Resize(viewportW, viewportH float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scale = FitScale(viewportW, viewportH, p.tree.Width, p.tree.Height)
}

// Scale is the current display scale.
func (p *Preview) Scale() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scale
}

// Tree is the mounted receipt.
func (p *Preview) Tree() *Tree {
	return p.tree
}

// Display renders the receipt as the modal shows it.
func (p *Preview) Display() (*Bitmap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pipeline.rasterize(p.tree, p.scale)
}

// Capture rasterizes the receipt at full resolution. The display scale is set
// to 1 for the capture and put back afterwards, whether or not it succeeds.
func (p *Preview) Capture() (*Bitmap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.scale
	p.scale = 1
	defer func() { p.scale = prev }()

	return p.pipeline.rasterize(p.tree, p.pipeline.opts.Scale*p.scale)
}
