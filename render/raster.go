package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// maxPixels bounds a single bitmap at the default 2x scale with a generous margin.
const maxPixels = 16384 * 16384

// RasterOptions control one rasterization.
type RasterOptions struct {
	Scale            float64     // Device pixels per logical unit
	Background       color.Color // Fill behind everything
	AllowCrossOrigin bool        // Paint images loaded from remote origins
}

// Rasterizer converts a mounted receipt tree into pixels.
type Rasterizer interface {
	Rasterize(tree *Tree, opts RasterOptions) (*image.NRGBA, error)
}

// Bitmap is a rendered receipt.
type Bitmap struct {
	Image *image.NRGBA
}

// PNG encodes the bitmap for a download or the clipboard.
func (b *Bitmap) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, b.Image, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Painter is the default Rasterizer. Faces are shared, so paints are
// serialized.
type Painter struct {
	Faces *Faces

	mu sync.Mutex
}

func NewPainter(faces *Faces) *Painter {
	return &Painter{Faces: faces}
}

func (p *Painter) Rasterize(tree *Tree, opts RasterOptions) (*image.NRGBA, error) {
	if tree == nil {
		return nil, errors.New("nothing mounted")
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.Background == nil {
		opts.Background = color.White
	}

	w := int(math.Ceil(float64(tree.Width) * opts.Scale))
	h := int(math.Ceil(float64(tree.Height) * opts.Scale))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty receipt %dx%d", w, h)
	}
	if w*h > maxPixels {
		return nil, fmt.Errorf("receipt %dx%d exceeds the bitmap limit", w, h)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	dst := imaging.New(w, h, opts.Background)
	for _, el := range tree.Elements {
		if el.Hidden {
			continue
		}
		r := scaleRect(el.Rect, opts.Scale)
		switch el.Kind {
		case KindBox, KindRule:
			draw.Draw(dst, r, image.NewUniform(el.Fill), image.Point{}, draw.Over)
		case KindImage:
			if el.Image == nil || (el.Remote && !opts.AllowCrossOrigin) {
				continue
			}
			drawImage(dst, r, el.Image)
		case KindText:
			if err := p.drawText(dst, r, el, opts.Scale); err != nil {
				return nil, err
			}
		}
	}
	return dst, nil
}

// drawImage fits img inside r, keeping its aspect ratio, and centers it.
func drawImage(dst *image.NRGBA, r image.Rectangle, img image.Image) {
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return
	}
	fitted := imaging.Fit(img, r.Dx(), r.Dy(), imaging.Lanczos)
	b := fitted.Bounds()
	at := image.Pt(r.Min.X+(r.Dx()-b.Dx())/2, r.Min.Y+(r.Dy()-b.Dy())/2)
	draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(b.Size())}, fitted, b.Min, draw.Over)
}

func (p *Painter) drawText(dst *image.NRGBA, r image.Rectangle, el Element, scale float64) error {
	if el.Text == "" {
		return nil
	}
	face, err := p.Faces.Face(el.Size*scale, el.Bold)
	if err != nil {
		return err
	}

	text := truncate(face, el.Text, r.Dx())
	width := font.MeasureString(face, text).Ceil()
	x := r.Min.X
	switch el.Align {
	case AlignCenter:
		x += (r.Dx() - width) / 2
	case AlignRight:
		x = r.Max.X - width
	}
	m := face.Metrics()
	baseline := r.Min.Y + (r.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2

	col := el.Color
	if col == nil {
		col = color.Black
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
	return nil
}

// truncate shortens s with an ellipsis until it fits maxWidth pixels.
func truncate(face font.Face, s string, maxWidth int) string {
	if font.MeasureString(face, s).Ceil() <= maxWidth {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		t := string(runes) + "…"
		if font.MeasureString(face, t).Ceil() <= maxWidth {
			return t
		}
	}
	return ""
}

func scaleRect(r image.Rectangle, scale float64) image.Rectangle {
	return image.Rect(
		int(math.Round(float64(r.Min.X)*scale)),
		int(math.Round(float64(r.Min.Y)*scale)),
		int(math.Round(float64(r.Max.X)*scale)),
		int(math.Round(float64(r.Max.Y)*scale)),
	)
}
