package render

import (
	"image"
	"image/color"
)

// ElementKind says how the painter draws an element.
type ElementKind int

const (
	KindBox ElementKind = iota
	KindRule
	KindText
	KindImage
)

// Align positions text inside its rectangle.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Element is one positioned piece of a receipt, in logical units.
type Element struct {
	Kind   ElementKind
	Rect   image.Rectangle
	Fill   color.Color // KindBox, KindRule
	Text   string      // KindText
	Size   float64     // font size, KindText
	Bold   bool
	Color  color.Color
	Align  Align
	Image  image.Image // KindImage
	Remote bool
	Hidden bool // Broken images stay in the tree but are never painted
}

// Tree is a laid-out receipt. A mounted surface holding a Tree is what
// "the receipt exists" means.
type Tree struct {
	Width    int
	Height   int
	Elements []Element
}

var (
	colorAccent = color.NRGBA{R: 0xff, G: 0x77, B: 0xa0, A: 0xff}
	colorTint   = color.NRGBA{R: 0xff, G: 0xf0, B: 0xf5, A: 0xff}
	colorText   = color.NRGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}
	colorMuted  = color.NRGBA{R: 0x6b, G: 0x72, B: 0x80, A: 0xff}
	colorRule   = color.NRGBA{R: 0xf3, G: 0xd1, B: 0xdc, A: 0xff}
	colorWhite  = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

const (
	padding    = 60
	logoHeight = 160
	qrSize     = 420
	rowHeight  = 80
	bankRowH   = 64
	totalBoxH  = 150
)

// LayoutReceipt stacks the receipt blocks top to bottom at the given width.
// A nil logo or qr, or one marked failed, collapses to a hidden element.
func LayoutReceipt(m Markup, logo, qr *Asset, width int) *Tree {
	t := &Tree{Width: width}
	inner := width - 2*padding
	y := padding

	// Header band.
	if logo != nil {
		r := image.Rect(width/2-logoHeight, y, width/2+logoHeight, y+logoHeight)
		t.add(Element{Kind: KindImage, Rect: r, Image: logo.Image, Remote: logo.Remote})
		y += logoHeight + 20
	} else {
		t.add(Element{Kind: KindImage, Rect: image.Rect(width/2, y, width/2, y), Hidden: true})
	}
	t.add(Element{Kind: KindText, Rect: image.Rect(padding, y, padding+inner, y+44), Text: m.Texts.Phone, Size: 28, Color: colorMuted, Align: AlignCenter})
	y += 56
	t.add(Element{Kind: KindText, Rect: image.Rect(padding, y, padding+inner, y+80), Text: m.Texts.Title, Size: 56, Bold: true, Color: colorAccent, Align: AlignCenter})
	y += 80 + 40
	t.prepend(Element{Kind: KindBox, Rect: image.Rect(0, 0, width, y), Fill: colorTint})
	y += 20

	// Student info.
	for _, row := range m.InfoRows() {
		t.add(Element{Kind: KindText, Rect: image.Rect(padding, y, padding+inner/2, y+rowHeight), Text: row[0], Size: 34, Color: colorMuted, Align: AlignLeft})
		t.add(Element{Kind: KindText, Rect: image.Rect(padding+inner/3, y, padding+inner, y+rowHeight), Text: row[1], Size: 34, Bold: true, Color: colorText, Align: AlignRight})
		y += rowHeight
		t.add(Element{Kind: KindRule, Rect: image.Rect(padding, y-2, padding+inner, y), Fill: colorRule})
	}
	y += 30

	// Total.
	t.add(Element{Kind: KindBox, Rect: image.Rect(padding, y, padding+inner, y+totalBoxH), Fill: colorAccent})
	t.add(Element{Kind: KindText, Rect: image.Rect(padding+40, y, padding+inner/2, y+totalBoxH), Text: "Tổng học phí", Size: 36, Color: colorWhite, Align: AlignLeft})
	t.add(Element{Kind: KindText, Rect: image.Rect(padding+inner/3, y, padding+inner-40, y+totalBoxH), Text: m.TotalText(), Size: 52, Bold: true, Color: colorWhite, Align: AlignRight})
	y += totalBoxH + 40

	// Bank.
	if rows := m.BankRows(); rows != nil {
		t.add(Element{Kind: KindText, Rect: image.Rect(padding, y, padding+inner, y+60), Text: "Thông tin thanh toán", Size: 34, Bold: true, Color: colorText, Align: AlignLeft})
		y += 70
		for _, row := range rows {
			t.add(Element{Kind: KindText, Rect: image.Rect(padding, y, padding+inner/2, y+bankRowH), Text: row[0], Size: 30, Color: colorMuted, Align: AlignLeft})
			t.add(Element{Kind: KindText, Rect: image.Rect(padding+inner/3, y, padding+inner, y+bankRowH), Text: row[1], Size: 30, Bold: true, Color: colorText, Align: AlignRight})
			y += bankRowH
		}
		y += 30
	}

	// QR.
	if m.HasQR() {
		if qr != nil {
			r := image.Rect(width/2-qrSize/2, y, width/2+qrSize/2, y+qrSize)
			t.add(Element{Kind: KindImage, Rect: r, Image: qr.Image, Remote: qr.Remote})
			y += qrSize + 30
		} else {
			t.add(Element{Kind: KindImage, Rect: image.Rect(width/2, y, width/2, y), Hidden: true})
		}
	}

	// Footer.
	t.add(Element{Kind: KindBox, Rect: image.Rect(0, y, width, y+24), Fill: colorTint})
	y += 24

	t.Height = y
	return t
}

func (t *Tree) add(e Element) {
	t.Elements = append(t.Elements, e)
}

// prepend keeps backgrounds under the elements already placed on them.
func (t *Tree) prepend(e Element) {
	t.Elements = append([]Element{e}, t.Elements...)
}
