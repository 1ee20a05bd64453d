package export

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/johnfercher/maroto/v2/pkg/repository"

	"tuition-receipts-go/models"
	"tuition-receipts-go/render"
)

const pdfFontFamily = "receipt"

var (
	pdfAccent = &props.Color{Red: 255, Green: 119, Blue: 160}
	pdfMuted  = &props.Color{Red: 107, Green: 114, Blue: 128}
	pdfWhite  = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// PDFRenderer lays a receipt out as a one-page PDF. Without font files the
// built-in PDF fonts are used, which lack most Vietnamese glyphs.
type PDFRenderer struct {
	Content     render.Content
	FontRegular string
	FontBold    string
}

// PDFReceipt renders s with the default fonts.
func PDFReceipt(s models.StudentRecord, content render.Content) ([]byte, error) {
	return (&PDFRenderer{Content: content}).Render(s)
}

func (p *PDFRenderer) Render(s models.StudentRecord) ([]byte, error) {
	b := config.NewBuilder().
		WithPageSize(pagesize.A5).
		WithLeftMargin(12).
		WithTopMargin(12).
		WithRightMargin(12)
	if p.FontRegular != "" && p.FontBold != "" {
		fonts, err := repository.New().
			AddUTF8Font(pdfFontFamily, fontstyle.Normal, p.FontRegular).
			AddUTF8Font(pdfFontFamily, fontstyle.Bold, p.FontBold).
			Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load PDF fonts: %w", err)
		}
		b = b.WithCustomFonts(fonts).WithDefaultFont(&props.Font{Family: pdfFontFamily})
	}

	m := maroto.New(b.Build())
	markup := render.Markup{
		Student:   s,
		Bank:      p.Content.Bank,
		Texts:     p.Content.Texts,
		QRPayload: p.Content.QRPayload,
	}
	addPDFHeader(m, markup)
	addPDFRows(m, markup.InfoRows(), 9)
	addPDFTotal(m, markup)
	if rows := markup.BankRows(); rows != nil {
		m.AddRows(row.New(10).Add(col.New(12).Add(
			text.New("Thông tin thanh toán", props.Text{Size: 11, Style: fontstyle.Bold, Top: 3}),
		)))
		addPDFRows(m, rows, 7)
	}
	if markup.QRPayload != "" {
		m.AddRows(row.New(45).Add(
			col.New(12).Add(code.NewQr(markup.QRPayload, props.Rect{Center: true, Percent: 90})),
		))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF receipt for %s: %w", s.Name, err)
	}
	return doc.GetBytes(), nil
}

func addPDFHeader(m core.Maroto, mk render.Markup) {
	m.AddRows(
		row.New(7).Add(col.New(12).Add(
			text.New(mk.Texts.Phone, props.Text{Size: 8, Align: align.Center, Color: pdfMuted}),
		)),
		row.New(12).Add(col.New(12).Add(
			text.New(mk.Texts.Title, props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center, Color: pdfAccent}),
		)),
		row.New(4),
	)
}

func addPDFRows(m core.Maroto, rows [][2]string, height float64) {
	for _, r := range rows {
		m.AddRows(
			row.New(height).Add(
				col.New(5).Add(text.New(r[0], props.Text{Size: 10, Color: pdfMuted, Top: 1.5})),
				col.New(7).Add(text.New(r[1], props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right, Top: 1.5})),
			),
			row.New(1).Add(line.NewCol(12)),
		)
	}
}

func addPDFTotal(m core.Maroto, mk render.Markup) {
	cell := &props.Cell{BackgroundColor: pdfAccent}
	m.AddRows(
		row.New(4),
		row.New(14).Add(
			col.New(5).Add(text.New("Tổng học phí", props.Text{Size: 11, Color: pdfWhite, Top: 4, Left: 3})).WithStyle(cell),
			col.New(7).Add(text.New(mk.TotalText(), props.Text{Size: 14, Style: fontstyle.Bold, Align: align.Right, Color: pdfWhite, Top: 3.5, Right: 3})).WithStyle(cell),
		),
		row.New(4),
	)
}
