package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"tuition-receipts-go/render"
)

const receiptCSS = `body{margin:0;background:#f3f4f6;font-family:"Be Vietnam Pro",Arial,sans-serif}
.receipt{width:1080px;margin:24px auto;background:#fff;color:#1f2937}
.head{background:#fff0f5;padding:60px;text-align:center}
.head img{height:160px}
.phone{color:#6b7280;font-size:28px}
.title{color:#ff77a0;font-size:56px;font-weight:700;margin:16px 0 0}
.rows{padding:20px 60px}
.row{display:flex;justify-content:space-between;font-size:34px;padding:20px 0;border-bottom:2px solid #f3d1dc}
.row span:first-child{color:#6b7280}
.row span:last-child{font-weight:700}
.total{display:flex;justify-content:space-between;align-items:center;margin:30px 60px;padding:0 40px;height:150px;background:#ff77a0;color:#fff}
.total b{font-size:52px}
.bank{padding:0 60px}
.bank .row{font-size:30px}
.qr{text-align:center;padding:30px}
.qr img{width:420px;height:420px}
.foot{height:24px;background:#fff0f5}`

// receiptPage renders the receipt markup as a standalone HTML page.
func receiptPage(m render.Markup) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="vi"><head><meta charset="utf-8"><title>`)
		b.WriteString(templ.EscapeString(m.Texts.Title + " - " + m.Student.Name))
		b.WriteString(`</title><style>` + receiptCSS + `</style></head><body><div class="receipt">`)

		b.WriteString(`<div class="head">`)
		if isURL(m.LogoRef) {
			fmt.Fprintf(&b, `<img src="%s" alt="logo" onerror="this.style.display='none'">`, templ.EscapeString(m.LogoRef))
		}
		fmt.Fprintf(&b, `<div class="phone">%s</div><div class="title">%s</div></div>`,
			templ.EscapeString(m.Texts.Phone), templ.EscapeString(m.Texts.Title))

		b.WriteString(`<div class="rows">`)
		writeRows(&b, m.InfoRows())
		b.WriteString(`</div>`)

		fmt.Fprintf(&b, `<div class="total"><span>Tổng học phí</span><b>%s</b></div>`, templ.EscapeString(m.TotalText()))

		if rows := m.BankRows(); rows != nil {
			b.WriteString(`<div class="bank"><h3>Thông tin thanh toán</h3>`)
			writeRows(&b, rows)
			b.WriteString(`</div>`)
		}
		if src := qrSource(m); src != "" {
			fmt.Fprintf(&b, `<div class="qr"><img src="%s" alt="QR" onerror="this.style.display='none'"></div>`, src)
		}

		b.WriteString(`<div class="foot"></div></div></body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeRows(b *strings.Builder, rows [][2]string) {
	for _, r := range rows {
		fmt.Fprintf(b, `<div class="row"><span>%s</span><span>%s</span></div>`,
			templ.EscapeString(r[0]), templ.EscapeString(r[1]))
	}
}

// qrSource links a remote QR image, or inlines one generated from the
// payload. Local QR files are not reachable from the browser.
func qrSource(m render.Markup) string {
	if isURL(m.QRRef) {
		return templ.EscapeString(m.QRRef)
	}
	if m.QRPayload == "" {
		return ""
	}
	img, err := render.GenerateQR(m.QRPayload, 420)
	if err != nil {
		log.Debug("QR code hidden", "err", err)
		return ""
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
