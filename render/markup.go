// Package render draws tuition receipts off-screen and turns them into images.
package render

import (
	"tuition-receipts-go/models"
)

// Texts are the fixed header lines of every receipt.
type Texts struct {
	Phone string `yaml:"phone"`
	Title string `yaml:"title"`
}

// DefaultTexts are the centre's header lines.
func DefaultTexts() Texts {
	return Texts{
		Phone: "Số điện thoại: 0981.802.098 - Mrs.Trang",
		Title: "Thông Báo Học Phí",
	}
}

// Markup is everything a receipt shows for one student. Logo and QR are
// references (file paths or URLs); both are optional.
type Markup struct {
	Student   models.StudentRecord
	Bank      models.BankInfo
	Texts     Texts
	LogoRef   string
	QRRef     string
	QRPayload string // Encoded into a generated QR when QRRef yields no image
}

// InfoRows returns the label/value pairs of the student block.
func (m Markup) InfoRows() [][2]string {
	class := m.Student.ClassName
	if class == "" {
		class = "—"
	}
	return [][2]string{
		{"Tên Học Sinh:", m.Student.Name},
		{"Lớp:", class},
		{"Số Buổi Học:", models.FormatAmount(m.Student.SessionCount) + " buổi"},
		{"Học Phí 1 Buổi:", models.FormatAmount(m.Student.PricePerSession) + " VND"},
	}
}

// TotalText is the amount printed in the total box.
func (m Markup) TotalText() string {
	return models.FormatAmount(m.Student.TotalFee) + " VND"
}

// BankRows returns the payment block, or nil when no bank info is set.
func (m Markup) BankRows() [][2]string {
	if m.Bank.IsZero() {
		return nil
	}
	return [][2]string{
		{"Ngân hàng", orDash(m.Bank.Bank)},
		{"Số TK", orDash(m.Bank.Account)},
		{"Chủ TK", orDash(m.Bank.Owner)},
	}
}

// HasQR reports whether the receipt reserves a QR block.
func (m Markup) HasQR() bool {
	return m.QRRef != "" || m.QRPayload != ""
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
