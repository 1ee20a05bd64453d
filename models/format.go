package models

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var viPrinter = message.NewPrinter(language.Vietnamese)

// FormatAmount renders an amount with Vietnamese digit grouping ("400.000",
// "12.345,5"). At most three fraction digits are kept.
func FormatAmount(d decimal.Decimal) string {
	d = d.Round(3)
	neg := d.IsNegative()
	d = d.Abs()

	out := viPrinter.Sprintf("%d", d.IntPart())
	if frac := d.Sub(d.Truncate(0)); !frac.IsZero() {
		digits := strings.TrimPrefix(frac.StringFixed(3), "0.")
		out += "," + strings.TrimRight(digits, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}
