package ledger

import (
	"errors"
	"fmt"
)

// Layout fixes where student data lives in the tuition template. Rows and
// columns are 0-indexed array positions of the sheet's cell grid.
type Layout struct {
	FirstRow     int `yaml:"first_row"`     // First scanned row
	LastRow      int `yaml:"last_row"`      // Last scanned row, inclusive
	NameCol      int `yaml:"name_col"`      // Student name
	SessionsCol  int `yaml:"sessions_col"`  // Session count
	PriceCol     int `yaml:"price_col"`     // Price per session
	TotalFeeCol  int `yaml:"total_fee_col"` // Total fee
	ClassNameCol int `yaml:"class_col"`     // Class label
}

// DefaultLayout is the template the centre fills in: rows 5..34 of the sheet,
// student block starting at column AM, class label in column E.
func DefaultLayout() Layout {
	return Layout{
		FirstRow:     4,
		LastRow:      33,
		NameCol:      38,
		SessionsCol:  39,
		PriceCol:     40,
		TotalFeeCol:  41,
		ClassNameCol: 4,
	}
}

// Validate rejects negative offsets and an inverted row window.
func (l Layout) Validate() error {
	if l.FirstRow < 0 || l.LastRow < l.FirstRow {
		return fmt.Errorf("invalid row window %d..%d", l.FirstRow, l.LastRow)
	}
	for name, col := range map[string]int{
		"name_col":      l.NameCol,
		"sessions_col":  l.SessionsCol,
		"price_col":     l.PriceCol,
		"total_fee_col": l.TotalFeeCol,
		"class_col":     l.ClassNameCol,
	} {
		if col < 0 {
			return errors.New(name + " must not be negative")
		}
	}
	return nil
}
