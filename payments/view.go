package payments

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tuition-receipts-go/models"
)

// Filtered returns the records matching tab, in ledger order.
func Filtered(records []models.StudentRecord, paid map[models.StudentKey]bool, tab models.TabFilter) []models.StudentRecord {
	out := make([]models.StudentRecord, 0, len(records))
	for _, s := range records {
		isPaid := paid[s.Key()]
		switch tab {
		case models.TabPaid:
			if !isPaid {
				continue
			}
		case models.TabUnpaid:
			if isPaid {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// ComputeTotals splits the fee sum between paid and unpaid records. Every
// record lands in exactly one side, so collected+uncollected equals the total.
func ComputeTotals(records []models.StudentRecord, paid map[models.StudentKey]bool) models.Totals {
	t := models.Totals{
		TotalFee:       decimal.Zero,
		CollectedFee:   decimal.Zero,
		UncollectedFee: decimal.Zero,
		TotalCount:     len(records),
	}
	for _, s := range records {
		t.TotalFee = t.TotalFee.Add(s.TotalFee)
		if paid[s.Key()] {
			t.CollectedFee = t.CollectedFee.Add(s.TotalFee)
			t.PaidCount++
		} else {
			t.UncollectedFee = t.UncollectedFee.Add(s.TotalFee)
			t.UnpaidCount++
		}
	}
	return t
}

// View is what the student table and the stat cards show for one tab.
type View struct {
	Tab      models.TabFilter           `json:"tab"`
	Students []models.StudentRecord     `json:"students"`
	Paid     map[models.StudentKey]bool `json:"-"`
	Totals   models.Totals              `json:"totals"`
}

// BuildView reads one snapshot from the store and derives both the filtered
// list and the totals from it.
func BuildView(store Store, records []models.StudentRecord, tab models.TabFilter) (View, error) {
	paid, err := store.Paid()
	if err != nil {
		return View{}, fmt.Errorf("failed to read payment state: %w", err)
	}
	return View{
		Tab:      tab,
		Students: Filtered(records, paid, tab),
		Paid:     paid,
		Totals:   ComputeTotals(records, paid),
	}, nil
}
