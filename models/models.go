package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StudentRecord is one row of the tuition ledger.
type StudentRecord struct {
	SequenceNumber  int             `json:"sequenceNumber"`  // Dense 1-based index over emitted rows
	Name            string          `json:"name"`            // Trimmed, never empty
	ClassName       string          `json:"className"`       // Class label, may be empty
	SessionCount    decimal.Decimal `json:"sessionCount"`    // Sessions attended
	PricePerSession decimal.Decimal `json:"pricePerSession"` // Fee for one session
	TotalFee        decimal.Decimal `json:"totalFee"`        // Amount due
}

// Key returns the identity used by payment state, copy state and row lookups.
// Two students with the same name and fee share a key.
func (s StudentRecord) Key() StudentKey {
	return NewStudentKey(s.Name, s.TotalFee)
}

// StudentKey identifies a student across re-extractions of the same workbook.
type StudentKey string

// NewStudentKey builds the "<name>-<fee>" key.
func NewStudentKey(name string, fee decimal.Decimal) StudentKey {
	return StudentKey(name + "-" + fee.String())
}

func (k StudentKey) String() string {
	return string(k)
}

// BankInfo is printed on every receipt.
type BankInfo struct {
	Bank    string `json:"bank" yaml:"bank"`
	Account string `json:"account" yaml:"account"`
	Owner   string `json:"owner" yaml:"owner"`
}

// IsZero reports whether no bank field is set, in which case the bank block is omitted.
func (b BankInfo) IsZero() bool {
	return b.Bank == "" && b.Account == "" && b.Owner == ""
}

// TabFilter selects which records a view shows.
type TabFilter string

const (
	TabAll    TabFilter = "all"
	TabPaid   TabFilter = "paid"
	TabUnpaid TabFilter = "unpaid"
)

// ParseTabFilter accepts "all", "paid" or "unpaid"; an empty string means all.
func ParseTabFilter(s string) (TabFilter, error) {
	switch TabFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", TabAll:
		return TabAll, nil
	case TabPaid:
		return TabPaid, nil
	case TabUnpaid:
		return TabUnpaid, nil
	}
	return "", fmt.Errorf("unknown tab filter %q (must be all, paid or unpaid)", s)
}

// Totals backs the stat cards.
type Totals struct {
	TotalFee       decimal.Decimal `json:"totalFee"`
	CollectedFee   decimal.Decimal `json:"collectedFee"`
	UncollectedFee decimal.Decimal `json:"uncollectedFee"`
	PaidCount      int             `json:"paidCount"`
	UnpaidCount    int             `json:"unpaidCount"`
	TotalCount     int             `json:"totalCount"`
}
