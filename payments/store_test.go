package payments

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"tuition-receipts-go/models"
)

func sampleRecords() []models.StudentRecord {
	fees := []int64{400000, 200000, 350000, 0, 125000}
	out := make([]models.StudentRecord, len(fees))
	for i, fee := range fees {
		out[i] = models.StudentRecord{
			SequenceNumber: i + 1,
			Name:           fmt.Sprintf("Student %d", i+1),
			TotalFee:       decimal.NewFromInt(fee),
		}
	}
	return out
}

func TestMemoryStore_ToggleAndReset(t *testing.T) {
	store := NewMemoryStore()
	key := models.StudentKey("An-400000")

	if paid, _ := store.IsPaid(key); paid {
		t.Fatal("unknown key should be unpaid")
	}
	if paid, _ := store.Toggle(key); !paid {
		t.Fatal("first toggle should mark paid")
	}
	if paid, _ := store.IsPaid(key); !paid {
		t.Fatal("IsPaid after toggle = false")
	}
	if paid, _ := store.Toggle(key); paid {
		t.Fatal("second toggle should mark unpaid")
	}

	store.Toggle(key)
	store.Toggle("Binh-1")
	if err := store.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	snapshot, _ := store.Paid()
	if len(snapshot) != 0 {
		t.Errorf("Paid() after reset = %v", snapshot)
	}
}

func TestMemoryStore_PaidIsSnapshot(t *testing.T) {
	store := NewMemoryStore()
	store.Toggle("An-1")
	snapshot, _ := store.Paid()
	snapshot["Binh-2"] = true

	if paid, _ := store.IsPaid("Binh-2"); paid {
		t.Error("mutating the snapshot leaked into the store")
	}
}

func TestTotals_InvariantUnderToggles(t *testing.T) {
	records := sampleRecords()
	store := NewMemoryStore()
	rng := rand.New(rand.NewSource(42))

	for step := 0; step < 200; step++ {
		store.Toggle(records[rng.Intn(len(records))].Key())

		view, err := BuildView(store, records, models.TabAll)
		if err != nil {
			t.Fatalf("BuildView() error = %v", err)
		}
		tot := view.Totals
		if !tot.CollectedFee.Add(tot.UncollectedFee).Equal(tot.TotalFee) {
			t.Fatalf("step %d: collected %s + uncollected %s != total %s", step, tot.CollectedFee, tot.UncollectedFee, tot.TotalFee)
		}
		if tot.PaidCount+tot.UnpaidCount != len(records) || tot.TotalCount != len(records) {
			t.Fatalf("step %d: counts %d+%d != %d", step, tot.PaidCount, tot.UnpaidCount, len(records))
		}
	}
}

func TestDoubleToggleRestoresState(t *testing.T) {
	store := NewMemoryStore()
	records := sampleRecords()
	store.Toggle(records[1].Key())

	for _, s := range records {
		before, _ := store.IsPaid(s.Key())
		store.Toggle(s.Key())
		store.Toggle(s.Key())
		after, _ := store.IsPaid(s.Key())
		if before != after {
			t.Errorf("%s: paid %v before, %v after double toggle", s.Key(), before, after)
		}
	}
}

func TestFiltered_Partition(t *testing.T) {
	records := sampleRecords()
	paid := map[models.StudentKey]bool{records[0].Key(): true, records[3].Key(): true}

	all := Filtered(records, paid, models.TabAll)
	if len(all) != len(records) {
		t.Fatalf("All returned %d, want %d", len(all), len(records))
	}

	paidList := Filtered(records, paid, models.TabPaid)
	unpaidList := Filtered(records, paid, models.TabUnpaid)
	if len(paidList)+len(unpaidList) != len(records) {
		t.Fatalf("paid %d + unpaid %d != %d", len(paidList), len(unpaidList), len(records))
	}

	seen := map[models.StudentKey]int{}
	for _, s := range paidList {
		seen[s.Key()]++
	}
	for _, s := range unpaidList {
		seen[s.Key()]++
	}
	for _, s := range records {
		if seen[s.Key()] != 1 {
			t.Errorf("%s appears %d times across paid/unpaid", s.Key(), seen[s.Key()])
		}
	}

	// Relative order is preserved.
	if unpaidList[0].SequenceNumber != 2 || unpaidList[1].SequenceNumber != 3 || unpaidList[2].SequenceNumber != 5 {
		t.Errorf("unpaid order = %v", unpaidList)
	}
}

func TestScenario_SingleStudentPaid(t *testing.T) {
	records := []models.StudentRecord{{
		SequenceNumber:  1,
		Name:            "Nguyen Van A",
		ClassName:       "10A",
		SessionCount:    decimal.NewFromInt(8),
		PricePerSession: decimal.NewFromInt(50000),
		TotalFee:        decimal.NewFromInt(400000),
	}}
	store := NewMemoryStore()
	store.Toggle(records[0].Key())

	view, err := BuildView(store, records, models.TabPaid)
	if err != nil {
		t.Fatalf("BuildView() error = %v", err)
	}
	if len(view.Students) != 1 {
		t.Fatalf("paid tab has %d students", len(view.Students))
	}
	if !view.Totals.CollectedFee.Equal(decimal.NewFromInt(400000)) || !view.Totals.UncollectedFee.IsZero() {
		t.Errorf("totals = %+v", view.Totals)
	}
}

func TestKeyCollisionSharesState(t *testing.T) {
	// Two students with the same name and fee share one paid flag.
	records := []models.StudentRecord{
		{SequenceNumber: 1, Name: "An", TotalFee: decimal.NewFromInt(100)},
		{SequenceNumber: 2, Name: "An", TotalFee: decimal.NewFromInt(100)},
	}
	store := NewMemoryStore()
	store.Toggle(records[0].Key())

	view, _ := BuildView(store, records, models.TabAll)
	if view.Totals.PaidCount != 2 || !view.Totals.CollectedFee.Equal(decimal.NewFromInt(200)) {
		t.Errorf("totals = %+v", view.Totals)
	}
}

func TestComputeTotals_Empty(t *testing.T) {
	tot := ComputeTotals(nil, nil)
	if !tot.TotalFee.IsZero() || tot.TotalCount != 0 || tot.PaidCount != 0 {
		t.Errorf("ComputeTotals(nil) = %+v", tot)
	}
}
