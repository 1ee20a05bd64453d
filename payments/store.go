// Package payments tracks which students have paid and derives the filtered
// views and totals shown next to the ledger.
package payments

import (
	"sync"

	"tuition-receipts-go/models"
)

// Store holds the paid flag per student key. Unknown keys are unpaid.
type Store interface {
	// Toggle flips the paid flag and returns the new value.
	Toggle(key models.StudentKey) (bool, error)
	IsPaid(key models.StudentKey) (bool, error)
	// Paid returns a snapshot of every key currently marked paid.
	Paid() (map[models.StudentKey]bool, error)
	// Reset clears all entries.
	Reset() error
}

// MemoryStore is the default Store, scoped to the running process.
type MemoryStore struct {
	mu   sync.RWMutex
	paid map[models.StudentKey]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{paid: make(map[models.StudentKey]bool)}
}

func (m *MemoryStore) Toggle(key models.StudentKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paid[key] {
		delete(m.paid, key)
		return false, nil
	}
	m.paid[key] = true
	return true, nil
}

func (m *MemoryStore) IsPaid(key models.StudentKey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paid[key], nil
}

func (m *MemoryStore) Paid() (map[models.StudentKey]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[models.StudentKey]bool, len(m.paid))
	for k, v := range m.paid {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paid = make(map[models.StudentKey]bool)
	return nil
}
