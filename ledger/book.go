package ledger

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"tuition-receipts-go/models"
)

var (
	// ErrNoLedger is returned by lookups made before any workbook was loaded.
	ErrNoLedger = errors.New("no ledger loaded")
	// ErrStudentNotFound is returned when no record carries the requested key.
	ErrStudentNotFound = errors.New("student not found")
)

// Resetter clears per-ledger state. The payment store satisfies it.
type Resetter interface {
	Reset() error
}

// Ledger is the result of one workbook load.
type Ledger struct {
	Source   string                 `json:"source"`
	Sheet    string                 `json:"sheet"`
	Records  []models.StudentRecord `json:"records"`
	LoadedAt time.Time              `json:"loadedAt"`
}

// Book holds the current ledger. Loading or clearing it resets the payment
// state it was built with.
type Book struct {
	layout   Layout
	payments Resetter

	mu      sync.RWMutex
	current *Ledger
}

// NewBook creates an empty Book.
func NewBook(layout Layout, payments Resetter) *Book {
	return &Book{layout: layout, payments: payments}
}

// Load reads a workbook stream and replaces the current ledger.
func (b *Book) Load(r io.Reader, source string) (*Ledger, error) {
	sheet, cells, err := ReadFirstSheet(r)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		Source:   source,
		Sheet:    sheet,
		Records:  Extract(cells, b.layout),
		LoadedAt: time.Now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.payments.Reset(); err != nil {
		return nil, fmt.Errorf("failed to reset payment state: %w", err)
	}
	b.current = l

	log.Info("Loaded ledger", "source", source, "sheet", sheet, "students", len(l.Records))
	return l, nil
}

// Clear drops the current ledger and its payment state.
func (b *Book) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.payments.Reset(); err != nil {
		return fmt.Errorf("failed to reset payment state: %w", err)
	}
	b.current = nil
	return nil
}

// Current returns the loaded ledger, or false when there is none.
func (b *Book) Current() (Ledger, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return Ledger{Records: []models.StudentRecord{}}, false
	}
	return *b.current, true
}

// Records returns the current records; empty when nothing is loaded.
func (b *Book) Records() []models.StudentRecord {
	l, _ := b.Current()
	return l.Records
}

// Find returns the first record with the given key.
func (b *Book) Find(key models.StudentKey) (models.StudentRecord, error) {
	l, ok := b.Current()
	if !ok {
		return models.StudentRecord{}, ErrNoLedger
	}
	for _, s := range l.Records {
		if s.Key() == key {
			return s, nil
		}
	}
	return models.StudentRecord{}, fmt.Errorf("%w: %s", ErrStudentNotFound, key)
}
