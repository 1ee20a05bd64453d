package ledger

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"tuition-receipts-go/models"
)

// Extract turns the cell grid of the first sheet into student records.
//
// Only rows inside the layout window are read. Rows whose name cell is empty
// after trimming are skipped without consuming a sequence number. Numeric
// cells that are empty, non-numeric or negative read as zero; no row is ever
// rejected for a bad number.
func Extract(cells [][]string, layout Layout) []models.StudentRecord {
	students := []models.StudentRecord{}
	seq := 1

	for r := layout.FirstRow; r <= layout.LastRow; r++ {
		if r >= len(cells) {
			break
		}
		row := cells[r]

		name := strings.TrimSpace(cellAt(row, layout.NameCol))
		if name == "" {
			continue
		}

		students = append(students, models.StudentRecord{
			SequenceNumber:  seq,
			Name:            name,
			ClassName:       strings.TrimSpace(cellAt(row, layout.ClassNameCol)),
			SessionCount:    parseAmount(cellAt(row, layout.SessionsCol), r),
			PricePerSession: parseAmount(cellAt(row, layout.PriceCol), r),
			TotalFee:        parseAmount(cellAt(row, layout.TotalFeeCol), r),
		})
		seq++
	}

	return students
}

// cellAt returns "" for cells past the end of a short row.
func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func parseAmount(s string, row int) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Debug("non-numeric cell read as 0", "row", row+1, "value", s)
		return decimal.Zero
	}
	if d.IsNegative() {
		log.Debug("negative cell read as 0", "row", row+1, "value", s)
		return decimal.Zero
	}
	return d
}
