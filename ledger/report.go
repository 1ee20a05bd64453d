package ledger

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"tuition-receipts-go/models"
)

const reportSheet = "Hoc phi"

var reportHeaders = []interface{}{
	"STT", "TRẠNG THÁI", "HỌ VÀ TÊN", "LỚP", "SỐ BUỔI", "HỌC PHÍ / BUỔI", "TỔNG HỌC PHÍ",
}

// WriteStatusReport renders the ledger with each student's payment status and
// the collection totals below the table.
func WriteStatusReport(records []models.StudentRecord, paid map[models.StudentKey]bool, totals models.Totals) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), reportSheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}
	widths := map[string]float64{"A": 6, "B": 12, "C": 32, "D": 8, "E": 10, "F": 16, "G": 16}
	for col, w := range widths {
		if err := f.SetColWidth(reportSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", col, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FF77A0"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	if err != nil {
		return nil, fmt.Errorf("create amount style: %w", err)
	}

	if err := f.SetSheetRow(reportSheet, "A1", &reportHeaders); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(reportSheet, "A1", "G1", headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	row := 2
	for _, s := range records {
		status := "Chưa thu"
		if paid[s.Key()] {
			status = "Đã thu"
		}
		values := []interface{}{
			s.SequenceNumber,
			status,
			s.Name,
			s.ClassName,
			s.SessionCount.InexactFloat64(),
			s.PricePerSession.InexactFloat64(),
			s.TotalFee.InexactFloat64(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		row++
	}
	if row > 2 {
		end, _ := excelize.CoordinatesToCellName(7, row-1)
		if err := f.SetCellStyle(reportSheet, "F2", end, amountStyle); err != nil {
			return nil, fmt.Errorf("style amounts: %w", err)
		}
	}

	row++
	summary := [][]interface{}{
		{"Tổng cần thu", totals.TotalFee.InexactFloat64(), totals.TotalCount},
		{"Đã thu được", totals.CollectedFee.InexactFloat64(), totals.PaidCount},
		{"Chưa thu", totals.UncollectedFee.InexactFloat64(), totals.UnpaidCount},
	}
	for _, line := range summary {
		cell, _ := excelize.CoordinatesToCellName(3, row)
		if err := f.SetSheetRow(reportSheet, cell, &line); err != nil {
			return nil, fmt.Errorf("write summary: %w", err)
		}
		amount, _ := excelize.CoordinatesToCellName(4, row)
		if err := f.SetCellStyle(reportSheet, amount, amount, amountStyle); err != nil {
			return nil, fmt.Errorf("style summary: %w", err)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
