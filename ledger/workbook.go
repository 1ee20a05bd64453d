package ledger

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned for a workbook that contains no sheet at all.
var ErrNoSheets = errors.New("workbook does not contain any sheets")

// ReadFirstSheet opens a workbook stream and returns the name and the cell
// grid of its first sheet. Later sheets are ignored. Cells hold their raw
// stored value so number formats cannot change what Extract sees.
func ReadFirstSheet(r io.Reader) (string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		log.Printf("Error opening workbook reader: %v", err)
		return "", nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing workbook: %v", err)
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return "", nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		log.Printf("Error getting rows from sheet '%s': %v", sheetName, err)
		return "", nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}
	return sheetName, rows, nil
}
