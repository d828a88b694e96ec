package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/perceptrader/mt5-trader/internal/session"
)

// ExcelReporter writes the session trade log as an .xlsx workbook
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// WriteTradeLog writes outcomes to an Excel file at path
func (r *ExcelReporter) WriteTradeLog(outcomes []session.Outcome, path string) error {
	// Ensure directory exists before creating file
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const sheet = "Trades"
	fx.SetSheetName(fx.GetSheetName(0), sheet)

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	headers := []string{"Time", "Symbol", "Signal", "Side", "Quantity", "Allocated", "Price", "Ticket", "State", "Error"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	fx.SetCellStyle(sheet, "A1", last, headerStyle)

	for i, out := range outcomes {
		row := i + 2
		errMsg := ""
		if out.Err != nil {
			errMsg = out.Err.Error()
		}
		values := []interface{}{
			out.Timestamp.Format("2006-01-02 15:04:05"),
			out.Symbol,
			out.Signal,
			string(out.Side),
			out.Quantity,
			out.Allocated,
			out.Price,
			out.Ticket,
			out.State.String(),
			errMsg,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			fx.SetCellValue(sheet, cell, v)
		}
	}

	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "B", "I", 12)
	fx.SetColWidth(sheet, "J", "J", 44)

	return fx.SaveAs(path)
}
