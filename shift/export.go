package shift

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by ExportWorkbook.
const SheetName = "Shifts"

var exportColumns = []string{
	"Date", "Shift", "Workflow", "Status", "Pull Tabs", "Deposit", "Bingo",
	"Beginning Box", "Ending Box", "Bingo Actual", "Deposit Actual",
	"Cash", "Checks", "Variance", "Players", "Notes",
}

// ExportWorkbook renders records as an XLSX workbook with one sheet.
func ExportWorkbook(records []Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := writeRow(f, 1, toCells(exportColumns)); err != nil {
		return nil, err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = f.SetCellStyle(SheetName, "A1", endCell, style)
	}

	for i, r := range records {
		if err := writeRow(f, i+2, recordCells(r)); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, v); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
	}
	return nil
}

func toCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func recordCells(r Record) []any {
	var cash, checks, variance any = "", "", ""
	if r.Sales != nil {
		cash, checks, variance = money(r.Sales.CashTotal), money(r.Sales.ChecksTotal), money(r.Sales.Variance)
	}
	var players any = ""
	if r.Players != nil {
		players = *r.Players
	}
	return []any{
		r.Date, string(r.Shift), string(r.WorkflowType), string(r.Status),
		money(r.PulltabsTotal), money(r.DepositTotal), money(r.BingoTotal),
		nullMoney(r.BeginningBox), nullMoney(r.EndingBox),
		nullMoney(r.BingoActual), nullMoney(r.DepositActual),
		cash, checks, variance, players, r.Notes,
	}
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func nullMoney(d decimal.NullDecimal) any {
	if !d.Valid {
		return ""
	}
	return money(d.Decimal)
}
