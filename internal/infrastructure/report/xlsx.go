// Package report renders recent runs into a spreadsheet for operators who
// want the processing history outside the API.
package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

type XLSXBuilder struct{}

func NewXLSXBuilder() *XLSXBuilder {
	return &XLSXBuilder{}
}

func (b *XLSXBuilder) BuildXLSX(runs []domain.Run) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Runs"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create runs sheet: %w", err)
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultIndex, _ := f.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Run ID",
		"File ID",
		"OCR Option",
		"Status",
		"Error",
		"Submitted",
		"Updated",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range runs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.ID)
		write(2, r.FileID)
		write(3, string(r.Option))
		write(4, string(r.Status))
		write(5, truncate(r.ErrorMessage, 140))
		if !r.CreatedAt.IsZero() {
			write(6, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		}
		if !r.UpdatedAt.IsZero() {
			write(7, r.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "B", 38)
	_ = f.SetColWidth(sheet, "C", "D", 12)
	_ = f.SetColWidth(sheet, "E", "E", 60)
	_ = f.SetColWidth(sheet, "F", "G", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
