package export

import (
	"io"
	"strconv"

	"github.com/360EntSecGroup-Skylar/excelize"
)

const defaultSheet = "Sheet1"

// WriteXLSX renders rows into a single sheet workbook with a header row
func WriteXLSX(w io.Writer, sheet string, rows []Row) error {
	f := excelize.NewFile()
	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		idx := f.NewSheet(sheet)
		f.SetActiveSheet(idx)
		f.DeleteSheet(defaultSheet)
	}
	if len(rows) > 0 {
		for col, name := range rows[0].Names() {
			f.SetCellValue(sheet, cellName(col, 1), name)
		}
		for i, row := range rows {
			for col, field := range row {
				f.SetCellValue(sheet, cellName(col, i+2), FormatValue(field.Value))
			}
		}
	}
	return f.Write(w)
}

func cellName(col, row int) string {
	return excelize.ToAlphaString(col) + strconv.Itoa(row)
}
