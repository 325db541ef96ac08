package dataset

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/churn-cli/internal/model"
)

// WriteCSV writes the table as UTF-8 CSV with a header row and no index column.
func WriteCSV(w io.Writer, t *model.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return eris.Wrap(err, "dataset: write csv header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return eris.Wrap(err, "dataset: write csv rows")
	}
	return nil
}

// WriteXLSX writes the table to a single-sheet workbook.
func WriteXLSX(w io.Writer, sheetName string, t *model.Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "xlsx: add sheet %s", sheetName)
	}

	addRow := func(cells []string) {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().SetString(v)
		}
	}
	addRow(t.Columns)
	for _, r := range t.Rows {
		addRow(r)
	}

	return eris.Wrap(f.Write(w), "xlsx: write workbook")
}
