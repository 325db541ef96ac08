package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/churn-cli/internal/model"
)

// Load parses the upload according to its format. An upload with a header
// but no data rows fails with ErrNoRows.
func Load(u *Upload) (*model.Table, error) {
	if u == nil || u.Size() == 0 {
		return nil, eris.Wrap(ErrEmptyOrUnreadable, "dataset: upload is empty")
	}

	var (
		t   *model.Table
		err error
	)
	switch u.Format() {
	case FormatXLSX:
		t, err = LoadXLSX(u.data)
	default:
		t, err = LoadCSV(u.Reader())
	}
	if err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, eris.Wrapf(ErrNoRows, "dataset: %s", u.Name)
	}
	return t, nil
}

// LoadCSV parses UTF-8 delimited text with a header row. A leading byte order
// mark is dropped. Rows shorter than the header are padded with empty cells.
// A header-only file yields a table with no rows.
func LoadCSV(r io.Reader) (*model.Table, error) {
	decoded, err := io.ReadAll(transform.NewReader(r, transform.Chain(
		encoding.UTF8Validator,
		unicode.UTF8BOM.NewDecoder(),
	)))
	if err != nil {
		if errors.Is(err, encoding.ErrInvalidUTF8) {
			return nil, eris.Wrap(ErrDecode, err.Error())
		}
		return nil, eris.Wrap(err, "dataset: read csv")
	}
	if len(bytes.TrimSpace(decoded)) == 0 {
		return nil, eris.Wrap(ErrEmptyOrUnreadable, "dataset: no columns to parse")
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(ErrEmptyOrUnreadable, err.Error())
	}
	return buildTable(records)
}

// LoadXLSX parses the first sheet of a workbook. The first row is the header.
func LoadXLSX(data []byte) (*model.Table, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(ErrEmptyOrUnreadable, "xlsx: "+err.Error())
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Wrap(ErrEmptyOrUnreadable, "xlsx: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if isBlank(cells) {
			continue
		}
		records = append(records, cells)
	}
	return buildTable(records)
}

func buildTable(records [][]string) (*model.Table, error) {
	if len(records) == 0 {
		return nil, eris.Wrap(ErrEmptyOrUnreadable, "dataset: no columns to parse")
	}
	columns := headerNames(records[0])
	rows := make([][]string, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) > len(columns) {
			return nil, eris.Wrapf(ErrEmptyOrUnreadable,
				"dataset: row %d has %d fields, header has %d", i+2, len(rec), len(columns))
		}
		if len(rec) < len(columns) {
			padded := make([]string, len(columns))
			copy(padded, rec)
			rec = padded
		}
		rows = append(rows, rec)
	}

	return &model.Table{Columns: columns, Rows: rows}, nil
}

// headerNames trims header cells, names blank ones "Unnamed: <i>" and suffixes
// duplicates with ".1", ".2", ...
func headerNames(raw []string) []string {
	used := make(map[string]bool, len(raw))
	out := make([]string, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s.%d", base, n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
