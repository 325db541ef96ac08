// Package features projects an uploaded table onto the predictor's input columns.
package features

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/churn-cli/internal/model"
)

// ErrMissingColumn matches any MissingColumnError via errors.Is.
var ErrMissingColumn = eris.New("features: missing required column")

// MissingColumnError names the first required feature absent from the upload.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column: %q", e.Column)
}

// Is lets errors.Is(err, ErrMissingColumn) match.
func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

// AsMissingColumn extracts the missing column name from err.
func AsMissingColumn(err error) (string, bool) {
	var mc *MissingColumnError
	if errors.As(err, &mc) {
		return mc.Column, true
	}
	return "", false
}

// Select returns a new table holding exactly the named columns in the given
// order, rows in upload order.
func Select(t *model.Table, names []string) (*model.Table, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		j := t.Index(name)
		if j < 0 {
			return nil, &MissingColumnError{Column: name}
		}
		idx[i] = j
	}

	rows := make([][]string, len(t.Rows))
	for r, src := range t.Rows {
		row := make([]string, len(idx))
		for i, j := range idx {
			if j < len(src) {
				row[i] = src[j]
			}
		}
		rows[r] = row
	}

	return &model.Table{Columns: append([]string(nil), names...), Rows: rows}, nil
}

// Require checks that every column in names is present without projecting.
func Require(t *model.Table, names ...string) error {
	for _, name := range names {
		if !t.HasColumn(name) {
			return &MissingColumnError{Column: name}
		}
	}
	return nil
}
