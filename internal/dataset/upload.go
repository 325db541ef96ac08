// Package dataset parses uploaded CSV and XLSX files into tables and writes tables back out.
package dataset

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Format identifies the container format of an upload.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Upload holds the raw bytes of an uploaded file. Every call to Reader starts
// from the first byte, so an upload can be parsed any number of times.
type Upload struct {
	Name string
	data []byte
}

// NewUpload reads r fully into a re-readable upload.
func NewUpload(name string, r io.Reader) (*Upload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read upload %s", name)
	}
	return &Upload{Name: name, data: data}, nil
}

// NewUploadBytes wraps data without copying.
func NewUploadBytes(name string, data []byte) *Upload {
	return &Upload{Name: name, data: data}
}

// Reader returns a fresh reader positioned at the start of the upload.
func (u *Upload) Reader() io.ReadSeeker {
	return bytes.NewReader(u.data)
}

// Bytes returns the raw upload. Callers must not modify it.
func (u *Upload) Bytes() []byte {
	return u.data
}

// Size returns the upload size in bytes.
func (u *Upload) Size() int {
	return len(u.data)
}

// Format infers the container format from the file extension. Anything that
// is not .xlsx is treated as delimited text.
func (u *Upload) Format() Format {
	if strings.EqualFold(filepath.Ext(u.Name), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}
