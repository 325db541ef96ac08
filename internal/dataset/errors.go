package dataset

import (
	"errors"

	"github.com/rotisserie/eris"
)

var (
	// ErrEmptyOrUnreadable is returned when an upload is empty or cannot be parsed as a table.
	ErrEmptyOrUnreadable = eris.New("dataset: empty or unreadable input")
	// ErrDecode is returned when an upload is not valid UTF-8.
	ErrDecode = eris.New("dataset: invalid utf-8 encoding")
	// ErrNoRows is returned when an upload has a header but no data rows.
	ErrNoRows = eris.New("dataset: file has no data rows")
)

// IsUnreadable reports whether err is an empty/unparseable-input failure.
func IsUnreadable(err error) bool {
	return errors.Is(err, ErrEmptyOrUnreadable)
}

// IsDecode reports whether err is an encoding failure.
func IsDecode(err error) bool {
	return errors.Is(err, ErrDecode)
}
