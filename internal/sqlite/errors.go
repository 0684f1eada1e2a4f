package sqlite

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHeader indicates the file does not start with a valid SQLite
	// database header. The file is rejected before any page parsing begins.
	ErrInvalidHeader = errors.New("invalid SQLite database header")

	// ErrUnsupportedVersion indicates the header is well-formed but declares
	// a file format or schema format this engine does not understand.
	ErrUnsupportedVersion = errors.New("unsupported SQLite file format version")
)

// CorruptPageError reports a page whose image is structurally unusable.
// It is localized to one page: the parse pipeline records it and continues
// with the remaining pages.
type CorruptPageError struct {
	PageNumber uint32
	Reason     string
}

func (e *CorruptPageError) Error() string {
	return fmt.Sprintf("corrupt page %d: %s", e.PageNumber, e.Reason)
}
