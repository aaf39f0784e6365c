package checksheet

import (
	"errors"
	"fmt"
)

// ErrFileNotFound indicates the source document does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrInvalidDocument indicates the source document could not be used.
var ErrInvalidDocument = errors.New("invalid document")

// RenderError represents an error while rendering one sheet.
type RenderError struct {
	SheetName string
	Stage     string // "hash", "layout", "snapshot", "fit", "write", "state", "prune", "index"
	Err       error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render error in sheet %q (%s): %v", e.SheetName, e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// NewRenderError creates a new RenderError.
func NewRenderError(sheetName, stage string, err error) *RenderError {
	return &RenderError{
		SheetName: sheetName,
		Stage:     stage,
		Err:       err,
	}
}
