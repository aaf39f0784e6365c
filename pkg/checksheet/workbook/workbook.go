// Package workbook reads and writes generated sheets in an xlsx workbook.
package workbook

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/xuri/excelize/v2"
)

// Author is recorded on comments added by the renderer.
const Author = "checksheet"

// defaultSheet is the sheet excelize creates in a new file.
const defaultSheet = "Sheet1"

// Workbook wraps an excelize file together with the styles used for
// generated cells. It is not safe for concurrent use.
type Workbook struct {
	f       *excelize.File
	path    string
	created bool
	styles  *styleSet
	logger  *slog.Logger
}

// Open opens the workbook at path, or creates an empty one when the file
// does not exist yet. Save writes it back to path.
func Open(path string, logger *slog.Logger) (*Workbook, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var (
		f       *excelize.File
		created bool
		err     error
	)
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		f = excelize.NewFile()
		created = true
	} else {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
	}
	return &Workbook{f: f, path: path, created: created, logger: logger}, nil
}

// New wraps an in-memory excelize file.
func New(f *excelize.File, logger *slog.Logger) *Workbook {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Workbook{f: f, logger: logger}
}

// File returns the underlying excelize file.
func (w *Workbook) File() *excelize.File {
	return w.f
}

// Created reports whether Open created a new workbook.
func (w *Workbook) Created() bool {
	return w.created
}

// Save writes the workbook to the path it was opened from.
func (w *Workbook) Save() error {
	if w.path == "" {
		return errors.New("workbook has no path")
	}
	if err := w.f.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Close releases the underlying file.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// HasSheet reports whether a sheet exists.
func (w *Workbook) HasSheet(name string) bool {
	idx, err := w.f.GetSheetIndex(name)
	return err == nil && idx >= 0
}

// Sheets returns the sheet names in workbook order.
func (w *Workbook) Sheets() []string {
	return w.f.GetSheetList()
}

// EnsureSheet creates the sheet when it does not exist.
func (w *Workbook) EnsureSheet(name string) error {
	if w.HasSheet(name) {
		return nil
	}
	if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", name, err)
	}
	return nil
}

// RenameSheet renames a sheet. It is a no-op when the names are equal.
func (w *Workbook) RenameSheet(from, to string) error {
	if from == to {
		return nil
	}
	if err := w.f.SetSheetName(from, to); err != nil {
		return fmt.Errorf("failed to rename sheet %q to %q: %w", from, to, err)
	}
	return nil
}

// DeleteSheet removes a sheet and its anchor name.
func (w *Workbook) DeleteSheet(name string) error {
	if !w.HasSheet(name) {
		return nil
	}
	if err := w.f.DeleteSheet(name); err != nil {
		return fmt.Errorf("failed to delete sheet %q: %w", name, err)
	}
	return nil
}

// RemoveDefaultSheet deletes the blank sheet of a newly created workbook
// once other sheets exist.
func (w *Workbook) RemoveDefaultSheet() error {
	if !w.created || !w.HasSheet(defaultSheet) || len(w.Sheets()) < 2 {
		return nil
	}
	rows, err := w.f.GetRows(defaultSheet)
	if err != nil || len(rows) > 0 {
		return err
	}
	return w.DeleteSheet(defaultSheet)
}

// Activate makes the named sheet the active one.
func (w *Workbook) Activate(name string) {
	if idx, err := w.f.GetSheetIndex(name); err == nil && idx >= 0 {
		w.f.SetActiveSheet(idx)
	}
}
