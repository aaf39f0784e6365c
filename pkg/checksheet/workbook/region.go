package workbook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/layout"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
	"github.com/xuri/excelize/v2"
)

// ReadRegion returns the header and data rows of a region. Cells are typed
// by their stored type: strings stay text even when they look numeric,
// booleans become bool and numbers are parsed from their raw text. Cells
// holding formulas are returned as layout.Formula so they survive a
// rewrite. Empty cells are nil. The identifier column is always returned as
// text. Outside the identifier and ignored columns, a cell carrying a style
// is wrapped in layout.Styled so a rewrite keeps its number format.
func (w *Workbook) ReadRegion(info models.RangeInfo) ([]string, [][]interface{}, error) {
	rows, err := w.f.GetRows(info.Sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, err
	}

	cols := info.Cols()
	var header []string
	var data [][]interface{}
	for r := info.R1; r <= info.R2; r++ {
		var raw []string
		if r-1 < len(rows) {
			raw = rows[r-1]
		}

		if r == info.R1 {
			header = make([]string, cols)
			for c := 0; c < cols; c++ {
				header[c] = cellAt(raw, info.C1+c)
			}
			continue
		}

		row := make([]interface{}, cols)
		for c := 0; c < cols; c++ {
			value := cellAt(raw, info.C1+c)
			if c == info.IDColumn {
				if value != "" {
					row[c] = value
				}
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(info.C1+c, r)
			v, err := w.readCell(info.Sheet, cell, value)
			if err != nil {
				return nil, nil, err
			}
			if info.Ignored(c) {
				row[c] = v
				continue
			}
			style, err := w.f.GetCellStyle(info.Sheet, cell)
			if err != nil {
				return nil, nil, err
			}
			if style != 0 {
				v = layout.Styled{Value: v, Style: style}
			}
			row[c] = v
		}
		data = append(data, row)
	}
	return header, data, nil
}

// readCell converts the raw text of a cell according to its stored type.
func (w *Workbook) readCell(sheet, cell, raw string) (interface{}, error) {
	if formula, err := w.f.GetCellFormula(sheet, cell); err == nil && formula != "" {
		return layout.Formula(formula), nil
	}
	if raw == "" {
		return nil, nil
	}
	typ, err := w.f.GetCellType(sheet, cell)
	if err != nil {
		return nil, err
	}
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		return parseValue(raw), nil
	default:
		return raw, nil
	}
}

func cellAt(row []string, col int) string {
	if col-1 < len(row) {
		return row[col-1]
	}
	return ""
}

// parseValue attempts to parse a string value as a number.
// Returns int64 for integers, float64 for decimals, or the original string.
func parseValue(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// DetectRegion returns the bounding box of the non-empty cells of a sheet.
// It recovers a region whose anchor name was lost. ok is false for an empty
// sheet.
func (w *Workbook) DetectRegion(sheet string) (info models.RangeInfo, ok bool, err error) {
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return info, false, err
	}
	minRow, maxRow, minCol, maxCol := findDataBounds(rows)
	if minRow < 0 {
		return info, false, nil
	}
	return models.RangeInfo{
		Sheet: sheet,
		R1:    minRow + 1,
		C1:    minCol + 1,
		R2:    maxRow + 1,
		C2:    maxCol + 1,
	}, true, nil
}

// findDataBounds finds the bounding box of non-empty cells.
func findDataBounds(rows [][]string) (minRow, maxRow, minCol, maxCol int) {
	minRow, maxRow = -1, -1
	minCol, maxCol = -1, -1

	for rowIdx, row := range rows {
		for colIdx, cell := range row {
			if cell == "" {
				continue
			}
			if minRow < 0 || rowIdx < minRow {
				minRow = rowIdx
			}
			if maxRow < 0 || rowIdx > maxRow {
				maxRow = rowIdx
			}
			if minCol < 0 || colIdx < minCol {
				minCol = colIdx
			}
			if maxCol < 0 || colIdx > maxCol {
				maxCol = colIdx
			}
		}
	}
	return
}

// FitRegion inserts or removes rows and columns at the end of old so that
// it spans exactly rows x cols, shifting content outside the region. It
// returns the resized region.
func (w *Workbook) FitRegion(old models.RangeInfo, rows, cols int) (models.RangeInfo, error) {
	sheet := old.Sheet
	fit := old

	switch diff := rows - old.Rows(); {
	case diff > 0:
		if err := w.f.InsertRows(sheet, old.R2+1, diff); err != nil {
			return old, fmt.Errorf("failed to insert rows: %w", err)
		}
	case diff < 0:
		for i := 0; i < -diff; i++ {
			if err := w.f.RemoveRow(sheet, old.R2-i); err != nil {
				return old, fmt.Errorf("failed to remove row: %w", err)
			}
		}
	}
	fit.R2 = old.R1 + rows - 1

	switch diff := cols - old.Cols(); {
	case diff > 0:
		name, err := excelize.ColumnNumberToName(old.C2 + 1)
		if err != nil {
			return old, err
		}
		if err := w.f.InsertCols(sheet, name, diff); err != nil {
			return old, fmt.Errorf("failed to insert columns: %w", err)
		}
	case diff < 0:
		for i := 0; i < -diff; i++ {
			name, err := excelize.ColumnNumberToName(old.C2 - i)
			if err != nil {
				return old, err
			}
			if err := w.f.RemoveCol(sheet, name); err != nil {
				return old, fmt.Errorf("failed to remove column: %w", err)
			}
		}
	}
	fit.C2 = old.C1 + cols - 1
	return fit, nil
}

// ClearRegion empties the cells of a region and removes the comments and
// pictures the renderer placed inside it.
func (w *Workbook) ClearRegion(info models.RangeInfo) error {
	inside := func(cell string) bool {
		c, r, err := excelize.CellNameToCoordinates(cell)
		return err == nil && r >= info.R1 && r <= info.R2 && c >= info.C1 && c <= info.C2
	}

	comments, err := w.f.GetComments(info.Sheet)
	if err != nil {
		return err
	}
	for _, cm := range comments {
		if cm.Author == Author && inside(cm.Cell) {
			if err := w.f.DeleteComment(info.Sheet, cm.Cell); err != nil {
				return err
			}
		}
	}

	cells, err := w.f.GetPictureCells(info.Sheet)
	if err != nil {
		return err
	}
	for _, cell := range cells {
		if inside(cell) {
			if err := w.f.DeletePicture(info.Sheet, cell); err != nil {
				return err
			}
		}
	}

	for r := info.R1; r <= info.R2; r++ {
		for c := info.C1; c <= info.C2; c++ {
			cell, _ := excelize.CoordinatesToCellName(c, r)
			if formula, _ := w.f.GetCellFormula(info.Sheet, cell); formula != "" {
				if err := w.f.SetCellFormula(info.Sheet, cell, ""); err != nil {
					return err
				}
			}
			if err := w.f.SetCellValue(info.Sheet, cell, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
