package workbook

import (
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/hash"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/layout"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
	"github.com/xuri/excelize/v2"
)

// WriteOptions configures WriteGrid.
type WriteOptions struct {
	// ImageDir resolves relative image references.
	ImageDir string
	// ImageScale scales pictures; zero means 1.
	ImageScale float64
	// IDWidth, LabelWidth and ValueWidth are column widths in characters.
	IDWidth    float64
	LabelWidth float64
	ValueWidth float64
}

// DefaultWriteOptions returns the standard column widths.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		ImageScale: 1,
		IDWidth:    14,
		LabelWidth: 28,
		ValueWidth: 20,
	}
}

// WriteGrid writes the grid header and rows with the header at the origin
// of at (at.R1 and at.C1, defaulting to A1) on sheet at.Sheet, styles the
// cells and places the node pictures. rows replaces g.Rows so merged values
// can be written; it must have the same shape. The written region is
// returned with the grid's identifier, and the generated columns plus
// at.IgnoreColumns as ignored columns, along with the image files that exist
// but could not be placed.
func (w *Workbook) WriteGrid(at models.RangeInfo, g *layout.Grid, rows [][]interface{}, opts WriteOptions) (models.RangeInfo, []string, error) {
	r1, c1 := at.R1, at.C1
	if r1 < 1 {
		r1 = 1
	}
	if c1 < 1 {
		c1 = 1
	}
	sheet := at.Sheet
	info := models.RangeInfo{
		Sheet:         sheet,
		R1:            r1,
		C1:            c1,
		R2:            r1 + g.Height() - 1,
		C2:            c1 + g.Width() - 1,
		IDColumn:      g.IDColumn,
		IgnoreColumns: unionColumns(g.GeneratedColumns(), at.IgnoreColumns),
		Header:        append([]string(nil), g.Header...),
	}
	if rows == nil {
		rows = g.Rows
	}
	if len(rows) != len(g.Rows) {
		return info, nil, fmt.Errorf("sheet %q: %d rows for a grid of %d", sheet, len(rows), len(g.Rows))
	}

	headerStyle, err := w.style(layout.CellHeader)
	if err != nil {
		return info, nil, err
	}
	for c, title := range g.Header {
		cell, _ := excelize.CoordinatesToCellName(info.C1+c, info.R1)
		if err := w.f.SetCellValue(sheet, cell, title); err != nil {
			return info, nil, err
		}
		if err := w.f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return info, nil, err
		}
	}

	for r, row := range rows {
		for c := 0; c < g.Width(); c++ {
			cell, _ := excelize.CoordinatesToCellName(info.C1+c, info.R1+1+r)
			var value interface{}
			if c < len(row) {
				value = row[c]
			}
			styleID, err := w.style(g.Kinds[r][c])
			if err != nil {
				return info, nil, err
			}
			if v, ok := value.(layout.Styled); ok {
				value = v.Value
				if v.Style != 0 {
					styleID = v.Style
				}
			}
			if err := w.setCell(sheet, cell, value); err != nil {
				return info, nil, fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
			}
			if err := w.f.SetCellStyle(sheet, cell, cell, styleID); err != nil {
				return info, nil, err
			}
		}
	}

	if err := w.setColumnWidths(sheet, info.C1, g, opts); err != nil {
		return info, nil, err
	}
	topLeft, _ := excelize.CoordinatesToCellName(1, info.R1+1)
	if err := w.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      info.R1,
		TopLeftCell: topLeft,
		ActivePane:  "bottomLeft",
	}); err != nil {
		return info, nil, err
	}
	failed, err := w.placeImages(sheet, info, g.Images, opts)
	return info, failed, err
}

func unionColumns(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, c := range append(append([]int(nil), a...), b...) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Ints(out)
	return out
}

func (w *Workbook) setCell(sheet, cell string, value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case layout.Formula:
		return w.f.SetCellFormula(sheet, cell, string(v))
	default:
		return w.f.SetCellValue(sheet, cell, v)
	}
}

func (w *Workbook) setColumnWidths(sheet string, c1 int, g *layout.Grid, opts WriteOptions) error {
	for c := 0; c < g.Width(); c++ {
		width := opts.ValueWidth
		switch {
		case c == g.IDColumn:
			width = opts.IDWidth
		case c > g.IDColumn && c <= g.IDColumn+g.LabelColumns:
			width = opts.LabelWidth
		}
		if width <= 0 {
			continue
		}
		name, err := excelize.ColumnNumberToName(c1 + c)
		if err != nil {
			return err
		}
		if err := w.f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}
	return nil
}

// placeImages adds a picture and a comment naming the image on the cell of
// each anchor. Missing files are skipped; they are reported by the hash pass.
// Files excelize cannot embed are returned.
func (w *Workbook) placeImages(sheet string, info models.RangeInfo, anchors []layout.ImageAnchor, opts WriteOptions) ([]string, error) {
	if len(anchors) == 0 {
		return nil, nil
	}
	commented := make(map[string]bool)
	comments, err := w.f.GetComments(sheet)
	if err != nil {
		return nil, err
	}
	for _, cm := range comments {
		commented[cm.Cell] = true
	}

	var failed []string
	scale := opts.ImageScale
	if scale <= 0 {
		scale = 1
	}

	for _, a := range anchors {
		cell, _ := excelize.CoordinatesToCellName(info.C1+a.Col, info.R1+1+a.Row)
		path := hash.ResolveImage(opts.ImageDir, a.Ref)
		if _, err := os.Stat(path); err != nil {
			w.logger.Debug("image not found", "sheet", sheet, "node", a.NodeID, "path", path)
			continue
		}

		err := w.f.AddPicture(sheet, cell, path, &excelize.GraphicOptions{
			AltText:         a.Ref,
			ScaleX:          scale,
			ScaleY:          scale,
			LockAspectRatio: true,
			Positioning:     "oneCell",
		})
		if err != nil {
			w.logger.Warn("failed to add picture", "sheet", sheet, "node", a.NodeID, "path", path, "error", err)
			failed = append(failed, path)
			continue
		}

		if commented[cell] {
			continue
		}
		if err := w.f.AddComment(sheet, excelize.Comment{
			Cell:   cell,
			Author: Author,
			Text:   "Image: " + a.Ref,
		}); err != nil {
			return failed, err
		}
		commented[cell] = true
	}
	return failed, nil
}
