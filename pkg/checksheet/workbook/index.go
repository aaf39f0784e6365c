package workbook

import (
	"github.com/ukaji3/checksheet-go/pkg/checksheet/layout"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
	"github.com/xuri/excelize/v2"
)

// indexSheetColumn is the offset of the hyperlinked sheet name column.
const indexSheetColumn = 1

// IndexEntry is one row of the index sheet.
type IndexEntry struct {
	ID    string
	Sheet string
	Title string
	Items int
}

// IndexGrid lays out the index sheet: generated ID, Sheet, Title and Items
// columns followed by the user metadata columns.
func IndexGrid(entries []IndexEntry, columns []string) *layout.Grid {
	g := &layout.Grid{
		Header:       append([]string{"ID", "Sheet", "Title", "Items"}, columns...),
		IDColumn:     0,
		LabelColumns: 3,
	}
	for _, e := range entries {
		row := make([]interface{}, g.Width())
		kinds := make([]string, g.Width())
		row[0], kinds[0] = e.ID, layout.CellID
		row[1], kinds[1] = e.Sheet, layout.CellItem
		row[2], kinds[2] = e.Title, layout.CellItem
		row[3], kinds[3] = e.Items, layout.CellItem
		for c := 4; c < g.Width(); c++ {
			kinds[c] = layout.CellValue
		}
		g.Rows = append(g.Rows, row)
		g.Kinds = append(g.Kinds, kinds)
	}
	return g
}

// LinkIndex turns the sheet names of an index region into hyperlinks to
// the sheets.
func (w *Workbook) LinkIndex(info models.RangeInfo, rows [][]interface{}) error {
	for r, row := range rows {
		name, ok := row[indexSheetColumn].(string)
		if !ok || name == "" || !w.HasSheet(name) {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(info.C1+indexSheetColumn, info.R1+1+r)
		if err := w.f.SetCellHyperLink(info.Sheet, cell, quoteSheet(name)+"!A1", "Location"); err != nil {
			return err
		}
	}
	return nil
}
