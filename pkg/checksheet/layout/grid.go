// Package layout flattens sheet trees into rectangular cell grids.
package layout

// Cell kinds recorded alongside grid values for styling.
const (
	CellHeader  = "header"
	CellID      = "id"
	CellSection = "section"
	CellItem    = "item"
	CellFiller  = "filler"
	CellEmpty   = "empty"
	CellValue   = "value"
)

// Formula is a cell value that is written as a formula.
type Formula string

// Styled is a cell value read back from a sheet together with the style of
// its cell, so a rewrite keeps the number format the user applied. Value
// may be nil for an empty but formatted cell.
type Styled struct {
	Value interface{}
	Style int
}

// ImageAnchor places a node image on a grid cell.
type ImageAnchor struct {
	// Row and Col are 0-based offsets within the grid.
	Row    int
	Col    int
	Ref    string
	NodeID string
}

// Grid is a rectangular block of cells: a header row followed by one row per
// leaf. All rows have len(Header) cells.
type Grid struct {
	Header []string
	// Rows holds data rows, header excluded. A nil cell is empty.
	Rows [][]interface{}
	// Kinds parallels Rows with the cell kind of every cell.
	Kinds [][]string
	// IDColumn is the offset of the identifier column.
	IDColumn int
	// LabelColumns is the number of label columns following IDColumn.
	LabelColumns int
	// Images lists image anchors in document order.
	Images []ImageAnchor
}

// Width returns the number of columns.
func (g *Grid) Width() int {
	return len(g.Header)
}

// Height returns the number of rows, header included.
func (g *Grid) Height() int {
	return len(g.Rows) + 1
}

// GeneratedColumns returns the offsets whose values are always regenerated:
// the identifier and label columns.
func (g *Grid) GeneratedColumns() []int {
	cols := []int{g.IDColumn}
	for i := 0; i < g.LabelColumns; i++ {
		cols = append(cols, g.IDColumn+1+i)
	}
	return cols
}

// ApplyFiller replaces the nulled repeats of shared ancestors with filler.
// An empty filler leaves them blank.
func (g *Grid) ApplyFiller(filler string) {
	if filler == "" {
		return
	}
	for r, kinds := range g.Kinds {
		for c, kind := range kinds {
			if kind == CellFiller && g.Rows[r][c] == nil {
				g.Rows[r][c] = filler
			}
		}
	}
}

// RowID returns the identifier of a data row, or "" when it is empty.
func (g *Grid) RowID(row int) string {
	if s, ok := g.Rows[row][g.IDColumn].(string); ok {
		return s
	}
	return ""
}
