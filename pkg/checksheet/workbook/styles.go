package workbook

import (
	"github.com/ukaji3/checksheet-go/pkg/checksheet/layout"
	"github.com/xuri/excelize/v2"
)

// styleSet caches the style ids of a workbook by cell kind.
type styleSet struct {
	ids map[string]int
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "BFBFBF", Style: 1},
	{Type: "right", Color: "BFBFBF", Style: 1},
	{Type: "top", Color: "BFBFBF", Style: 1},
	{Type: "bottom", Color: "BFBFBF", Style: 1},
}

func cellStyles() map[string]*excelize.Style {
	return map[string]*excelize.Style{
		layout.CellHeader: {
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"305496"}},
			Border:    thinBorder,
			Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
		},
		layout.CellID: {
			Font:   &excelize.Font{Color: "808080", Size: 9},
			Border: thinBorder,
		},
		layout.CellSection: {
			Font:      &excelize.Font{Bold: true},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
			Border:    thinBorder,
			Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		},
		layout.CellFiller: {
			Font:   &excelize.Font{Color: "A6A6A6"},
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
			Border: thinBorder,
		},
		layout.CellItem: {
			Border:    thinBorder,
			Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		},
		layout.CellEmpty: {
			Border: thinBorder,
		},
		layout.CellValue: {
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFF2CC"}},
			Border:    thinBorder,
			Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		},
	}
}

// style returns the style id for a cell kind, creating it on first use.
func (w *Workbook) style(kind string) (int, error) {
	if w.styles == nil {
		w.styles = &styleSet{ids: make(map[string]int)}
	}
	if id, ok := w.styles.ids[kind]; ok {
		return id, nil
	}
	def, ok := cellStyles()[kind]
	if !ok {
		def = cellStyles()[layout.CellEmpty]
	}
	id, err := w.f.NewStyle(def)
	if err != nil {
		return 0, err
	}
	w.styles.ids[kind] = id
	return id, nil
}
