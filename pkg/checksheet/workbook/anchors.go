package workbook

import (
	"fmt"
	"strings"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
	"github.com/xuri/excelize/v2"
)

// Anchors returns the regions of all renderer-owned defined names, keyed by
// name.
func (w *Workbook) Anchors() map[string]models.RangeInfo {
	result := make(map[string]models.RangeInfo)
	for _, dn := range w.f.GetDefinedName() {
		if !strings.HasPrefix(dn.Name, anchorPrefix) {
			continue
		}
		sheet, area := parseReference(dn.RefersTo)
		if sheet == "" || area == nil {
			continue
		}
		area.Sheet = sheet
		result[dn.Name] = *area
	}
	return result
}

// SetAnchor defines the workbook-scoped name of a node's region.
func (w *Workbook) SetAnchor(id string, info models.RangeInfo) error {
	if err := w.deleteAnchor(id); err != nil {
		return err
	}
	if info.Sheet == "" || info.Rows() == 0 || info.Cols() == 0 {
		return nil
	}
	err := w.f.SetDefinedName(&excelize.DefinedName{
		Name:     AnchorName(id),
		Comment:  "checksheet region of " + id,
		RefersTo: reference(info),
	})
	if err != nil {
		return fmt.Errorf("failed to define anchor for %q: %w", id, err)
	}
	return nil
}

func (w *Workbook) deleteAnchor(id string) error {
	name := AnchorName(id)
	for _, dn := range w.f.GetDefinedName() {
		if dn.Name != name {
			continue
		}
		if err := w.f.DeleteDefinedName(&excelize.DefinedName{Name: name, Scope: dn.Scope}); err != nil {
			return fmt.Errorf("failed to delete anchor for %q: %w", id, err)
		}
	}
	return nil
}

// reference formats a region as 'Sheet'!$A$1:$D$10.
func reference(info models.RangeInfo) string {
	start, _ := excelize.CoordinatesToCellName(info.C1, info.R1, true)
	end, _ := excelize.CoordinatesToCellName(info.C2, info.R2, true)
	return fmt.Sprintf("%s!%s:%s", quoteSheet(info.Sheet), start, end)
}

// areaRef formats a region without sheet, e.g. A1:D10.
func areaRef(info models.RangeInfo) string {
	start, _ := excelize.CoordinatesToCellName(info.C1, info.R1)
	end, _ := excelize.CoordinatesToCellName(info.C2, info.R2)
	return start + ":" + end
}

// parseReference parses 'SheetName'!$A$1:$D$10 or SheetName!$A$1:$D$10.
func parseReference(ref string) (string, *models.RangeInfo) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "=")
	idx := strings.LastIndex(ref, "!")
	if idx < 0 {
		return "", nil
	}
	return unquoteSheet(ref[:idx]), parseRangeToArea(ref[idx+1:])
}

// parseRangeToArea parses a range string like $A$1:$D$10.
func parseRangeToArea(rangeStr string) *models.RangeInfo {
	rangeStr = strings.ReplaceAll(rangeStr, "$", "")

	parts := strings.Split(rangeStr, ":")
	if len(parts) != 2 {
		return nil
	}

	startCol, startRow, err := excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return nil
	}
	endCol, endRow, err := excelize.CellNameToCoordinates(parts[1])
	if err != nil {
		return nil
	}

	return &models.RangeInfo{
		R1: startRow,
		C1: startCol,
		R2: endRow,
		C2: endCol,
	}
}
