package workbook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
	"github.com/xuri/excelize/v2"
)

// Custom document properties holding sheet state are named
// "checksheet:<id>:<field>".
const (
	propPrefix = "checksheet:"

	fieldSheet = "sheet"
	fieldHash  = "hash"
	fieldImage = "image"
	fieldRange = "range"
)

func propName(id, field string) string {
	return propPrefix + id + ":" + field
}

// splitPropName returns the node id and field of a state property.
func splitPropName(name string) (id, field string, ok bool) {
	if !strings.HasPrefix(name, propPrefix) {
		return "", "", false
	}
	rest := name[len(propPrefix):]
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// LoadStates reads the persisted sheet states keyed by node id. Region
// bounds come from the anchor names when present, since they follow rows
// and columns inserted by hand.
func (w *Workbook) LoadStates() (map[string]*models.SheetState, error) {
	props, err := w.f.GetCustomProps()
	if err != nil {
		return nil, fmt.Errorf("failed to read custom properties: %w", err)
	}

	states := make(map[string]*models.SheetState)
	for _, prop := range props {
		id, field, ok := splitPropName(prop.Name)
		if !ok {
			continue
		}
		value, ok := prop.Value.(string)
		if !ok {
			continue
		}
		st := states[id]
		if st == nil {
			st = &models.SheetState{ID: id}
			states[id] = st
		}
		switch field {
		case fieldSheet:
			st.Sheet = value
		case fieldHash:
			st.Hash = value
		case fieldImage:
			st.ImageHash = value
		case fieldRange:
			info, err := decodeRange(value)
			if err != nil {
				w.logger.Warn("dropping unreadable range state", "id", id, "error", err)
				continue
			}
			st.Range = info
		}
	}

	anchors := w.Anchors()
	for id, st := range states {
		if st.Sheet == "" {
			delete(states, id)
			continue
		}
		st.Range.Sheet = st.Sheet
		if a, ok := anchors[AnchorName(id)]; ok && a.Sheet == st.Sheet {
			st.Range.R1, st.Range.C1, st.Range.R2, st.Range.C2 = a.R1, a.C1, a.R2, a.C2
		}
	}
	return states, nil
}

// SaveState persists a sheet state and (re)defines its anchor name.
func (w *Workbook) SaveState(st *models.SheetState) error {
	props := []excelize.CustomProperty{
		{Name: propName(st.ID, fieldSheet), Value: st.Sheet},
		{Name: propName(st.ID, fieldHash), Value: st.Hash},
		{Name: propName(st.ID, fieldImage), Value: st.ImageHash},
		{Name: propName(st.ID, fieldRange), Value: encodeRange(st.Range)},
	}
	for _, p := range props {
		if err := w.f.SetCustomProps(p); err != nil {
			return fmt.Errorf("failed to store state of %q: %w", st.ID, err)
		}
	}
	return w.SetAnchor(st.ID, st.Range)
}

// DropState removes the properties and anchor name of a sheet state.
func (w *Workbook) DropState(id string) error {
	for _, field := range []string{fieldSheet, fieldHash, fieldImage, fieldRange} {
		if err := w.f.SetCustomProps(excelize.CustomProperty{Name: propName(id, field)}); err != nil {
			return fmt.Errorf("failed to drop state of %q: %w", id, err)
		}
	}
	return w.deleteAnchor(id)
}

// encodeRange stores a region compactly as "A1:F20;<id column>;<ignore,...>".
// Custom property values are limited to 255 characters.
func encodeRange(info models.RangeInfo) string {
	ignore := make([]string, len(info.IgnoreColumns))
	for i, c := range info.IgnoreColumns {
		ignore[i] = strconv.Itoa(c)
	}
	return fmt.Sprintf("%s;%d;%s", areaRef(info), info.IDColumn, strings.Join(ignore, ","))
}

func decodeRange(s string) (models.RangeInfo, error) {
	var info models.RangeInfo
	parts := strings.Split(s, ";")
	if len(parts) != 3 {
		return info, fmt.Errorf("malformed range %q", s)
	}
	area := parseRangeToArea(parts[0])
	if area == nil {
		return info, fmt.Errorf("malformed range reference %q", parts[0])
	}
	info = *area

	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return info, fmt.Errorf("malformed id column %q", parts[1])
	}
	info.IDColumn = id

	if parts[2] != "" {
		for _, p := range strings.Split(parts[2], ",") {
			c, err := strconv.Atoi(p)
			if err != nil {
				return info, fmt.Errorf("malformed ignore column %q", p)
			}
			info.IgnoreColumns = append(info.IgnoreColumns, c)
		}
	}
	return info, nil
}
