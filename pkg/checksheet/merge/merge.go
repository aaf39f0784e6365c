// Package merge carries user-entered cell values across sheet regeneration
// by matching rows on a stable identifier column.
package merge

import (
	"fmt"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
)

// Identifier converts an identifier cell to its key. Nil and empty cells
// yield "", which never matches.
func Identifier(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// Capture builds a snapshot of data rows keyed by the value in idColumn.
// Rows without an identifier are skipped; for duplicate identifiers the
// later row wins.
func Capture(header []string, rows [][]interface{}, idColumn int) *models.RowSnapshot {
	snap := &models.RowSnapshot{
		Header: append([]string(nil), header...),
		Rows:   make(map[string][]interface{}, len(rows)),
	}
	width := len(header)
	for _, row := range rows {
		if idColumn >= len(row) {
			continue
		}
		id := Identifier(row[idColumn])
		if id == "" {
			continue
		}
		n := width
		if len(row) > n {
			n = len(row)
		}
		values := make([]interface{}, n)
		copy(values, row)
		snap.Rows[id] = values
	}
	return snap
}

// Project re-keys snap onto newHeader by column name. It returns the
// projected snapshot and the offsets of columns unknown to the old header,
// which must be ignored by Merge so their generated values survive.
func Project(snap *models.RowSnapshot, newHeader []string) (*models.RowSnapshot, []int) {
	oldIndex := make(map[string]int, len(snap.Header))
	for i, name := range snap.Header {
		if _, dup := oldIndex[name]; !dup {
			oldIndex[name] = i
		}
	}

	var unknown []int
	mapping := make([]int, len(newHeader))
	for j, name := range newHeader {
		i, ok := oldIndex[name]
		if !ok {
			i = -1
			unknown = append(unknown, j)
		}
		mapping[j] = i
	}

	out := &models.RowSnapshot{
		Header: append([]string(nil), newHeader...),
		Rows:   make(map[string][]interface{}, len(snap.Rows)),
	}
	for id, values := range snap.Rows {
		projected := make([]interface{}, len(newHeader))
		for j, i := range mapping {
			if i >= 0 && i < len(values) {
				projected[j] = values[i]
			}
		}
		out.Rows[id] = projected
	}
	return out, unknown
}

// Merge returns a copy of rows where every row whose identifier is present
// in snap has its non-ignored columns overwritten with the snapshot values.
// Unmatched rows, rows with an empty identifier and ignored columns keep the
// generated values. The second result counts the matched rows.
func Merge(rows [][]interface{}, idColumn int, ignore []int, snap *models.RowSnapshot) ([][]interface{}, int) {
	skip := make(map[int]bool, len(ignore)+1)
	for _, c := range ignore {
		skip[c] = true
	}
	skip[idColumn] = true

	out := make([][]interface{}, len(rows))
	matched := 0
	for r, row := range rows {
		merged := append([]interface{}(nil), row...)
		out[r] = merged
		if snap.Len() == 0 || idColumn >= len(row) {
			continue
		}
		id := Identifier(row[idColumn])
		if id == "" {
			continue
		}
		values, ok := snap.Rows[id]
		if !ok {
			continue
		}
		matched++
		for c := range merged {
			if skip[c] || c >= len(values) {
				continue
			}
			merged[c] = values[c]
		}
	}
	return out, matched
}
