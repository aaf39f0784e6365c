package models

// RangeInfo describes a worksheet region used as a synchronization anchor.
type RangeInfo struct {
	// Sheet is the worksheet holding the region.
	Sheet string `json:"sheet"`
	// R1 is the start row (1-based).
	R1 int `json:"r1"`
	// C1 is the start column (1-based).
	C1 int `json:"c1"`
	// R2 is the end row (1-based, inclusive).
	R2 int `json:"r2"`
	// C2 is the end column (1-based, inclusive).
	C2 int `json:"c2"`
	// IDColumn is the offset of the identifier column within the region.
	IDColumn int `json:"id_column"`
	// IgnoreColumns are offsets excluded from merge-copy.
	IgnoreColumns []int `json:"ignore_columns,omitempty"`
	// Header holds the column names of the region's first row.
	Header []string `json:"header,omitempty"`
}

// Rows returns the number of rows in the region, header included.
func (r RangeInfo) Rows() int {
	if r.R2 < r.R1 {
		return 0
	}
	return r.R2 - r.R1 + 1
}

// Cols returns the number of columns in the region.
func (r RangeInfo) Cols() int {
	if r.C2 < r.C1 {
		return 0
	}
	return r.C2 - r.C1 + 1
}

// Ignored reports whether the column offset is excluded from merge-copy.
func (r RangeInfo) Ignored(col int) bool {
	for _, c := range r.IgnoreColumns {
		if c == col {
			return true
		}
	}
	return false
}

// RowSnapshot maps a row identifier to the values captured from that row.
type RowSnapshot struct {
	// Header is the column layout the values were captured under.
	Header []string
	// Rows maps identifier to cell values, one per column offset.
	Rows map[string][]interface{}
}

// Len returns the number of captured identifiers.
func (s *RowSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}
