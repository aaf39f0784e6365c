package models

// Document is a parsed source document: a forest of sheet trees plus the
// column definitions shared by every generated sheet.
type Document struct {
	// Title is shown on the index sheet.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	// Columns are the value column names laid out right of the label columns.
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	// IndexColumns are user metadata columns appended to the index sheet.
	IndexColumns []string `json:"indexColumns,omitempty" yaml:"indexColumns,omitempty"`
	// Sheets holds one root node per worksheet.
	Sheets []*TreeNode `json:"sheets" yaml:"sheets"`
}
