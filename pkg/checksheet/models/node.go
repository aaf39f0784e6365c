// Package models defines the data structures shared by the checksheet packages.
package models

// Node kinds. Kind is free-form in source documents; these are the values
// assigned by default and recognized by the workbook styles.
const (
	KindSheet   = "sheet"
	KindSection = "section"
	KindItem    = "item"
)

// TreeNode is a single entry of the hierarchical source document.
type TreeNode struct {
	// ID names the node. It must be unique within a document.
	ID string `json:"id" yaml:"id"`
	// Text is the display label.
	Text string `json:"text" yaml:"text"`
	// Kind is sheet, section or item (or a custom kind).
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Image is an optional file reference relative to the image directory.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
	// Values holds optional initial values keyed by value column name.
	Values map[string]interface{} `json:"values,omitempty" yaml:"values,omitempty"`
	// Children is the ordered list of child nodes.
	Children []*TreeNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n *TreeNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// Label returns the node text, falling back to the id.
func (n *TreeNode) Label() string {
	if n.Text != "" {
		return n.Text
	}
	return n.ID
}
