package tree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
)

// ErrEmptyDocument indicates a document without sheets.
var ErrEmptyDocument = errors.New("document has no sheets")

// ValidationError reports a structural problem with a node.
type ValidationError struct {
	Path   string
	NodeID string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("invalid node at %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid node %q at %s: %s", e.NodeID, e.Path, e.Reason)
}

// Validate checks that every node has an id and that ids are unique across
// the document. Root ids must differ from models.IndexStateID. Column names
// must be unique too.
func Validate(doc *models.Document) error {
	if doc == nil || len(doc.Sheets) == 0 {
		return ErrEmptyDocument
	}

	if err := uniqueNames("columns", doc.Columns); err != nil {
		return err
	}
	if err := uniqueNames("indexColumns", doc.IndexColumns); err != nil {
		return err
	}

	seen := make(map[string]string)
	var check func(n *models.TreeNode, path string) error
	check = func(n *models.TreeNode, path string) error {
		if n == nil {
			return &ValidationError{Path: path, Reason: "null node"}
		}
		if strings.TrimSpace(n.ID) == "" {
			return &ValidationError{Path: path, Reason: "missing id"}
		}
		if prev, ok := seen[n.ID]; ok {
			return &ValidationError{Path: path, NodeID: n.ID, Reason: "duplicate id, first seen at " + prev}
		}
		seen[n.ID] = path
		for i, child := range n.Children {
			if err := check(child, fmt.Sprintf("%s/%d", path, i)); err != nil {
				return err
			}
		}
		return nil
	}

	for i, root := range doc.Sheets {
		path := fmt.Sprintf("sheets/%d", i)
		if root != nil && root.ID == models.IndexStateID {
			return &ValidationError{Path: path, NodeID: root.ID, Reason: "reserved id"}
		}
		if err := check(root, path); err != nil {
			return err
		}
	}
	return nil
}

func uniqueNames(field string, names []string) error {
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if name == "" {
			return &ValidationError{Path: fmt.Sprintf("%s/%d", field, i), Reason: "empty column name"}
		}
		if seen[name] {
			return &ValidationError{Path: fmt.Sprintf("%s/%d", field, i), Reason: "duplicate column " + name}
		}
		seen[name] = true
	}
	return nil
}
