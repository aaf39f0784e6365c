package tree

import (
	"github.com/tiendc/go-deepcopy"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
)

// Walk visits n and its descendants in pre-order. depth is the depth of n.
// Returning false from fn skips the node's children.
func Walk(n *models.TreeNode, depth int, fn func(n *models.TreeNode, depth int) bool) {
	if n == nil {
		return
	}
	if !fn(n, depth) {
		return
	}
	for _, child := range n.Children {
		Walk(child, depth+1, fn)
	}
}

// Leaves returns the leaves below root in document order. The root itself
// denotes the sheet and is never returned.
func Leaves(root *models.TreeNode) []*models.TreeNode {
	var leaves []*models.TreeNode
	for _, child := range root.Children {
		Walk(child, 1, func(n *models.TreeNode, _ int) bool {
			if n.IsLeaf() {
				leaves = append(leaves, n)
			}
			return true
		})
	}
	return leaves
}

// Depth returns the number of label levels below root.
func Depth(root *models.TreeNode) int {
	deepest := 0
	for _, child := range root.Children {
		Walk(child, 1, func(_ *models.TreeNode, depth int) bool {
			if depth > deepest {
				deepest = depth
			}
			return true
		})
	}
	return deepest
}

// ImageRefs lists the image references of root's subtree in pre-order.
func ImageRefs(root *models.TreeNode) []string {
	var refs []string
	Walk(root, 0, func(n *models.TreeNode, _ int) bool {
		if n.Image != "" {
			refs = append(refs, n.Image)
		}
		return true
	})
	return refs
}

// Clone returns a deep copy of n.
func Clone(n *models.TreeNode) (*models.TreeNode, error) {
	if n == nil {
		return nil, nil
	}
	var out models.TreeNode
	if err := deepcopy.Copy(&out, *n); err != nil {
		return nil, err
	}
	return &out, nil
}
