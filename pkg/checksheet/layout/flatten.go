package layout

import (
	"fmt"
	"strings"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/tree"
)

// Formatter rewrites labels and initial values while a grid is built.
type Formatter interface {
	FormatLabel(n *models.TreeNode, depth int) (string, error)
	FormatValue(column string, value interface{}, n *models.TreeNode) (interface{}, error)
}

// Options configures Flatten.
type Options struct {
	// Columns are the value column names.
	Columns []string
	// IDHeader is the identifier column title.
	IDHeader string
	// LevelHeader is a format string for label column titles, e.g. "Level %d".
	LevelHeader string
	// Formatter optionally rewrites labels and values.
	Formatter Formatter
}

// DefaultOptions returns options with the standard headers.
func DefaultOptions(columns []string) Options {
	return Options{
		Columns:     columns,
		IDHeader:    "ID",
		LevelHeader: "Level %d",
	}
}

// Flatten lays root out as a grid. Every leaf becomes one row; its ancestor
// chain, root excluded, fills the label columns up to its own label. A shared
// ancestor is written on the first row of its run and left nil (kind
// CellFiller) on the following rows.
func Flatten(root *models.TreeNode, opts Options) (*Grid, error) {
	if opts.IDHeader == "" {
		opts.IDHeader = "ID"
	}
	if opts.LevelHeader == "" {
		opts.LevelHeader = "Level %d"
	}

	depth := tree.Depth(root)
	width := 1 + depth + len(opts.Columns)

	g := &Grid{
		Header:       make([]string, 0, width),
		IDColumn:     0,
		LabelColumns: depth,
	}
	g.Header = append(g.Header, opts.IDHeader)
	for i := 1; i <= depth; i++ {
		g.Header = append(g.Header, fmt.Sprintf(opts.LevelHeader, i))
	}
	g.Header = append(g.Header, opts.Columns...)

	if root.Image != "" {
		g.Images = append(g.Images, ImageAnchor{Row: -1, Col: g.IDColumn, Ref: root.Image, NodeID: root.ID})
	}

	b := &builder{grid: g, opts: opts, width: width}
	for _, child := range root.Children {
		if err := b.visit(child, []*models.TreeNode{child}); err != nil {
			return nil, err
		}
	}
	return g, nil
}

type builder struct {
	grid  *Grid
	opts  Options
	width int
	prev  []*models.TreeNode
}

func (b *builder) visit(n *models.TreeNode, chain []*models.TreeNode) error {
	if !n.IsLeaf() {
		for _, child := range n.Children {
			next := make([]*models.TreeNode, len(chain), len(chain)+1)
			copy(next, chain)
			if err := b.visit(child, append(next, child)); err != nil {
				return err
			}
		}
		return nil
	}
	return b.emit(chain)
}

// emit appends the row for the leaf at the end of chain.
func (b *builder) emit(chain []*models.TreeNode) error {
	g := b.grid
	row := make([]interface{}, b.width)
	kinds := make([]string, b.width)
	for i := range kinds {
		kinds[i] = CellEmpty
	}
	rowIdx := len(g.Rows)
	leaf := chain[len(chain)-1]

	row[g.IDColumn] = leaf.ID
	kinds[g.IDColumn] = CellID

	shared := true
	for level, node := range chain {
		col := g.IDColumn + 1 + level
		isLeaf := level == len(chain)-1
		if !isLeaf && shared && level < len(b.prev) && b.prev[level] == node {
			kinds[col] = CellFiller
			continue
		}
		shared = false

		label := node.Label()
		if b.opts.Formatter != nil {
			formatted, err := b.opts.Formatter.FormatLabel(node, level+1)
			if err != nil {
				return err
			}
			label = formatted
		}
		row[col] = label
		if isLeaf {
			kinds[col] = CellItem
		} else {
			kinds[col] = CellSection
		}
		if node.Image != "" {
			g.Images = append(g.Images, ImageAnchor{Row: rowIdx, Col: col, Ref: node.Image, NodeID: node.ID})
		}
	}

	first := g.IDColumn + 1 + g.LabelColumns
	for i, column := range b.opts.Columns {
		col := first + i
		kinds[col] = CellValue
		value, ok := leaf.Values[column]
		if b.opts.Formatter != nil {
			formatted, err := b.opts.Formatter.FormatValue(column, value, leaf)
			if err != nil {
				return err
			}
			value, ok = formatted, formatted != nil
		}
		if !ok || value == nil {
			continue
		}
		cellValue, err := toCellValue(value)
		if err != nil {
			return fmt.Errorf("node %q column %q: %w", leaf.ID, column, err)
		}
		row[col] = cellValue
	}

	g.Rows = append(g.Rows, row)
	g.Kinds = append(g.Kinds, kinds)
	b.prev = chain
	return nil
}

// toCellValue converts an initial value to a cell value. Strings starting
// with "=" become formulas after validation.
func toCellValue(v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "=") || len(s) == 1 {
		return v, nil
	}
	if err := ValidateFormula(s); err != nil {
		return nil, err
	}
	return Formula(strings.TrimPrefix(s, "=")), nil
}
