// Package tree loads and validates hierarchical source documents.
package tree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a source document.
type Format string

const (
	// FormatJSON is a JSON document.
	FormatJSON Format = "json"
	// FormatYAML is a YAML document.
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the document format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and parses the document at path.
func Load(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Parse(data, FormatFromPath(path))
}

// Parse decodes a document, assigns default kinds and validates node ids.
func Parse(data []byte, format Format) (*models.Document, error) {
	var doc models.Document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse yaml document: %w", err)
		}
	case FormatJSON, "":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse json document: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported document format: %s", format)
	}

	applyKinds(&doc)
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// applyKinds fills empty kinds: roots are sheets, interior nodes sections
// and leaves items.
func applyKinds(doc *models.Document) {
	for _, root := range doc.Sheets {
		if root == nil {
			continue
		}
		if root.Kind == "" {
			root.Kind = models.KindSheet
		}
		for _, child := range root.Children {
			Walk(child, 1, func(n *models.TreeNode, _ int) bool {
				if n.Kind == "" {
					if n.IsLeaf() {
						n.Kind = models.KindItem
					} else {
						n.Kind = models.KindSection
					}
				}
				return true
			})
		}
	}
}

// Prepare returns a deep copy of doc with empty kinds filled in, leaving doc
// untouched. Documents built in code instead of parsed get the same kinds,
// and so the same hashes, as their parsed equivalent.
func Prepare(doc *models.Document) (*models.Document, error) {
	if doc == nil {
		return nil, ErrEmptyDocument
	}
	out := &models.Document{
		Title:        doc.Title,
		Columns:      append([]string(nil), doc.Columns...),
		IndexColumns: append([]string(nil), doc.IndexColumns...),
		Sheets:       make([]*models.TreeNode, len(doc.Sheets)),
	}
	for i, root := range doc.Sheets {
		clone, err := Clone(root)
		if err != nil {
			return nil, fmt.Errorf("failed to copy sheet %d: %w", i, err)
		}
		out.Sheets[i] = clone
	}
	applyKinds(out)
	return out, nil
}
