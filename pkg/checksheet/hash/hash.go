// Package hash computes the content and image digests used to decide
// whether a sheet needs regeneration.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
)

// canonicalNode is the serialized form hashed by ContentHash. Map keys are
// sorted by encoding/json; children keep document order.
type canonicalNode struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text,omitempty"`
	Kind     string                 `json:"kind,omitempty"`
	Image    string                 `json:"image,omitempty"`
	Values   map[string]interface{} `json:"values,omitempty"`
	Children []canonicalNode        `json:"children,omitempty"`
}

func canonicalize(n *models.TreeNode, withText bool) canonicalNode {
	c := canonicalNode{
		ID:     n.ID,
		Kind:   n.Kind,
		Image:  n.Image,
		Values: n.Values,
	}
	if withText {
		c.Text = n.Text
	}
	for _, child := range n.Children {
		if child == nil {
			continue
		}
		c.Children = append(c.Children, canonicalize(child, true))
	}
	return c
}

// ContentHash returns the hex SHA-256 of root's subtree and the value
// columns it is laid out with. The root label is excluded so renaming a
// sheet never changes its hash.
func ContentHash(root *models.TreeNode, columns []string) (string, error) {
	data, err := json.Marshal(struct {
		Columns []string      `json:"columns,omitempty"`
		Node    canonicalNode `json:"node"`
	}{columns, canonicalize(root, false)})
	if err != nil {
		return "", fmt.Errorf("failed to serialize node %q: %w", root.ID, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ImageHash returns the combined hex SHA-256 of the referenced files, in
// order, resolved against baseDir. Files that cannot be read are returned in
// missing and contribute only their name to the digest.
func ImageHash(baseDir string, refs []string) (digest string, missing []string, err error) {
	h := sha256.New()
	for _, ref := range refs {
		path := ResolveImage(baseDir, ref)
		fmt.Fprintf(h, "%s\x00", ref)

		f, openErr := os.Open(path)
		if openErr != nil {
			if os.IsNotExist(openErr) {
				missing = append(missing, path)
				continue
			}
			return "", nil, fmt.Errorf("failed to open image %s: %w", path, openErr)
		}
		_, copyErr := io.Copy(h, f)
		f.Close()
		if copyErr != nil {
			return "", nil, fmt.Errorf("failed to read image %s: %w", path, copyErr)
		}
	}
	if len(refs) == 0 {
		return "", nil, nil
	}
	return hex.EncodeToString(h.Sum(nil)), missing, nil
}

// ResolveImage joins a relative image reference with baseDir.
func ResolveImage(baseDir, ref string) string {
	if filepath.IsAbs(ref) || baseDir == "" {
		return ref
	}
	return filepath.Join(baseDir, ref)
}

// NeedsRegeneration reports whether a sheet must be rebuilt given its stored
// state and freshly computed digests.
func NeedsRegeneration(prev *models.SheetState, cur Result) bool {
	if prev == nil {
		return true
	}
	return prev.Hash != cur.Hash || prev.ImageHash != cur.ImageHash
}
