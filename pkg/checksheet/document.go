package checksheet

import (
	"errors"
	"fmt"
	"os"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/tree"
)

// LoadDocument reads the source document at path. The format follows the
// file extension.
func LoadDocument(path string) (*models.Document, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	doc, err := tree.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

// ParseDocument decodes a source document held in memory, such as one
// fetched from GitLab. name only selects the format.
func ParseDocument(name string, data []byte) (*models.Document, error) {
	doc, err := tree.Parse(data, tree.FormatFromPath(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}
