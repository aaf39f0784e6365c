package hash

import (
	"context"
	"sync"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/tree"
	"golang.org/x/sync/errgroup"
)

// Result holds the digests computed for one sheet root.
type Result struct {
	Hash      string
	ImageHash string
	Missing   []string
}

// Compute hashes every root in parallel. At most concurrency roots are
// processed at once; values below 1 mean unbounded.
func Compute(ctx context.Context, baseDir string, roots []*models.TreeNode, columns []string, concurrency int) (map[string]Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	var mu sync.Mutex
	results := make(map[string]Result, len(roots))

	for _, root := range roots {
		root := root
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := ContentHash(root, columns)
			if err != nil {
				return err
			}
			images, missing, err := ImageHash(baseDir, tree.ImageRefs(root))
			if err != nil {
				return err
			}

			mu.Lock()
			results[root.ID] = Result{Hash: content, ImageHash: images, Missing: missing}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
