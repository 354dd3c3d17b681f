package op

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/hashicorp/go-multierror"
)

// CloneFunc materializes url at ref into dir, which must not exist yet, and
// returns the checked out commit.
type CloneFunc func(ctx context.Context, url, ref, dir string) (string, error)

// ShallowClone clones a single commit of ref. ref is tried as a tag first,
// then as a branch.
func ShallowClone(ctx context.Context, url, ref, dir string) (string, error) {
	var errs error
	for _, name := range refCandidates(ref) {
		opts := &git.CloneOptions{
			URL:           url,
			Depth:         1,
			SingleBranch:  true,
			ReferenceName: name,
			Tags:          git.NoTags,
		}
		repository, err := git.PlainCloneContext(ctx, dir, false, opts)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
			_ = os.RemoveAll(dir)
			continue
		}
		head, err := repository.Head()
		if err != nil {
			return "", fmt.Errorf("failed to resolve HEAD of %s: %w", url, err)
		}
		return head.Hash().String(), nil
	}
	return "", fmt.Errorf("failed to clone repository %s: %w", url, errs)
}

func refCandidates(ref string) []plumbing.ReferenceName {
	if ref == "" {
		return []plumbing.ReferenceName{""}
	}
	return []plumbing.ReferenceName{
		plumbing.NewTagReferenceName(ref),
		plumbing.NewBranchReferenceName(ref),
	}
}
