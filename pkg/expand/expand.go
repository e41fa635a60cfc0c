// Package expand turns one eligible multi-architecture request into
// independent per-architecture build contexts.
package expand

import (
	"fmt"
	"path/filepath"

	"github.com/gmeeker/fatbuild/pkg/types"
)

// ArchScratchDir is the subdirectory of the build and package roots that
// holds the per-architecture trees. Keeping the trees one level down means
// an artifact path can never collide with an architecture directory when
// the merged tree is written back to the root.
const ArchScratchDir = "archs"

// ScratchRoot returns the directory holding all per-architecture trees
// under root.
func ScratchRoot(root string) string {
	return filepath.Join(root, ArchScratchDir)
}

// ArchRoot returns the output root for one architecture under root.
func ArchRoot(root string, arch types.Arch) string {
	return filepath.Join(root, ArchScratchDir, string(arch))
}

// Expand produces one Context per declared architecture, in declaration
// order. Each context carries a deep copy of the request with the
// effective architecture applied and both output roots rewritten to
// architecture-scoped subdirectories, so no two contexts ever share an
// output location.
//
// A request that cannot be deep-copied aborts expansion with
// types.ErrNotCloneable; the caller falls back to a plain build.
func Expand(req *types.Request) ([]*types.Context, error) {
	if err := req.Archs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid architecture set: %w", err)
	}

	contexts := make([]*types.Context, 0, len(req.Archs))
	for _, arch := range req.Archs {
		cfg, err := req.Clone()
		if err != nil {
			return nil, err
		}

		// The clone sees itself as a plain single-architecture build.
		cfg.Archs = types.FatArchSet{arch}
		cfg.BuildRoot = ArchRoot(req.BuildRoot, arch)
		cfg.PackageRoot = ArchRoot(req.PackageRoot, arch)

		contexts = append(contexts, &types.Context{
			Base:        req,
			Config:      cfg,
			Arch:        arch,
			DisplayName: fmt.Sprintf("%s[%s]", req.Name, arch),
		})
	}

	return contexts, nil
}
