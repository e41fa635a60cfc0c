// Package merge folds per-architecture package trees into a single
// universal tree. Plain files must be identical across architectures,
// binaries are fused into fat Mach-O files, and everything else is a
// conflict.
package merge

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gmeeker/fatbuild/pkg/classify"
	"github.com/gmeeker/fatbuild/pkg/fuse"
	"github.com/gmeeker/fatbuild/pkg/logger"
	"github.com/gmeeker/fatbuild/pkg/types"
	"github.com/gmeeker/fatbuild/pkg/utils"
)

// Report summarizes what a merge produced.
type Report struct {
	// Fused counts binaries combined from two or more architectures.
	Fused int
	// Copied counts plain files and single-architecture pass-throughs.
	Copied int
	// PartialBinaries lists binaries that were present in only one
	// architecture tree and copied as-is.
	PartialBinaries []string
}

// Merger combines the package trees of expanded per-architecture contexts
// into the base request's package root.
type Merger struct {
	Fuser  fuse.Fuser
	Logger logger.Logger
}

// NewMerger returns a Merger backed by the given fuser.
func NewMerger(fuser fuse.Fuser, log logger.Logger) *Merger {
	return &Merger{Fuser: fuser, Logger: log}
}

// entry is a single filesystem object observed in one architecture tree.
type entry struct {
	abs     string
	symlink bool
	target  string
}

// tree is one architecture's package tree keyed by slash-relative path.
type tree struct {
	arch    types.Arch
	entries map[string]entry
	dirs    map[string]bool
}

// Merge walks every context's package root and writes the combined tree
// into req.PackageRoot. Contexts must already contain completed package
// trees; the merge itself is read-only with respect to them, so running
// it twice produces the same output.
func (m *Merger) Merge(ctx context.Context, req *types.Request, contexts []*types.Context) (*Report, error) {
	trees := make([]*tree, 0, len(contexts))
	for _, bc := range contexts {
		t, err := collectTree(bc.Arch, bc.PackageRoot())
		if err != nil {
			return nil, err
		}
		trees = append(trees, t)
	}

	if err := utils.EnsureDirectory(req.PackageRoot); err != nil {
		return nil, err
	}
	if err := m.mergeDirs(req.PackageRoot, trees); err != nil {
		return nil, err
	}

	report := &Report{}
	for _, rel := range unionPaths(trees) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.mergePath(ctx, req, rel, trees, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// mergePath resolves a single relative path across all trees that carry it.
func (m *Merger) mergePath(ctx context.Context, req *types.Request, rel string, trees []*tree, report *Report) error {
	var present []*tree
	for _, t := range trees {
		if _, ok := t.entries[rel]; ok {
			present = append(present, t)
		}
	}
	out := filepath.Join(req.PackageRoot, filepath.FromSlash(rel))

	first := present[0].entries[rel]
	if first.symlink {
		return m.mergeSymlink(rel, out, present)
	}

	kind, err := classify.File(first.abs)
	if err != nil {
		return err
	}

	if kind == classify.KindBinary {
		if len(present) == 1 {
			if req.StrictCoverage {
				return &PartialCoverageError{Path: rel, Arch: present[0].arch}
			}
			if m.Logger != nil {
				m.Logger.Warn("Binary present for a single architecture, copying as-is",
					logger.WithField("path", rel),
					logger.WithField("arch", string(present[0].arch)))
			}
			report.PartialBinaries = append(report.PartialBinaries, rel)
			report.Copied++
			return utils.CopyFile(first.abs, out)
		}
		slices := make([]fuse.Slice, 0, len(present))
		for _, t := range present {
			slices = append(slices, fuse.Slice{Arch: t.arch, Path: t.entries[rel].abs})
		}
		if err := m.Fuser.Fuse(ctx, out, slices); err != nil {
			return err
		}
		report.Fused++
		return nil
	}

	// Plain file: every copy must be byte-identical.
	if len(present) > 1 {
		base, err := utils.FileHash(first.abs)
		if err != nil {
			return err
		}
		for _, t := range present[1:] {
			h, err := utils.FileHash(t.entries[rel].abs)
			if err != nil {
				return err
			}
			if h != base {
				return &ConflictError{Path: rel, Archs: presentArchs(present)}
			}
		}
	}
	report.Copied++
	return utils.CopyFile(first.abs, out)
}

// mergeSymlink recreates a symlink when every tree agrees on its target.
func (m *Merger) mergeSymlink(rel, out string, present []*tree) error {
	target := present[0].entries[rel].target
	for _, t := range present[1:] {
		e := t.entries[rel]
		if !e.symlink || e.target != target {
			return &ConflictError{Path: rel, Archs: presentArchs(present)}
		}
	}
	if err := utils.EnsureDirectory(filepath.Dir(out)); err != nil {
		return err
	}
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(target, out)
}

// mergeDirs pre-creates the union of directories so empty directories
// survive the merge.
func (m *Merger) mergeDirs(root string, trees []*tree) error {
	seen := map[string]bool{}
	for _, t := range trees {
		for d := range t.dirs {
			seen[d] = true
		}
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		if err := utils.EnsureDirectory(filepath.Join(root, filepath.FromSlash(d))); err != nil {
			return err
		}
	}
	return nil
}

func collectTree(arch types.Arch, root string) (*tree, error) {
	t := &tree{arch: arch, entries: map[string]entry{}, dirs: map[string]bool{}}
	err := utils.WalkRelative(root, func(rel string, d fs.DirEntry) error {
		if d.IsDir() {
			t.dirs[rel] = true
			return nil
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		e := entry{abs: abs}
		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(abs)
			if err != nil {
				return err
			}
			e.symlink = true
			e.target = target
		}
		t.entries[rel] = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// unionPaths returns the sorted union of file paths across all trees.
// Sorting keeps merge output and error reporting deterministic.
func unionPaths(trees []*tree) []string {
	seen := map[string]bool{}
	for _, t := range trees {
		for rel := range t.entries {
			seen[rel] = true
		}
	}
	paths := make([]string, 0, len(seen))
	for rel := range seen {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}

func presentArchs(present []*tree) []types.Arch {
	archs := make([]types.Arch, len(present))
	for i, t := range present {
		archs[i] = t.arch
	}
	return archs
}
