package merge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmeeker/fatbuild/pkg/mocks"
	"github.com/gmeeker/fatbuild/pkg/types"
)

const machoX86 = "\xcf\xfa\xed\xfex86-code"
const machoARM = "\xcf\xfa\xed\xfearm-code"

func writeTree(t *testing.T, root string, files map[string]string, links map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	for rel, target := range links {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.Symlink(target, path))
	}
}

func archContext(t *testing.T, base string, arch types.Arch, files, links map[string]string) *types.Context {
	t.Helper()
	root := filepath.Join(base, "archs", string(arch))
	require.NoError(t, os.MkdirAll(root, 0o755))
	writeTree(t, root, files, links)
	cfg := &types.Request{PackageRoot: root}
	return &types.Context{Config: cfg, Arch: arch}
}

func TestMerge_FusesBinariesAndCopiesPlainFiles(t *testing.T) {
	base := t.TempDir()
	contexts := []*types.Context{
		archContext(t, base, "x86_64", map[string]string{
			"lib/libz.a":       machoX86,
			"include/zlib.h":   "header",
			"licenses/LICENSE": "text",
		}, nil),
		archContext(t, base, "arm64", map[string]string{
			"lib/libz.a":       machoARM,
			"include/zlib.h":   "header",
			"licenses/LICENSE": "text",
		}, nil),
	}
	req := &types.Request{PackageRoot: filepath.Join(base, "merged")}

	fuser := &mocks.MockFuser{}
	report, err := NewMerger(fuser, nil).Merge(context.Background(), req, contexts)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Fused)
	assert.Equal(t, 2, report.Copied)
	assert.Empty(t, report.PartialBinaries)

	require.Len(t, fuser.Calls, 1)
	call := fuser.Calls[0]
	assert.Equal(t, filepath.Join(req.PackageRoot, "lib", "libz.a"), call.Output)
	require.Len(t, call.Slices, 2)
	assert.Equal(t, types.Arch("x86_64"), call.Slices[0].Arch)
	assert.Equal(t, types.Arch("arm64"), call.Slices[1].Arch)

	data, err := os.ReadFile(filepath.Join(req.PackageRoot, "include", "zlib.h"))
	require.NoError(t, err)
	assert.Equal(t, "header", string(data))
}

func TestMerge_PlainFileConflict(t *testing.T) {
	base := t.TempDir()
	contexts := []*types.Context{
		archContext(t, base, "x86_64", map[string]string{"zlib.pc": "prefix=/x86"}, nil),
		archContext(t, base, "arm64", map[string]string{"zlib.pc": "prefix=/arm"}, nil),
	}
	req := &types.Request{PackageRoot: filepath.Join(base, "merged")}

	_, err := NewMerger(&mocks.MockFuser{}, nil).Merge(context.Background(), req, contexts)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "zlib.pc", conflict.Path)
	assert.Equal(t, []types.Arch{"x86_64", "arm64"}, conflict.Archs)
}

func TestMerge_PartialBinaryPassThrough(t *testing.T) {
	base := t.TempDir()
	contexts := []*types.Context{
		archContext(t, base, "x86_64", map[string]string{
			"lib/libz.a":     machoX86,
			"lib/libextra.a": machoX86,
		}, nil),
		archContext(t, base, "arm64", map[string]string{
			"lib/libz.a": machoARM,
		}, nil),
	}
	req := &types.Request{PackageRoot: filepath.Join(base, "merged")}

	fuser := &mocks.MockFuser{}
	report, err := NewMerger(fuser, nil).Merge(context.Background(), req, contexts)
	require.NoError(t, err)

	assert.Equal(t, []string{"lib/libextra.a"}, report.PartialBinaries)
	assert.Equal(t, 1, report.Fused)

	data, err := os.ReadFile(filepath.Join(req.PackageRoot, "lib", "libextra.a"))
	require.NoError(t, err)
	assert.Equal(t, machoX86, string(data))
}

func TestMerge_PartialBinaryStrictCoverage(t *testing.T) {
	base := t.TempDir()
	contexts := []*types.Context{
		archContext(t, base, "x86_64", map[string]string{"lib/libextra.a": machoX86}, nil),
		archContext(t, base, "arm64", nil, nil),
	}
	req := &types.Request{
		PackageRoot:    filepath.Join(base, "merged"),
		StrictCoverage: true,
	}

	_, err := NewMerger(&mocks.MockFuser{}, nil).Merge(context.Background(), req, contexts)
	var partial *PartialCoverageError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "lib/libextra.a", partial.Path)
	assert.Equal(t, types.Arch("x86_64"), partial.Arch)
}

func TestMerge_Symlinks(t *testing.T) {
	base := t.TempDir()
	contexts := []*types.Context{
		archContext(t, base, "x86_64",
			map[string]string{"lib/libz.1.dylib": machoX86},
			map[string]string{"lib/libz.dylib": "libz.1.dylib"}),
		archContext(t, base, "arm64",
			map[string]string{"lib/libz.1.dylib": machoARM},
			map[string]string{"lib/libz.dylib": "libz.1.dylib"}),
	}
	req := &types.Request{PackageRoot: filepath.Join(base, "merged")}

	_, err := NewMerger(&mocks.MockFuser{}, nil).Merge(context.Background(), req, contexts)
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(req.PackageRoot, "lib", "libz.dylib"))
	require.NoError(t, err)
	assert.Equal(t, "libz.1.dylib", target)
}

func TestMerge_SymlinkTargetConflict(t *testing.T) {
	base := t.TempDir()
	contexts := []*types.Context{
		archContext(t, base, "x86_64", nil, map[string]string{"lib/libz.dylib": "libz.1.dylib"}),
		archContext(t, base, "arm64", nil, map[string]string{"lib/libz.dylib": "libz.2.dylib"}),
	}
	req := &types.Request{PackageRoot: filepath.Join(base, "merged")}

	_, err := NewMerger(&mocks.MockFuser{}, nil).Merge(context.Background(), req, contexts)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "lib/libz.dylib", conflict.Path)
}

func TestMerge_IsIdempotent(t *testing.T) {
	base := t.TempDir()
	newContexts := func() []*types.Context {
		return []*types.Context{
			archContext(t, base, "x86_64", map[string]string{"include/zlib.h": "header"}, nil),
			archContext(t, base, "arm64", map[string]string{"include/zlib.h": "header"}, nil),
		}
	}
	contexts := newContexts()
	req := &types.Request{PackageRoot: filepath.Join(base, "merged")}
	m := NewMerger(&mocks.MockFuser{}, nil)

	first, err := m.Merge(context.Background(), req, contexts)
	require.NoError(t, err)
	second, err := m.Merge(context.Background(), req, contexts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMerge_PreservesEmptyDirectories(t *testing.T) {
	base := t.TempDir()
	contexts := []*types.Context{
		archContext(t, base, "x86_64", nil, nil),
		archContext(t, base, "arm64", nil, nil),
	}
	require.NoError(t, os.MkdirAll(filepath.Join(contexts[0].PackageRoot(), "res"), 0o755))
	req := &types.Request{PackageRoot: filepath.Join(base, "merged")}

	_, err := NewMerger(&mocks.MockFuser{}, nil).Merge(context.Background(), req, contexts)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(req.PackageRoot, "res"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
