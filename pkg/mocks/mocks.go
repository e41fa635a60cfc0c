// Package mocks provides hand-written test doubles for the recipe and
// fuser interfaces.
package mocks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gmeeker/fatbuild/pkg/fuse"
	"github.com/gmeeker/fatbuild/pkg/types"
	"github.com/gmeeker/fatbuild/pkg/utils"
)

// MachO wraps a payload in a 64-bit Mach-O magic so classification treats
// the file as a binary.
func MachO(payload string) string {
	return "\xcf\xfa\xed\xfe" + payload
}

// MockRecipe writes a configurable tree into each context's package root.
// Output contents may contain "{arch}" which is replaced with the
// context's architecture, so tests can produce per-arch binaries from one
// template.
type MockRecipe struct {
	mu sync.Mutex

	// Outputs maps relative paths to file contents written at Package time.
	Outputs map[string]string
	// Links maps relative paths to symlink targets.
	Links map[string]string
	// BuildErr and PackageErr inject per-architecture failures.
	BuildErr   map[types.Arch]error
	PackageErr map[types.Arch]error

	BuildCalls   []types.Arch
	PackageCalls []types.Arch
}

func (r *MockRecipe) Build(ctx context.Context, bc *types.Context) error {
	r.mu.Lock()
	r.BuildCalls = append(r.BuildCalls, bc.Arch)
	err := r.BuildErr[bc.Arch]
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return os.MkdirAll(bc.BuildRoot(), 0o755)
}

func (r *MockRecipe) Package(ctx context.Context, bc *types.Context) error {
	r.mu.Lock()
	r.PackageCalls = append(r.PackageCalls, bc.Arch)
	err := r.PackageErr[bc.Arch]
	r.mu.Unlock()
	if err != nil {
		return err
	}
	for rel, content := range r.Outputs {
		content = strings.ReplaceAll(content, "{arch}", string(bc.Arch))
		path := filepath.Join(bc.PackageRoot(), filepath.FromSlash(rel))
		if err := utils.EnsureDirectory(filepath.Dir(path)); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	for rel, target := range r.Links {
		path := filepath.Join(bc.PackageRoot(), filepath.FromSlash(rel))
		if err := utils.EnsureDirectory(filepath.Dir(path)); err != nil {
			return err
		}
		if err := os.Symlink(target, path); err != nil {
			return err
		}
	}
	return nil
}

// Calls returns copies of the recorded build and package call lists.
func (r *MockRecipe) Calls() (build, pkg []types.Arch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Arch(nil), r.BuildCalls...), append([]types.Arch(nil), r.PackageCalls...)
}

// FuseCall records one fusion request.
type FuseCall struct {
	Output string
	Slices []fuse.Slice
}

// MockFuser concatenates slice contents into the output file, tagging each
// with its architecture so tests can assert on fusion order.
type MockFuser struct {
	mu    sync.Mutex
	Calls []FuseCall
	Err   error
}

func (f *MockFuser) Fuse(ctx context.Context, output string, slices []fuse.Slice) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, FuseCall{Output: output, Slices: append([]fuse.Slice(nil), slices...)})
	err := f.Err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	var parts []string
	for _, s := range slices {
		data, err := os.ReadFile(s.Path)
		if err != nil {
			return err
		}
		parts = append(parts, fmt.Sprintf("%s=%q", s.Arch, data))
	}
	if err := utils.EnsureDirectory(filepath.Dir(output)); err != nil {
		return err
	}
	return os.WriteFile(output, []byte("fat["+strings.Join(parts, " ")+"]"), 0o755)
}
