// Package recipe defines the opaque single-architecture build and package
// procedures the orchestrator drives. The orchestrator never inspects a
// recipe's logic; it only controls which configuration and paths the
// recipe sees.
package recipe

import (
	"context"
	"fmt"

	"github.com/gmeeker/fatbuild/pkg/types"
)

// Recipe is the externally supplied single-architecture build/package
// procedure. Both steps receive the per-architecture context and report
// only success or failure.
type Recipe interface {
	Build(ctx context.Context, bc *types.Context) error
	Package(ctx context.Context, bc *types.Context) error
}

// BuildError reports a failed build step for one architecture.
type BuildError struct {
	Arch types.Arch
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed for %s: %v", e.Arch, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// PackageError reports a failed package step for one architecture.
type PackageError struct {
	Arch types.Arch
	Err  error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("package failed for %s: %v", e.Arch, e.Err)
}

func (e *PackageError) Unwrap() error { return e.Err }
