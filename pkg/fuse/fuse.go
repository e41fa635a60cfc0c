// Package fuse abstracts the external binary-fusion tool that combines
// per-architecture binaries into one universal binary.
package fuse

import (
	"context"
	"fmt"
	"strings"

	"github.com/gmeeker/fatbuild/pkg/types"
)

// Slice is one architecture's variant of a binary, in fat-set order.
type Slice struct {
	Arch types.Arch
	Path string
}

// Fuser combines an ordered list of compatible single-architecture
// binaries into one universal binary at output.
type Fuser interface {
	Fuse(ctx context.Context, output string, slices []Slice) error
}

// FusionError reports that the fusion tool rejected its inputs, e.g.
// because the binary formats are incompatible.
type FusionError struct {
	Output     string
	Archs      []types.Arch
	Diagnostic string
	Err        error
}

func (e *FusionError) Error() string {
	archs := make([]string, len(e.Archs))
	for i, a := range e.Archs {
		archs[i] = string(a)
	}
	msg := fmt.Sprintf("fusion failed for %s [%s]", e.Output, strings.Join(archs, ", "))
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	return msg
}

func (e *FusionError) Unwrap() error { return e.Err }

func newFusionError(output string, slices []Slice, diagnostic string, err error) *FusionError {
	archs := make([]types.Arch, len(slices))
	for i, s := range slices {
		archs[i] = s.Arch
	}
	return &FusionError{
		Output:     output,
		Archs:      archs,
		Diagnostic: diagnostic,
		Err:        err,
	}
}
