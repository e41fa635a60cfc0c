package fuse

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// LipoFuser fuses Mach-O binaries with the lipo tool.
type LipoFuser struct {
	// Tool overrides the lipo executable, for testing. Empty means "lipo"
	// from PATH.
	Tool string
}

// NewLipoFuser creates a fuser backed by the system lipo.
func NewLipoFuser() *LipoFuser {
	return &LipoFuser{}
}

// Fuse runs "lipo -create -output <output> <inputs...>". Inputs are
// passed in slice order, which lipo preserves in the fat header.
func (f *LipoFuser) Fuse(ctx context.Context, output string, slices []Slice) error {
	if len(slices) < 2 {
		return fmt.Errorf("fusion needs at least two slices, got %d", len(slices))
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tool := f.Tool
	if tool == "" {
		tool = "lipo"
	}

	args := []string{"-create", "-output", output}
	for _, s := range slices {
		args = append(args, s.Path)
	}

	cmd := exec.CommandContext(ctx, tool, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return newFusionError(output, slices, strings.TrimSpace(string(out)), err)
	}

	return nil
}
