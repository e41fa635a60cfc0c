package recipe_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gmeeker/fatbuild/pkg/recipe"
	"github.com/gmeeker/fatbuild/pkg/types"
)

func newContext(t *testing.T, buildCmd, packageCmd string) *types.Context {
	t.Helper()
	tmpDir := t.TempDir()

	base := &types.Request{
		Name:           "sample",
		BuildRoot:      filepath.Join(tmpDir, "build"),
		PackageRoot:    filepath.Join(tmpDir, "package"),
		BuildCommand:   buildCmd,
		PackageCommand: packageCmd,
	}
	cfg, err := base.Clone()
	if err != nil {
		t.Fatalf("clone failed: %v", err)
	}
	cfg.BuildRoot = filepath.Join(base.BuildRoot, "archs", "arm64")
	cfg.PackageRoot = filepath.Join(base.PackageRoot, "archs", "arm64")

	return &types.Context{
		Base:        base,
		Config:      cfg,
		Arch:        "arm64",
		DisplayName: "sample[arm64]",
	}
}

func TestCommandRecipe_Build(t *testing.T) {
	bc := newContext(t, "touch built.txt", "true")

	r := recipe.NewCommandRecipe(nil)
	if err := r.Build(context.Background(), bc); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(bc.BuildRoot(), "built.txt")); err != nil {
		t.Error("expected build command to run inside the build root")
	}
}

func TestCommandRecipe_EnvironmentOverrides(t *testing.T) {
	bc := newContext(t, `sh -c "echo $FATBUILD_ARCH > arch.txt"`, "true")
	// Force shell parsing.
	bc.Config.BuildCommand = "echo $FATBUILD_ARCH > arch.txt"

	r := recipe.NewCommandRecipe(nil)
	if err := r.Build(context.Background(), bc); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(bc.BuildRoot(), "arch.txt"))
	if err != nil {
		t.Fatalf("expected arch.txt: %v", err)
	}
	if strings.TrimSpace(string(data)) != "arm64" {
		t.Errorf("FATBUILD_ARCH = %q, want arm64", strings.TrimSpace(string(data)))
	}
}

func TestCommandRecipe_Package(t *testing.T) {
	bc := newContext(t, "true", "cp -R . $FATBUILD_PACKAGE_ROOT")

	r := recipe.NewCommandRecipe(nil)
	if err := r.Build(context.Background(), bc); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(bc.BuildRoot(), "lib.a"), []byte("obj"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.Package(context.Background(), bc); err != nil {
		t.Fatalf("package failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(bc.PackageRoot(), "lib.a")); err != nil {
		t.Error("expected packaged artifact in package root")
	}
}

func TestCommandRecipe_Failure(t *testing.T) {
	bc := newContext(t, "false", "true")

	r := recipe.NewCommandRecipe(nil)
	if err := r.Build(context.Background(), bc); err == nil {
		t.Fatal("expected build to fail")
	}
}

func TestCommandRecipe_MissingCommand(t *testing.T) {
	bc := newContext(t, "", "")

	r := recipe.NewCommandRecipe(nil)
	if err := r.Build(context.Background(), bc); err == nil {
		t.Fatal("expected error for missing build command")
	}
	if err := r.Package(context.Background(), bc); err == nil {
		t.Fatal("expected error for missing package command")
	}
}

func TestCommandRecipe_WritesLogFile(t *testing.T) {
	bc := newContext(t, "echo hello", "true")

	r := recipe.NewCommandRecipe(nil)
	if err := r.Build(context.Background(), bc); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	logPath := filepath.Join(bc.Base.BuildRoot, ".fatbuild", "logs", "arm64.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("expected command output in log, got %q", string(data))
	}
	if !strings.Contains(string(data), "SUCCEEDED") {
		t.Errorf("expected result marker in log, got %q", string(data))
	}
}
