// Package config handles loading and validating build requests from disk.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gmeeker/fatbuild/pkg/types"
)

// Manager handles request configuration files.
type Manager struct{}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{}
}

// LoadRequest loads a build request from a JSON or YAML file, applies
// defaults, and validates it.
func (m *Manager) LoadRequest(path string) (*types.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var req types.Request

	// Try JSON first
	if err := json.Unmarshal(data, &req); err == nil {
		return m.finalize(&req, path)
	}

	if err := yaml.Unmarshal(data, &req); err == nil {
		return m.finalize(&req, path)
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

func (m *Manager) finalize(req *types.Request, path string) (*types.Request, error) {
	m.ApplyDefaults(req, filepath.Dir(path))
	if err := m.Validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ApplyDefaults fills unset fields with sensible values. Relative roots
// are resolved against the config file's directory.
func (m *Manager) ApplyDefaults(req *types.Request, baseDir string) {
	if req.Platform == "" {
		req.Platform = types.PlatformMacOS
	}
	if req.Generator == "" {
		req.Generator = types.GeneratorCMake
	}
	if req.BuildRoot == "" {
		req.BuildRoot = filepath.Join(baseDir, "build")
	} else if !filepath.IsAbs(req.BuildRoot) {
		req.BuildRoot = filepath.Join(baseDir, req.BuildRoot)
	}
	if req.PackageRoot == "" {
		req.PackageRoot = filepath.Join(baseDir, "package")
	} else if !filepath.IsAbs(req.PackageRoot) {
		req.PackageRoot = filepath.Join(baseDir, req.PackageRoot)
	}
}

// Validate checks that a request is complete enough to run.
func (m *Manager) Validate(req *types.Request) error {
	if req.Name == "" {
		return fmt.Errorf("request has no name")
	}
	if err := req.Archs.Validate(); err != nil {
		return fmt.Errorf("invalid arch set: %w", err)
	}
	if req.BuildCommand == "" {
		return fmt.Errorf("request %q has no build command", req.Name)
	}
	if req.PackageCommand == "" {
		return fmt.Errorf("request %q has no package command", req.Name)
	}
	switch req.Platform {
	case types.PlatformMacOS, types.PlatformIOS, types.PlatformTVOS,
		types.PlatformWatchOS, types.PlatformVisionOS,
		types.PlatformLinux, types.PlatformWindows:
	default:
		return fmt.Errorf("invalid platform: %s", req.Platform)
	}
	switch req.Generator {
	case types.GeneratorCMake, types.GeneratorXcode, types.GeneratorMake:
	default:
		return fmt.Errorf("invalid generator: %s", req.Generator)
	}
	return nil
}
