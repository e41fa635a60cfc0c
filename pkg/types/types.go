// Package types provides core types and configurations for fatbuild
package types

import (
	"fmt"
	"path/filepath"
)

// Arch identifies one instruction-set architecture. It is an opaque
// token ("x86_64", "arm64", ...) compared only for equality.
type Arch string

// FatArchSet is the ordered list of architectures declared for one build
// request. Declaration order is significant: it fixes the slice order
// passed to the fusion tool during merge.
type FatArchSet []Arch

// Validate checks that the set is non-empty, has no empty tokens and no
// duplicates.
func (s FatArchSet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("no architectures declared")
	}

	seen := make(map[Arch]bool, len(s))
	for _, a := range s {
		if a == "" {
			return fmt.Errorf("empty architecture identifier")
		}
		if seen[a] {
			return fmt.Errorf("duplicate architecture: %s", a)
		}
		seen[a] = true
	}

	return nil
}

// IsFat reports whether the set describes a genuine multi-architecture
// build. A single architecture is not fat.
func (s FatArchSet) IsFat() bool {
	return s.Validate() == nil && len(s) >= 2
}

// Contains reports whether a is declared in the set.
func (s FatArchSet) Contains(a Arch) bool {
	return s.Index(a) >= 0
}

// Index returns the declaration position of a, or -1.
func (s FatArchSet) Index(a Arch) int {
	for i, candidate := range s {
		if candidate == a {
			return i
		}
	}
	return -1
}

// Strings returns the set as plain strings, preserving order.
func (s FatArchSet) Strings() []string {
	out := make([]string, len(s))
	for i, a := range s {
		out[i] = string(a)
	}
	return out
}

// Platform represents the operating system a build targets
type Platform string

const (
	PlatformMacOS    Platform = "macos"
	PlatformIOS      Platform = "ios"
	PlatformTVOS     Platform = "tvos"
	PlatformWatchOS  Platform = "watchos"
	PlatformVisionOS Platform = "visionos"
	PlatformLinux    Platform = "linux"
	PlatformWindows  Platform = "windows"
)

// SupportsUniversalBinaries reports whether the platform's binary format
// can carry multiple architecture slices in one file. Only the Apple
// platforms (Mach-O fat binaries) qualify.
func (p Platform) SupportsUniversalBinaries() bool {
	switch p {
	case PlatformMacOS, PlatformIOS, PlatformTVOS, PlatformWatchOS, PlatformVisionOS:
		return true
	default:
		return false
	}
}

// Generator identifies the build-system generator a recipe is configured
// with.
type Generator string

const (
	GeneratorCMake Generator = "cmake"
	GeneratorXcode Generator = "xcode"
	GeneratorMake  Generator = "make"
)

// Orchestratable reports whether the orchestrator knows how to drive this
// generator once per architecture. Other generators are passed through to
// a normal single-architecture build.
func (g Generator) Orchestratable() bool {
	return g == GeneratorCMake
}

// NotificationConfig represents notification preferences
type NotificationConfig struct {
	Enabled      *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	SuccessSound string `json:"successSound,omitempty" yaml:"successSound,omitempty"`
	FailureSound string `json:"failureSound,omitempty" yaml:"failureSound,omitempty"`
}

// Request is the base description of one logical build. It holds plain
// data only (identifiers, paths, flags); anything derived from external
// resources is re-derived by each per-architecture worker rather than
// carried here.
type Request struct {
	Name      string     `json:"name" yaml:"name"`
	Platform  Platform   `json:"platform" yaml:"platform"`
	Generator Generator  `json:"generator,omitempty" yaml:"generator,omitempty"`
	Archs     FatArchSet `json:"archs,omitempty" yaml:"archs,omitempty"`

	BuildRoot   string `json:"buildRoot" yaml:"buildRoot"`
	PackageRoot string `json:"packageRoot" yaml:"packageRoot"`

	// HeaderOnly marks recipes that produce no binaries at all.
	HeaderOnly bool `json:"headerOnly,omitempty" yaml:"headerOnly,omitempty"`

	// ArchInPackageID reports whether the package fingerprint keys on the
	// architecture. Defaults to true; see ArchSensitiveID.
	ArchInPackageID *bool `json:"archInPackageId,omitempty" yaml:"archInPackageId,omitempty"`

	// MultiArchOptOut is the recipe-level capability flag disabling
	// orchestration outright.
	MultiArchOptOut bool `json:"multiArchOptOut,omitempty" yaml:"multiArchOptOut,omitempty"`

	// SelfManaged marks recipes whose build/package steps already handle
	// multiple architectures themselves.
	SelfManaged bool `json:"selfManaged,omitempty" yaml:"selfManaged,omitempty"`

	// StrictCoverage turns a binary present in only some architectures
	// into a hard merge error instead of a pass-through with a warning.
	StrictCoverage bool `json:"strictCoverage,omitempty" yaml:"strictCoverage,omitempty"`

	// Parallelism bounds the number of concurrent per-architecture
	// workers. Zero means one worker per architecture.
	Parallelism int `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`

	BuildCommand   string `json:"buildCommand,omitempty" yaml:"buildCommand,omitempty"`
	PackageCommand string `json:"packageCommand,omitempty" yaml:"packageCommand,omitempty"`

	Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`

	// Options carries recipe-level options. Values must be plain data
	// (scalars, and slices/maps of plain data) so the request stays
	// cloneable.
	Options map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`

	Notifications *NotificationConfig `json:"notifications,omitempty" yaml:"notifications,omitempty"`
}

// ArchSensitiveID reports whether the package fingerprint keys on the
// architecture. Merging is pointless when it does not, because consumers
// could never address the merged package.
func (r *Request) ArchSensitiveID() bool {
	return r.ArchInPackageID == nil || *r.ArchInPackageID
}

// Context is the per-architecture view of a request once expanded. Base
// is the original request and must be treated as read-only; Config is an
// independent deep copy with the effective architecture and arch-scoped
// output roots applied.
type Context struct {
	Base        *Request
	Config      *Request
	Arch        Arch
	DisplayName string
}

// BuildRoot returns the context's effective build output root.
func (c *Context) BuildRoot() string { return c.Config.BuildRoot }

// PackageRoot returns the context's effective package output root.
func (c *Context) PackageRoot() string { return c.Config.PackageRoot }

// LogDir returns the directory for this context's build/package logs,
// under the base request's build root.
func (c *Context) LogDir() string {
	return filepath.Join(c.Base.BuildRoot, ".fatbuild", "logs")
}
