// Package eligibility decides whether the multi-architecture path applies
// to a build request at all. Ineligibility is the common case and is never
// an error; the caller simply runs a normal single-architecture build.
package eligibility

import (
	"github.com/gmeeker/fatbuild/pkg/types"
)

// Eligible reports whether the request should take the multi-architecture
// path. Pure, no side effects.
func Eligible(req *types.Request) bool {
	ok, _ := Check(req)
	return ok
}

// Check is Eligible with a human-readable reason for the first failing
// condition, for debug logging.
func Check(req *types.Request) (bool, string) {
	switch {
	case !req.Platform.SupportsUniversalBinaries():
		return false, "platform does not support universal binaries"

	case req.HeaderOnly:
		return false, "recipe is header-only"

	case !req.ArchSensitiveID():
		return false, "package id does not key on architecture"

	case !req.Archs.IsFat():
		return false, "fewer than two architectures declared"

	case req.MultiArchOptOut:
		return false, "recipe opted out of multi-arch builds"

	case req.SelfManaged:
		return false, "recipe manages multiple architectures itself"

	case !req.Generator.Orchestratable():
		return false, "generator cannot be driven per-architecture"
	}

	return true, ""
}
