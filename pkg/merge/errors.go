package merge

import (
	"fmt"
	"strings"

	"github.com/gmeeker/fatbuild/pkg/types"
)

// ConflictError reports that a plain file diverges between architecture
// trees. The orchestrator has no policy for picking a winner, so this is
// always fatal.
type ConflictError struct {
	Path  string
	Archs []types.Arch
}

func (e *ConflictError) Error() string {
	archs := make([]string, len(e.Archs))
	for i, a := range e.Archs {
		archs[i] = string(a)
	}
	return fmt.Sprintf("merge conflict at %s: content differs between [%s]",
		e.Path, strings.Join(archs, ", "))
}

// PartialCoverageError reports a binary present in only one architecture
// tree under strict-coverage policy.
type PartialCoverageError struct {
	Path string
	Arch types.Arch
}

func (e *PartialCoverageError) Error() string {
	return fmt.Sprintf("binary %s is only present for %s (strict coverage enabled)", e.Path, e.Arch)
}
