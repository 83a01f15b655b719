package forge

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ManifestError reports that one or more reachable Builds carry non-empty
// [Build.Errors] from manifest parsing (spec.md §7). It is fatal: the whole
// operation is aborted before any command runs.
type ManifestError struct {
	// Builds maps a Build's ID to its attached diagnostic messages.
	Builds map[string][]string
}

func (e *ManifestError) Error() string {
	var sb strings.Builder

	sb.WriteString("forge: invalid manifest:")

	for id, msgs := range e.Builds {
		for _, m := range msgs {
			fmt.Fprintf(&sb, "\n  %s: %s", id, m)
		}
	}

	return sb.String()
}

// ExportConflict reports that two builds export the same variable name in
// the same effective scope, and at least one of them marked the export
// exclusive (or the name collides with a builder-owned builtin).
type ExportConflict struct {
	Name      string
	Scope     Scope
	FirstBy   string // build id or name that exported Name first
	SecondBy  string // build id or name whose export conflicts
	IsBuiltin bool   // true when the conflict is against a builtin, not another build
}

func (e *ExportConflict) Error() string {
	if e.IsBuiltin {
		return fmt.Sprintf("forge: export conflict: %s attempts to set builtin variable %q", e.SecondBy, e.Name)
	}

	return fmt.Sprintf("forge: export conflict: %q exported exclusively by %s, also exported by %s (scope=%s)",
		e.Name, e.FirstBy, e.SecondBy, e.Scope)
}

// BuildCommandFailure reports a non-zero exit from a user command
// (spec.md §4.4 step 7 / §7).
type BuildCommandFailure struct {
	BuildID      string
	CommandIndex int
	Command      string
	ExitCode     int
	StderrTail   string
}

func (e *BuildCommandFailure) Error() string {
	return fmt.Sprintf("forge: build %s: command %d (%q) exited %d: %s",
		e.BuildID, e.CommandIndex, e.Command, e.ExitCode, e.StderrTail)
}

// IOFailure wraps an underlying filesystem error with the path and
// operation that triggered it.
type IOFailure struct {
	Op   string
	Path string
	Err  error
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("forge: %s %s: %s", e.Op, e.Path, e.Err)
}

func (e *IOFailure) Unwrap() error { return e.Err }

// NewIOFailure wraps err as an [IOFailure], attributing it to op/path via
// [github.com/pkg/errors] so callers retain a stack trace at the call site.
func NewIOFailure(op, path string, err error) error {
	return errors.Wrapf(&IOFailure{Op: op, Path: path, Err: err}, "%s %s", op, path)
}

// RewriteFailure reports that §4.4 step 8 (path rewrite) failed; the build
// is aborted before the commit-point rename.
type RewriteFailure struct {
	BuildID string
	Path    string
	Err     error
}

func (e *RewriteFailure) Error() string {
	return fmt.Sprintf("forge: build %s: rewriting %s: %s", e.BuildID, e.Path, e.Err)
}

func (e *RewriteFailure) Unwrap() error { return e.Err }

// GraphError reports a structural problem with the build graph: a cycle, an
// unresolved reference, or a malformed [Build.ID].
type GraphError struct {
	Message string
	BuildID string
}

func (e *GraphError) Error() string {
	if e.BuildID == "" {
		return fmt.Sprintf("forge: graph error: %s", e.Message)
	}

	return fmt.Sprintf("forge: graph error: %s (build %s)", e.Message, e.BuildID)
}
