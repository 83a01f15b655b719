// Package forge implements the core build graph and build execution model
// shared by forge's two back-ends: an in-process builder
// ([github.com/forgebuild/forge/builder]) that executes builds directly, and
// an ejecting builder ([github.com/forgebuild/forge/eject]) that emits a
// portable Makefile + per-package environment files.
//
// This package owns the data model only (Build, BuildSandbox, the exported
// environment spec) and its validation. Path derivation lives in
// [github.com/forgebuild/forge/pathscheme], graph traversal in
// [github.com/forgebuild/forge/graph], environment composition in
// [github.com/forgebuild/forge/buildenv].
//
// # Out of scope
//
// Parsing package manifests into a Build graph, dependency-version
// resolution, and the CLI front-end are external collaborators; this package
// only describes the interface they must produce (a [BuildSandbox]).
package forge

import (
	"fmt"

	"github.com/opencontainers/go-digest"
)

// Scope controls where an [ExportedEnv] is visible.
//
// ScopeLocal (the default) is visible only inside the build that declares it.
// ScopeGlobal is also visible to every transitive consumer of the build.
type Scope string

const (
	// ScopeLocal restricts an export to the declaring build.
	ScopeLocal Scope = "local"
	// ScopeGlobal propagates an export to every consumer of the build.
	ScopeGlobal Scope = "global"
)

// ExportedEnv is one entry of [Build.ExportedEnv]: a single environment
// variable export with its visibility and conflict rules.
type ExportedEnv struct {
	// Value is the variable's value. It may contain `$cur__*`-style
	// placeholders that [github.com/forgebuild/forge/buildenv] substitutes
	// with paths of the exporting build (see spec.md §4.2).
	Value string

	// Scope is ScopeLocal or ScopeGlobal. The zero value behaves as
	// ScopeLocal.
	Scope Scope

	// Exclusive means no other build may export the same name in the same
	// effective scope; a later same-scope export of this name is an
	// ExportConflict.
	Exclusive bool

	// Builtin marks a variable the builder itself owns (e.g. cur__install).
	// User packages may not declare an export with a builtin's name.
	Builtin bool
}

func (e ExportedEnv) scope() Scope {
	if e.Scope == "" {
		return ScopeLocal
	}

	return e.Scope
}

// Build is a node in the build DAG: everything needed to produce one
// package's installed artifacts.
//
// A Build is immutable once constructed; it is produced by an external
// manifest parser (out of scope here) before any call into this module.
type Build struct {
	// ID is a stable content hash uniquely identifying this build. It is
	// used verbatim as a store directory name, so two Builds with equal ID
	// must have byte-identical build inputs by construction — the store's
	// uniqueness guarantee rests on that invariant holding upstream of this
	// package.
	ID digest.Digest

	// Name and Version are human identifiers; they do not participate in
	// identity (ID does).
	Name    string
	Version string

	// Command is an ordered sequence of shell command strings executed
	// during the build stage. An empty Command means "no build step, still
	// produces an (empty) install".
	Command []string

	// ExportedEnv maps variable name to its export spec. See [ExportedEnv].
	ExportedEnv map[string]ExportedEnv

	// SourcePath is the path of this build's source tree, relative to the
	// sandbox root.
	SourcePath string

	// MutatesSourcePath, if true, means the build writes into its own
	// source tree; the builder stages sources into build(b) first so
	// SourcePath itself is never mutated.
	MutatesSourcePath bool

	// ShouldBePersisted, if true, routes artifacts into the shared,
	// content-addressed store; if false, into a sandbox-local store
	// (typically for in-development, not-yet-released sources).
	ShouldBePersisted bool

	// Dependencies is an ordered sequence of direct dependencies.
	Dependencies []*Build

	// Errors is an ordered sequence of diagnostic messages attached at
	// manifest-parse time. A Build with non-empty Errors is invalid: it
	// must fail the whole operation (see [ManifestError]) before any
	// command runs.
	Errors []string
}

// EnvVar is one (name, value) pair of a [BuildSandbox]'s global environment.
// A nil Value represents an explicitly-unset variable, which is omitted from
// rendered output.
type EnvVar struct {
	Name  string
	Value *string
}

// Str is a convenience constructor for a set [EnvVar].
func Str(name, value string) EnvVar {
	return EnvVar{Name: name, Value: &value}
}

// BuildSandbox is the top-level input to both back-ends: a root Build plus
// the global environment applied to every build in the tree.
type BuildSandbox struct {
	// Env seeds every build's composed environment (spec.md §4.2 group 2).
	Env []EnvVar

	// Root is the root Build of the dependency graph to build.
	Root *Build
}

// String renders a Build for diagnostics as "name@version (id)".
func (b *Build) String() string {
	if b == nil {
		return "<nil build>"
	}

	return fmt.Sprintf("%s@%s (%s)", b.Name, b.Version, b.ID)
}
