// Package pathscheme implements the deterministic (build, kind) -> path
// mapping shared by forge's in-process builder and ejecting builder
// (spec.md §4.1, component C1).
//
// A [Config] bundles a store root, a sandbox root, and is consulted through
// five methods — Source, Root, Build, Install, FinalInstall — each a pure
// function of (config, build, ...segments). This mirrors the teacher's own
// preference for small, explicit path-resolution functions over an
// interface (see sandbox/path.go's ResolvePath, which takes homeDir/workDir
// explicitly rather than closing over them).
package pathscheme

import (
	"path/filepath"

	"github.com/forgebuild/forge"
)

// Config holds the two roots and produces every derived path forge needs.
//
// For the real, in-process builder StorePath and SandboxPath are absolute
// filesystem paths. For the ejecting builder, use [EjectConfig] instead,
// which produces the same path *shapes* using the literal placeholder
// strings `$ESY_EJECT__STORE` / `$ESY_EJECT__SANDBOX` (spec.md §4.1), to be
// resolved later at Make-time.
type Config struct {
	StorePath   string
	SandboxPath string
}

// EjectConfig returns the Config used when emitting a portable build
// (spec.md §4.1): StorePath and SandboxPath are the literal placeholder
// strings substituted by the ejected Makefile/render-env machinery, not
// real filesystem paths.
func EjectConfig() Config {
	return Config{
		StorePath:   "$ESY_EJECT__STORE",
		SandboxPath: "$ESY_EJECT__SANDBOX",
	}
}

func join(base string, segments ...string) string {
	return filepath.Join(append([]string{base}, segments...)...)
}

// Source returns sandboxPath / b.SourcePath / segments....
func (c Config) Source(b *forge.Build, segments ...string) string {
	return join(c.SandboxPath, append([]string{b.SourcePath}, segments...)...)
}

// Root returns the working directory build commands execute in: Build(b,
// ...) if the build mutates its own source tree, else Source(b, ...).
func (c Config) Root(b *forge.Build, segments ...string) string {
	if b.MutatesSourcePath {
		return c.Build(b, segments...)
	}

	return c.Source(b, segments...)
}

// Build returns the intermediate-artifact directory for b.
func (c Config) Build(b *forge.Build, segments ...string) string {
	return join(c.base(b), append([]string{"_build", string(b.ID)}, segments...)...)
}

// Install returns the install-staging directory for b. Builder commands
// write here; on success it is renamed to FinalInstall.
func (c Config) Install(b *forge.Build, segments ...string) string {
	return join(c.base(b), append([]string{"_insttmp", string(b.ID)}, segments...)...)
}

// FinalInstall returns the published install directory for b. Its absence
// is the canonical "not built" signal for persistent builds.
func (c Config) FinalInstall(b *forge.Build, segments ...string) string {
	return join(c.base(b), append([]string{"_install", string(b.ID)}, segments...)...)
}

// base is storePath for persisted builds, sandboxPath/_esy/store otherwise.
func (c Config) base(b *forge.Build) string {
	if b.ShouldBePersisted {
		return c.StorePath
	}

	return join(c.SandboxPath, "_esy", "store")
}

// StoreSkeletonDirs lists the three subtrees that must exist under a base
// (either StorePath, or SandboxPath/_esy/store) before any build runs
// (spec.md §4.4 step 1).
func StoreSkeletonDirs(base string) []string {
	return []string{
		join(base, "_build"),
		join(base, "_insttmp"),
		join(base, "_install"),
	}
}

// InstallSubdirs is the fixed set of directories created under Install(b)
// at build time (spec.md §4.4 step 3).
var InstallSubdirs = []string{"lib", "bin", "sbin", "man", "doc", "share", "stublibs", "etc"}
