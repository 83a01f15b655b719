// Package buildenv implements the environment composer (spec.md §4.2,
// component C2): given a build config, a build, and the sandbox's global
// environment, it produces an ordered [Environment] of provenance-tagged
// groups that both back-ends render identically (see render.go).
//
// The group layering and exclusive/builtin clash rules follow the teacher's
// own environment model (sandbox/environment.go, sandbox/wrappers.go): a
// small, explicitly ordered set of groups assembled during planning, not a
// flat merged map, so provenance survives for diagnostics and for the
// PATH-like accumulation spec.md §4.2 describes.
package buildenv

import (
	"os"
	"sort"
	"strings"

	"github.com/forgebuild/forge"
	"github.com/forgebuild/forge/graph"
	"github.com/forgebuild/forge/pathscheme"
)

// Export is one rendered environment variable within a [Group].
type Export struct {
	Name      string
	Value     string
	Exclusive bool
	Builtin   bool
}

// Group is one provenance-tagged slice of exports, in composition order.
type Group struct {
	// Source names which build (or "builtins"/"sandbox") contributed this
	// group, for diagnostics.
	Source  string
	Exports []Export
}

// Environment is the ordered sequence of groups produced by [Compose].
type Environment struct {
	Groups []Group
}

// builtinGlobalNames is step 1's built-in globals; curBuiltinNames below is
// step 4's per-build cur__* set. A non-builtin export colliding with a name
// in either set is rejected (spec.md §4.2 "User override of built-ins").
var builtinGlobalNames = map[string]bool{
	"CI":                  true,
	"TMPDIR":              true,
	"ESY_EJECT__STORE":    true,
	"ESY_EJECT__SANDBOX":  true,
	"ESY_EJECT__ROOT":     true,
}

var curBuiltinNames = map[string]bool{
	"cur__install":       true,
	"cur__target_dir":    true,
	"cur__root":          true,
	"cur__name":          true,
	"cur__version":       true,
	"cur__original_root": true,
}

// pathLikeNames are accumulated (shell `:`-suffixed) across groups rather
// than overwritten: each contributor's value is rendered as "value:$NAME",
// so sourcing the composed groups in order (deepest dependency first,
// self last) builds up the usual search-path chain instead of each group
// clobbering the last (spec.md §4.2). See accumulate.
var pathLikeNames = map[string]bool{
	"PATH":                 true,
	"MANPATH":              true,
	"OCAMLPATH":            true,
	"CAML_LD_LIBRARY_PATH": true,
}

// accumulate appends a reference to name's own prior shell value when name
// is path-like, so rendering the groups in order chains contributions
// instead of overwriting them.
func accumulate(name, value string) string {
	if !pathLikeNames[name] {
		return value
	}

	return value + ":$" + name
}

// Compose produces the Environment for b under cfg, seeded by the
// sandbox's global env, per spec.md §4.2's four ordered groups.
func Compose(cfg pathscheme.Config, b *forge.Build, sandboxEnv []forge.EnvVar) (Environment, error) {
	var env Environment

	env.Groups = append(env.Groups, builtinGlobalsGroup(cfg))
	env.Groups = append(env.Groups, sandboxGlobalGroup(sandboxEnv))

	seenGlobal := map[string]contributor{}

	for _, dep := range graph.DepsPostOrder(b) {
		group, err := depGlobalGroup(cfg, dep, seenGlobal)
		if err != nil {
			return Environment{}, err
		}

		if len(group.Exports) > 0 {
			env.Groups = append(env.Groups, group)
		}
	}

	selfGroup, err := selfLocalGroup(cfg, b)
	if err != nil {
		return Environment{}, err
	}

	env.Groups = append(env.Groups, selfGroup)

	return env, nil
}

type contributor struct {
	name      string // dependency's Name, for diagnostics
	exclusive bool
}

func builtinGlobalsGroup(cfg pathscheme.Config) Group {
	tmpdir := os.Getenv("TMPDIR")
	if tmpdir == "" {
		tmpdir = os.TempDir()
	}

	return Group{
		Source: "builtins",
		Exports: []Export{
			{Name: "CI", Value: os.Getenv("CI"), Builtin: true},
			{Name: "TMPDIR", Value: tmpdir, Builtin: true},
			{Name: "ESY_EJECT__STORE", Value: cfg.StorePath, Builtin: true},
			{Name: "ESY_EJECT__SANDBOX", Value: cfg.SandboxPath, Builtin: true},
			{Name: "ESY_EJECT__ROOT", Value: cfg.SandboxPath, Builtin: true},
		},
	}
}

func sandboxGlobalGroup(sandboxEnv []forge.EnvVar) Group {
	g := Group{Source: "sandbox"}

	for _, v := range sandboxEnv {
		if v.Value == nil {
			continue
		}

		g.Exports = append(g.Exports, Export{Name: v.Name, Value: *v.Value})
	}

	return g
}

// depGlobalGroup renders dep's global-scope exports, substituting cur__*
// placeholders against dep's own paths, and records exclusivity for clash
// detection against later (shallower) dependencies.
func depGlobalGroup(cfg pathscheme.Config, dep *forge.Build, seen map[string]contributor) (Group, error) {
	g := Group{Source: string(dep.ID)}

	// dep is already finalized by the time a consumer sees it (post-order
	// DFS builds dependencies first), so cur__install here is its published
	// FinalInstall, not its (long gone) staging directory.
	curVars := curPlaceholdersForDep(cfg, dep)

	for _, ne := range sortedExports(dep.ExportedEnv) {
		name, exp := ne.name, ne.exp
		if exp.scope() != forge.ScopeGlobal {
			continue
		}

		if err := checkClash(name, dep.Name, exp, seen); err != nil {
			return Group{}, err
		}

		g.Exports = append(g.Exports, Export{
			Name:      name,
			Value:     accumulate(name, substitute(exp.Value, curVars)),
			Exclusive: exp.Exclusive,
			Builtin:   exp.Builtin,
		})
	}

	return g, nil
}

// selfLocalGroup renders b's own local-scope exports plus the per-build
// cur__* builtins (spec.md §4.2 step 4).
func selfLocalGroup(cfg pathscheme.Config, b *forge.Build) (Group, error) {
	g := Group{Source: string(b.ID)}

	// b's own commands run before the step-9 rename, so cur__install here
	// must be the staging directory they actually write into (Install),
	// not the FinalInstall path that only starts existing after rename.
	// Any such path baked into artifact contents is corrected by the
	// step-8 rewrite (see builder/rewrite.go).
	curVars := curPlaceholdersForSelf(cfg, b)

	for _, ne := range sortedExports(b.ExportedEnv) {
		name, exp := ne.name, ne.exp
		if exp.scope() != forge.ScopeLocal {
			continue
		}

		if !exp.Builtin && (builtinGlobalNames[name] || curBuiltinNames[name]) {
			return Group{}, &forge.ExportConflict{Name: name, SecondBy: b.String(), IsBuiltin: true}
		}

		g.Exports = append(g.Exports, Export{
			Name:      name,
			Value:     accumulate(name, substitute(exp.Value, curVars)),
			Exclusive: exp.Exclusive,
			Builtin:   exp.Builtin,
		})
	}

	for _, name := range curPlaceholderOrder {
		g.Exports = append(g.Exports, Export{Name: name, Value: curVars[name], Builtin: true})
	}

	return g, nil
}

// curPlaceholderOrder fixes a deterministic emission order for the per-build
// cur__* builtins (spec.md §8 determinism).
var curPlaceholderOrder = []string{
	"cur__install",
	"cur__target_dir",
	"cur__root",
	"cur__name",
	"cur__version",
	"cur__original_root",
}

func checkClash(name, by string, exp forge.ExportedEnv, seen map[string]contributor) error {
	if !exp.Builtin && (builtinGlobalNames[name] || curBuiltinNames[name]) {
		return &forge.ExportConflict{Name: name, SecondBy: by, IsBuiltin: true}
	}

	prev, ok := seen[name]
	if ok {
		if prev.exclusive || exp.Exclusive {
			return &forge.ExportConflict{
				Name:     name,
				Scope:    forge.ScopeGlobal,
				FirstBy:  prev.name,
				SecondBy: by,
			}
		}
	}

	seen[name] = contributor{name: by, exclusive: exp.Exclusive}

	return nil
}

// curPlaceholdersForDep renders the cur__* substitution set for dep as seen
// by a consumer: dep has already completed its own build, so cur__install
// is its published FinalInstall (spec.md §4.2 step 3: "cur__install =
// finalInstall(d)").
func curPlaceholdersForDep(cfg pathscheme.Config, dep *forge.Build) map[string]string {
	return curPlaceholders(dep.Name, dep.Version, cfg.FinalInstall(dep), cfg.Build(dep), cfg.Root(dep), cfg.Source(dep))
}

// curPlaceholdersForSelf renders the cur__* substitution set for b as seen
// by its own in-flight build: cur__install is the staging directory (Install)
// commands actually write into, since FinalInstall does not exist until the
// step-9 rename commits it.
func curPlaceholdersForSelf(cfg pathscheme.Config, b *forge.Build) map[string]string {
	return curPlaceholders(b.Name, b.Version, cfg.Install(b), cfg.Build(b), cfg.Root(b), cfg.Source(b))
}

func curPlaceholders(name, version, install, targetDir, root, originalRoot string) map[string]string {
	return map[string]string{
		"cur__install":       install,
		"cur__target_dir":    targetDir,
		"cur__root":          root,
		"cur__name":          name,
		"cur__version":       version,
		"cur__original_root": originalRoot,
	}
}

func substitute(value string, vars map[string]string) string {
	if !strings.Contains(value, "$cur__") {
		return value
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "$"+k, v)
	}

	return strings.NewReplacer(pairs...).Replace(value)
}

// namedExport pairs an export with its declared name, for deterministic
// iteration (see sortedExports).
type namedExport struct {
	name string
	exp  forge.ExportedEnv
}

// sortedExports returns b's ExportedEnv map entries in a deterministic
// (lexical-by-name) order, since Go map iteration order is not stable and
// spec.md's determinism property (§8) requires byte-stable output.
func sortedExports(m map[string]forge.ExportedEnv) []namedExport {
	out := make([]namedExport, 0, len(m))
	for name, exp := range m {
		out = append(out, namedExport{name: name, exp: exp})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })

	return out
}
