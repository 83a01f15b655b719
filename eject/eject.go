// Package eject also implements the ejecting builder itself (spec.md §4.5,
// component C5): Eject writes a self-contained directory tree driven by
// `make build`, using only Make, a C realpath helper, and a handful of shell
// scripts. Each build target runs the build's commands from its build root
// (in-source builds get a fresh copy of their sources first); it does not
// create install skeletons, rewrite the install prefix, or rename
// _insttmp/<id> to _install/<id> as the in-process builder (package
// builder) does.
package eject

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgebuild/forge"
	"github.com/forgebuild/forge/buildenv"
	"github.com/forgebuild/forge/builder"
	"github.com/forgebuild/forge/graph"
	"github.com/forgebuild/forge/pathscheme"
)

// Eject validates sandbox.Root and writes the portable build bundle into
// outputPath.
func Eject(sandbox *forge.BuildSandbox, outputPath string) error {
	if err := forge.ValidateGraph(sandbox.Root); err != nil {
		return err
	}

	cfg := pathscheme.EjectConfig()

	if err := os.MkdirAll(filepath.Join(outputPath, "bin"), 0o755); err != nil {
		return forge.NewIOFailure("mkdir", filepath.Join(outputPath, "bin"), err)
	}

	for name, content := range map[string]string{
		"realpath.c":     RealpathC,
		"runtime.sh":     RuntimeSh,
		"render-env":     RenderEnv,
		"replace-string": ReplaceString,
	} {
		path := filepath.Join(outputPath, "bin", name)
		if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
			return forge.NewIOFailure("write", path, err)
		}
	}

	builds := graph.PostOrderDFS(sandbox.Root)

	for _, b := range builds {
		if err := writeBuildFiles(cfg, outputPath, b, sandbox.Env); err != nil {
			return err
		}
	}

	makefile := buildMakefile(cfg, sandbox, builds)

	makefilePath := filepath.Join(outputPath, "Makefile")
	if err := os.WriteFile(makefilePath, []byte(makefile), 0o644); err != nil {
		return forge.NewIOFailure("write", makefilePath, err)
	}

	return nil
}

// writeBuildFiles emits eject-env, findlib.conf.in and sandbox.sb.in for a
// single build, under outputPath/<b.SourcePath>/ (spec.md §4.5).
func writeBuildFiles(cfg pathscheme.Config, outputPath string, b *forge.Build, sandboxEnv []forge.EnvVar) error {
	dir := filepath.Join(outputPath, b.SourcePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return forge.NewIOFailure("mkdir", dir, err)
	}

	env, err := buildenv.Compose(cfg, b, sandboxEnv)
	if err != nil {
		return err
	}

	ejectEnvPath := filepath.Join(dir, "eject-env")
	if err := os.WriteFile(ejectEnvPath, []byte(buildenv.Render(env)), 0o644); err != nil {
		return forge.NewIOFailure("write", ejectEnvPath, err)
	}

	findlibPath := filepath.Join(dir, "findlib.conf.in")
	if err := os.WriteFile(findlibPath, []byte(builder.FindlibConf(cfg, b)), 0o644); err != nil {
		return forge.NewIOFailure("write", findlibPath, err)
	}

	sandboxProfilePath := filepath.Join(dir, "sandbox.sb.in")
	if err := os.WriteFile(sandboxProfilePath, []byte(sandboxProfile(cfg, b)), 0o644); err != nil {
		return forge.NewIOFailure("write", sandboxProfilePath, err)
	}

	return nil
}

// sandboxProfile renders the macOS sandbox-exec profile spec.md §4.5
// describes: deny all writes except /dev/null, $TMPDIR, $TMPDIR_GLOBAL,
// root(b), build(b), install(b), with an explicit re-deny of
// root(b)/node_modules.
func sandboxProfile(cfg pathscheme.Config, b *forge.Build) string {
	var sb strings.Builder

	sb.WriteString("(version 1)\n")
	sb.WriteString("(allow process-fork)\n")
	sb.WriteString("(allow file-read*)\n")
	sb.WriteString("(deny file-write*)\n")
	fmt.Fprintf(&sb, "(allow file-write* (literal %q))\n", "/dev/null")
	fmt.Fprintf(&sb, "(allow file-write* (subpath %q))\n", "$TMPDIR")
	fmt.Fprintf(&sb, "(allow file-write* (subpath %q))\n", "$TMPDIR_GLOBAL")
	fmt.Fprintf(&sb, "(allow file-write* (subpath %q))\n", cfg.Root(b))
	fmt.Fprintf(&sb, "(allow file-write* (subpath %q))\n", cfg.Build(b))
	fmt.Fprintf(&sb, "(allow file-write* (subpath %q))\n", cfg.Install(b))
	fmt.Fprintf(&sb, "(deny file-write* (subpath %q))\n", filepath.Join(cfg.Root(b), "node_modules"))

	return sb.String()
}

// buildMakefile renders the top-level Makefile (spec.md §4.5/§4.6).
func buildMakefile(cfg pathscheme.Config, sandbox *forge.BuildSandbox, builds []*forge.Build) string {
	var items []Item

	items = append(items,
		Raw(`SHELL := env -i /bin/bash --norc --noprofile`),
		Raw(`ESY_EJECT__ROOT := $(CURDIR)`),
		Raw(`ESY_EJECT__STORE ?= $(HOME)/.esy`),
		Raw(`ESY_EJECT__SANDBOX ?= $(CURDIR)`),
		Raw(`export ESY_EJECT__ROOT ESY_EJECT__STORE ESY_EJECT__SANDBOX`),
	)

	items = append(items, Rule{
		Target:   "build",
		Deps:     []string{normalize(rootTarget(builds)).buildTarget()},
		Commands: nil,
		Phony:    true,
	})
	items = append(items, Rule{
		Target:   "build-shell",
		Deps:     []string{normalize(rootTarget(builds)).shellTarget()},
		Phony:    true,
	})
	items = append(items, Rule{
		Target:   "clean",
		Commands: []string{`rm -rf "$(ESY_EJECT__STORE)/_build" "$(ESY_EJECT__STORE)/_insttmp" "$(ESY_EJECT__STORE)/_install"`},
		Phony:    true,
	})

	items = append(items, Rule{
		Target: "esy-store",
		Commands: []string{
			`mkdir -p "$(ESY_EJECT__STORE)/_build" "$(ESY_EJECT__STORE)/_insttmp" "$(ESY_EJECT__STORE)/_install"`,
			`mkdir -p "$(ESY_EJECT__SANDBOX)/_esy/store/_build" "$(ESY_EJECT__SANDBOX)/_esy/store/_insttmp" "$(ESY_EJECT__SANDBOX)/_esy/store/_install"`,
		},
		Phony: true,
	})
	items = append(items, Rule{
		Target:   "esy-root",
		Commands: []string{`$(CC) -O2 -o "$(ESY_EJECT__ROOT)/bin/realpath" "$(ESY_EJECT__ROOT)/bin/realpath.c"`},
		Phony:    true,
	})

	for _, b := range builds {
		items = append(items, buildItemsFor(cfg, b)...)
	}

	return Write(items)
}

// rootTarget picks the last element of builds (post-order DFS puts the root
// last).
func rootTarget(builds []*forge.Build) *forge.Build {
	return builds[len(builds)-1]
}

func (b normalizedName) buildTarget() string { return string(b) + ".build" }
func (b normalizedName) shellTarget() string { return string(b) + ".shell" }

type normalizedName string

func normalize(b *forge.Build) normalizedName {
	return normalizedName(pathscheme.Normalize(b.Name))
}

// buildItemsFor emits one build's shell_env_for__* define plus its
// <name>.build/.shell/.clean targets.
func buildItemsFor(cfg pathscheme.Config, b *forge.Build) []Item {
	name := normalize(b)
	ejectDir := filepath.Join(b.SourcePath)

	commands := strings.Join(b.Command, " && ")
	if commands == "" {
		commands = "true"
	}

	buildType := "out-of-source"
	if b.MutatesSourcePath {
		buildType = "in-source"
	}

	define := Define{
		Name: "shell_env_for__" + string(name),
		Segments: []DefineSegment{
			{Pairs: []KV{
				Str("ESY_EJECT__ROOT", "$(ESY_EJECT__ROOT)"),
				Str("ESY_EJECT__STORE", "$(ESY_EJECT__STORE)"),
				Str("ESY_EJECT__SANDBOX", "$(ESY_EJECT__SANDBOX)"),
			}},
			{Line: fmt.Sprintf(`. "$(ESY_EJECT__ROOT)/%s/eject-env"`, ejectDir)},
			{Pairs: []KV{
				Str("esy_build__eject", "$(ESY_EJECT__ROOT)/"+ejectDir),
				Str("esy_build__type", buildType),
				Str("esy_build__key", string(b.ID)),
				Str("esy_build__command", commands),
				Str("esy_build__source_root", cfg.Source(b)),
				Str("esy_build__install", cfg.FinalInstall(b)),
			}},
		},
	}

	var depTargets []string
	for _, dep := range b.Dependencies {
		depTargets = append(depTargets, normalize(dep).buildTarget())
	}

	deps := append([]string{"esy-store", "esy-root"}, depTargets...)

	buildRule := Rule{
		Target:   name.buildTarget(),
		Deps:     deps,
		Commands: []string{fmt.Sprintf(`bash -c '$(shell_env_for__%s) "$(ESY_EJECT__ROOT)/bin/runtime.sh" build'`, name)},
		Phony:    true,
	}

	shellRule := Rule{
		Target:   name.shellTarget(),
		Deps:     []string{"esy-store", "esy-root"},
		Commands: []string{fmt.Sprintf(`bash -c '$(shell_env_for__%s) "$(ESY_EJECT__ROOT)/bin/runtime.sh" shell'`, name)},
		Phony:    true,
	}

	cleanRule := Rule{
		Target:   name.buildTarget()[:len(name.buildTarget())-len(".build")] + ".clean",
		Commands: []string{fmt.Sprintf(`bash -c '$(shell_env_for__%s) "$(ESY_EJECT__ROOT)/bin/runtime.sh" clean'`, name)},
		Phony:    true,
	}

	return []Item{define, buildRule, shellRule, cleanRule}
}
