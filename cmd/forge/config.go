package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/imdario/mergo"
	digest "github.com/opencontainers/go-digest"
	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/forgebuild/forge"
)

// RunConfig holds the settings forge's subcommands need beyond the
// manifest itself: where the store and sandbox live, how many builds may
// run concurrently, and whether to log for humans or machines.
//
// spec.md leaves all of this to the external front-end; this is forge's
// own minimal answer, layered the way the teacher's config.go layers
// built-in defaults under CLI overrides.
type RunConfig struct {
	StorePath   string
	SandboxPath string
	Parallel    int
	Dev         bool
}

// DefaultRunConfig returns forge's built-in defaults: store under
// $HOME/.forge/store, sandbox at the current directory, sequential
// execution, production (JSON) logging.
func DefaultRunConfig() (RunConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return RunConfig{}, fmt.Errorf("resolving home directory: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return RunConfig{}, fmt.Errorf("resolving working directory: %w", err)
	}

	return RunConfig{
		StorePath:   filepath.Join(home, ".forge", "store"),
		SandboxPath: cwd,
		Parallel:    1,
		Dev:         false,
	}, nil
}

// applyCLIOverrides merges flag-supplied values onto cfg, flags taking
// precedence — the same mergo.Merge(&dst, src, mergo.WithOverride) idiom
// jesseduffield-lazydocker uses in pkg/commands/docker.go to layer CLI
// state onto a config struct.
func applyCLIOverrides(cfg *RunConfig, flags *pflag.FlagSet) error {
	var overrides RunConfig

	if flags.Changed("store") {
		overrides.StorePath, _ = flags.GetString("store")
	}

	if flags.Changed("sandbox") {
		overrides.SandboxPath, _ = flags.GetString("sandbox")
	}

	if flags.Changed("parallel") {
		overrides.Parallel, _ = flags.GetInt("parallel")
	}

	if flags.Changed("dev") {
		overrides.Dev, _ = flags.GetBool("dev")
	}

	if err := mergo.Merge(cfg, overrides, mergo.WithOverride); err != nil {
		return fmt.Errorf("applying CLI overrides: %w", err)
	}

	return nil
}

// manifestDoc is the demo/test manifest format LoadSandbox reads: a flat
// list of builds referencing each other by id, plus the sandbox's global
// env and which build is the root. This is not a package-manifest
// language — spec.md §1 explicitly puts manifest parsing out of scope —
// it exists only so cmd/forge has something to build from.
type manifestDoc struct {
	Env    []manifestEnvVar  `json:"env,omitempty"`
	Root   string            `json:"root"`
	Builds []manifestBuild   `json:"builds"`
}

type manifestEnvVar struct {
	Name  string  `json:"name"`
	Value *string `json:"value"`
}

type manifestExportedEnv struct {
	Value     string `json:"value"`
	Scope     string `json:"scope,omitempty"`
	Exclusive bool   `json:"exclusive,omitempty"`
	Builtin   bool   `json:"builtin,omitempty"`
}

type manifestBuild struct {
	ID                string                          `json:"id"`
	Name              string                          `json:"name"`
	Version           string                          `json:"version"`
	Command           []string                        `json:"command,omitempty"`
	ExportedEnv       map[string]manifestExportedEnv   `json:"exportedEnv,omitempty"`
	SourcePath        string                           `json:"sourcePath"`
	MutatesSourcePath bool                             `json:"mutatesSourcePath,omitempty"`
	ShouldBePersisted bool                             `json:"shouldBePersisted,omitempty"`
	Dependencies      []string                         `json:"dependencies,omitempty"`
	Errors            []string                         `json:"errors,omitempty"`
}

// LoadSandbox reads a hujson (JSON-with-comments) manifest from path and
// resolves it into a [forge.BuildSandbox]. Both .json and .jsonc content
// are accepted, exactly as the teacher's parseConfigFile does for its own
// config files.
func LoadSandbox(path string) (*forge.BuildSandbox, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	var doc manifestDoc

	decoder := json.NewDecoder(bytes.NewReader(standardized))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	return resolveSandbox(doc)
}

func resolveSandbox(doc manifestDoc) (*forge.BuildSandbox, error) {
	builds := make(map[string]*forge.Build, len(doc.Builds))

	for _, mb := range doc.Builds {
		if _, dup := builds[mb.ID]; dup {
			return nil, fmt.Errorf("manifest: duplicate build id %q", mb.ID)
		}

		builds[mb.ID] = &forge.Build{
			ID:                digest.Digest(mb.ID),
			Name:              mb.Name,
			Version:           mb.Version,
			Command:           mb.Command,
			ExportedEnv:       resolveExportedEnv(mb.ExportedEnv),
			SourcePath:        mb.SourcePath,
			MutatesSourcePath: mb.MutatesSourcePath,
			ShouldBePersisted: mb.ShouldBePersisted,
			Errors:            mb.Errors,
		}
	}

	for _, mb := range doc.Builds {
		b := builds[mb.ID]
		for _, depID := range mb.Dependencies {
			dep, ok := builds[depID]
			if !ok {
				return nil, fmt.Errorf("manifest: build %q depends on unknown id %q", mb.ID, depID)
			}

			b.Dependencies = append(b.Dependencies, dep)
		}
	}

	root, ok := builds[doc.Root]
	if !ok {
		return nil, fmt.Errorf("manifest: root id %q not found among builds", doc.Root)
	}

	env := make([]forge.EnvVar, 0, len(doc.Env))
	for _, e := range doc.Env {
		env = append(env, forge.EnvVar{Name: e.Name, Value: e.Value})
	}

	return &forge.BuildSandbox{Env: env, Root: root}, nil
}

func resolveExportedEnv(m map[string]manifestExportedEnv) map[string]forge.ExportedEnv {
	if len(m) == 0 {
		return nil
	}

	out := make(map[string]forge.ExportedEnv, len(m))

	for name, e := range m {
		out[name] = forge.ExportedEnv{
			Value:     e.Value,
			Scope:     forge.Scope(e.Scope),
			Exclusive: e.Exclusive,
			Builtin:   e.Builtin,
		}
	}

	return out
}
