package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "manifest.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

const diamondManifest = `{
  // a demo sandbox: root depends on leaf
  "root": "sha256:ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb",
  "env": [{"name": "CI", "value": "true"}],
  "builds": [
    {"id": "sha256:9f91161f43433e49a6de6db680d79f60159f2e4ac9172621a12846428158440b", "name": "leaf", "sourcePath": "leaf", "shouldBePersisted": true},
    {
      "id": "sha256:ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb", "name": "a", "sourcePath": "a", "shouldBePersisted": true,
      "dependencies": ["sha256:9f91161f43433e49a6de6db680d79f60159f2e4ac9172621a12846428158440b"], "command": ["make"],
      "exportedEnv": {"PATH": {"value": "$cur__install/bin", "scope": "global"}}
    }
  ]
}`

func TestLoadSandbox_ResolvesDependenciesAndEnv(t *testing.T) {
	path := writeManifest(t, diamondManifest)

	sandbox, err := LoadSandbox(path)
	require.NoError(t, err)

	require.Equal(t, "a", sandbox.Root.Name)
	require.Len(t, sandbox.Root.Dependencies, 1)
	require.Equal(t, "leaf", sandbox.Root.Dependencies[0].Name)

	require.Len(t, sandbox.Env, 1)
	require.Equal(t, "CI", sandbox.Env[0].Name)
	require.Equal(t, "true", *sandbox.Env[0].Value)

	exp, ok := sandbox.Root.ExportedEnv["PATH"]
	require.True(t, ok)
	require.Equal(t, "$cur__install/bin", exp.Value)
}

func TestLoadSandbox_UnknownRootIsError(t *testing.T) {
	path := writeManifest(t, `{"root": "missing", "builds": []}`)

	_, err := LoadSandbox(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "root id")
}

func TestLoadSandbox_UnknownDependencyIsError(t *testing.T) {
	path := writeManifest(t, `{
		"root": "a",
		"builds": [{"id": "a", "name": "a", "sourcePath": "a", "dependencies": ["ghost"]}]
	}`)

	_, err := LoadSandbox(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown id")
}

func TestLoadSandbox_DuplicateIDIsError(t *testing.T) {
	path := writeManifest(t, `{
		"root": "a",
		"builds": [
			{"id": "a", "name": "a", "sourcePath": "a"},
			{"id": "a", "name": "a2", "sourcePath": "a2"}
		]
	}`)

	_, err := LoadSandbox(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate build id")
}

func TestLoadSandbox_AcceptsHujsonComments(t *testing.T) {
	path := writeManifest(t, `{
		// trailing comma and comment, valid hujson not valid json
		"root": "a",
		"builds": [{"id": "a", "name": "a", "sourcePath": "a",},],
	}`)

	_, err := LoadSandbox(path)
	require.NoError(t, err)
}

func TestApplyCLIOverrides_OnlyChangedFlagsOverride(t *testing.T) {
	cfg := RunConfig{StorePath: "/default/store", SandboxPath: "/default/sandbox", Parallel: 1, Dev: false}

	flags := newCommonFlagSet("test")
	flags.IntP("parallel", "p", 1, "")
	require.NoError(t, flags.Parse([]string{"--store=/custom/store"}))

	require.NoError(t, applyCLIOverrides(&cfg, flags))

	require.Equal(t, "/custom/store", cfg.StorePath)
	require.Equal(t, "/default/sandbox", cfg.SandboxPath)
	require.Equal(t, 1, cfg.Parallel)
	require.False(t, cfg.Dev)
}

func TestApplyCLIOverrides_DevFlag(t *testing.T) {
	cfg := RunConfig{Parallel: 1}

	flags := newCommonFlagSet("test")
	flags.IntP("parallel", "p", 1, "")
	require.NoError(t, flags.Parse([]string{"--dev"}))

	require.NoError(t, applyCLIOverrides(&cfg, flags))

	require.True(t, cfg.Dev)
}

func TestDefaultRunConfig_SequentialProductionDefaults(t *testing.T) {
	cfg, err := DefaultRunConfig()
	require.NoError(t, err)

	require.Equal(t, 1, cfg.Parallel)
	require.False(t, cfg.Dev)
	require.NotEmpty(t, cfg.StorePath)
	require.NotEmpty(t, cfg.SandboxPath)
}
