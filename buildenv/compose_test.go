package buildenv_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge"
	"github.com/forgebuild/forge/buildenv"
	"github.com/forgebuild/forge/pathscheme"
)

func cfg() pathscheme.Config {
	return pathscheme.Config{StorePath: "/store", SandboxPath: "/sandbox"}
}

func TestCompose_GroupOrder(t *testing.T) {
	leaf := &forge.Build{
		ID:                digest.Digest("sha256:leaf"),
		Name:              "leaf",
		SourcePath:        "pkgs/leaf",
		ShouldBePersisted: true,
		ExportedEnv: map[string]forge.ExportedEnv{
			"LEAF_HOME": {Value: "$cur__install", Scope: forge.ScopeGlobal},
		},
	}

	self := &forge.Build{
		ID:                digest.Digest("sha256:self"),
		Name:              "self",
		SourcePath:        "pkgs/self",
		ShouldBePersisted: true,
		Dependencies:      []*forge.Build{leaf},
		ExportedEnv: map[string]forge.ExportedEnv{
			"SELF_VAR": {Value: "local-value"},
		},
	}

	env, err := buildenv.Compose(cfg(), self, []forge.EnvVar{forge.Str("SANDBOX_VAR", "sandbox-value")})
	require.NoError(t, err)

	require.Len(t, env.Groups, 4)
	require.Equal(t, "builtins", env.Groups[0].Source)
	require.Equal(t, "sandbox", env.Groups[1].Source)
	require.Equal(t, string(leaf.ID), env.Groups[2].Source)
	require.Equal(t, string(self.ID), env.Groups[3].Source)

	require.Equal(t, "SANDBOX_VAR", env.Groups[1].Exports[0].Name)
	require.Equal(t, "sandbox-value", env.Groups[1].Exports[0].Value)

	require.Equal(t, "LEAF_HOME", env.Groups[2].Exports[0].Name)
	require.Equal(t, cfg().FinalInstall(leaf), env.Groups[2].Exports[0].Value, "$cur__install substitutes to the exporting build's own FinalInstall")
}

func TestCompose_DiamondDedupesGlobalExports(t *testing.T) {
	leaf := &forge.Build{
		ID:                digest.Digest("sha256:l"),
		Name:              "l",
		ShouldBePersisted: true,
		ExportedEnv: map[string]forge.ExportedEnv{
			"L_HOME": {Value: "v", Scope: forge.ScopeGlobal},
		},
	}
	a := &forge.Build{ID: digest.Digest("sha256:a"), Name: "a", ShouldBePersisted: true, Dependencies: []*forge.Build{leaf}}
	b := &forge.Build{ID: digest.Digest("sha256:b"), Name: "b", ShouldBePersisted: true, Dependencies: []*forge.Build{leaf}}
	root := &forge.Build{ID: digest.Digest("sha256:r"), Name: "r", ShouldBePersisted: true, Dependencies: []*forge.Build{a, b}}

	env, err := buildenv.Compose(cfg(), root, nil)
	require.NoError(t, err)

	count := 0

	for _, g := range env.Groups {
		for _, e := range g.Exports {
			if e.Name == "L_HOME" {
				count++
			}
		}
	}

	require.Equal(t, 1, count, "L's global export must appear exactly once despite two incoming edges")
}

func TestCompose_ExclusiveClash(t *testing.T) {
	a := &forge.Build{
		ID: digest.Digest("sha256:a"), Name: "a", ShouldBePersisted: true,
		ExportedEnv: map[string]forge.ExportedEnv{
			"SHARED": {Value: "a-value", Scope: forge.ScopeGlobal, Exclusive: true},
		},
	}
	b := &forge.Build{
		ID: digest.Digest("sha256:b"), Name: "b", ShouldBePersisted: true,
		ExportedEnv: map[string]forge.ExportedEnv{
			"SHARED": {Value: "b-value", Scope: forge.ScopeGlobal, Exclusive: true},
		},
	}
	root := &forge.Build{ID: digest.Digest("sha256:r"), Name: "r", ShouldBePersisted: true, Dependencies: []*forge.Build{a, b}}

	_, err := buildenv.Compose(cfg(), root, nil)
	require.Error(t, err)

	var conflict *forge.ExportConflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "SHARED", conflict.Name)
}

func TestCompose_BuiltinNameCollisionRejected(t *testing.T) {
	b := &forge.Build{
		ID: digest.Digest("sha256:b"), Name: "b", ShouldBePersisted: true,
		ExportedEnv: map[string]forge.ExportedEnv{
			"TMPDIR": {Value: "/nope"},
		},
	}

	_, err := buildenv.Compose(cfg(), b, nil)
	require.Error(t, err)

	var conflict *forge.ExportConflict
	require.ErrorAs(t, err, &conflict)
	require.True(t, conflict.IsBuiltin)
}

func TestCompose_PathLikeAccumulatesAcrossGroups(t *testing.T) {
	leaf := &forge.Build{
		ID:                digest.Digest("sha256:leaf"),
		Name:              "leaf",
		ShouldBePersisted: true,
		ExportedEnv: map[string]forge.ExportedEnv{
			"PATH": {Value: "$cur__install/bin", Scope: forge.ScopeGlobal},
		},
	}

	self := &forge.Build{
		ID:                digest.Digest("sha256:self"),
		Name:              "self",
		ShouldBePersisted: true,
		Dependencies:      []*forge.Build{leaf},
		ExportedEnv: map[string]forge.ExportedEnv{
			"PATH": {Value: "$cur__install/bin"},
		},
	}

	env, err := buildenv.Compose(cfg(), self, nil)
	require.NoError(t, err)

	var values []string
	for _, g := range env.Groups {
		for _, e := range g.Exports {
			if e.Name == "PATH" {
				values = append(values, e.Value)
			}
		}
	}

	require.Equal(t, []string{
		cfg().FinalInstall(leaf, "bin") + ":$PATH",
		cfg().Install(self, "bin") + ":$PATH",
	}, values, "each PATH contributor must append a reference to the prior value, not overwrite it")
}

func TestCompose_Deterministic(t *testing.T) {
	b := &forge.Build{
		ID: digest.Digest("sha256:b"), Name: "b", Version: "1.0", ShouldBePersisted: true,
		ExportedEnv: map[string]forge.ExportedEnv{
			"Z_VAR": {Value: "z"},
			"A_VAR": {Value: "a"},
			"M_VAR": {Value: "m"},
		},
	}

	first, err := buildenv.Compose(cfg(), b, nil)
	require.NoError(t, err)

	second, err := buildenv.Compose(cfg(), b, nil)
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(first, second), "composing twice over the same inputs must be byte-for-byte identical")
	require.Equal(t, buildenv.Render(first), buildenv.Render(second))
}
