package pathscheme_test

import (
	"path/filepath"
	"testing"

	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge"
	"github.com/forgebuild/forge/pathscheme"
)

func persistedBuild(id, sourcePath string) *forge.Build {
	return &forge.Build{
		ID:                digest.Digest(id),
		SourcePath:        sourcePath,
		ShouldBePersisted: true,
	}
}

func TestConfig_Paths_Persisted(t *testing.T) {
	cfg := pathscheme.Config{StorePath: "/store", SandboxPath: "/sandbox"}
	b := persistedBuild("sha256:aaaa", "pkgs/a")

	require.Equal(t, filepath.Join("/sandbox", "pkgs/a"), cfg.Source(b))
	require.Equal(t, filepath.Join("/store", "_build", "sha256:aaaa"), cfg.Build(b))
	require.Equal(t, filepath.Join("/store", "_insttmp", "sha256:aaaa"), cfg.Install(b))
	require.Equal(t, filepath.Join("/store", "_install", "sha256:aaaa"), cfg.FinalInstall(b))
}

func TestConfig_Paths_NonPersisted(t *testing.T) {
	cfg := pathscheme.Config{StorePath: "/store", SandboxPath: "/sandbox"}
	b := persistedBuild("sha256:bbbb", "pkgs/dev")
	b.ShouldBePersisted = false

	require.Equal(t, filepath.Join("/sandbox", "_esy", "store", "_install", "sha256:bbbb"), cfg.FinalInstall(b))
}

func TestConfig_Root_MutatesSourcePath(t *testing.T) {
	cfg := pathscheme.Config{StorePath: "/store", SandboxPath: "/sandbox"}
	b := persistedBuild("sha256:cccc", "pkgs/c")

	require.Equal(t, cfg.Source(b), cfg.Root(b), "non-mutating build runs in its source tree")

	b.MutatesSourcePath = true
	require.Equal(t, cfg.Build(b), cfg.Root(b), "mutating build runs in its staged build tree")
}

func TestEjectConfig_UsesPlaceholders(t *testing.T) {
	cfg := pathscheme.EjectConfig()
	b := persistedBuild("sha256:dddd", "pkgs/d")

	require.Contains(t, cfg.FinalInstall(b), "$ESY_EJECT__STORE")
	require.Contains(t, cfg.Source(b), "$ESY_EJECT__SANDBOX")
}

func TestStoreSkeletonDirs(t *testing.T) {
	dirs := pathscheme.StoreSkeletonDirs("/store")
	require.ElementsMatch(t, []string{
		filepath.Join("/store", "_build"),
		filepath.Join("/store", "_insttmp"),
		filepath.Join("/store", "_install"),
	}, dirs)
}
