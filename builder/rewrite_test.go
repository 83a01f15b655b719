package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewriteInstallPrefix_ReplacesNeedleAcrossLengthMismatch(t *testing.T) {
	dir := t.TempDir()

	needle := filepath.Join(dir, "_insttmp", "abc")
	replacement := filepath.Join(dir, "_install", "abc")

	target := filepath.Join(dir, "bin", "marker")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("prefix="+needle+" suffix\n"), 0o755))

	require.NoError(t, RewriteInstallPrefix(dir, needle, replacement))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Contains(t, string(got), replacement)
	require.NotContains(t, string(got), needle)

	info, err := os.Stat(target)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm(), "file mode must survive the temp-file rewrite")
}

func TestRewriteInstallPrefix_LeavesFilesWithoutNeedleUntouched(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "unrelated.txt")
	require.NoError(t, os.WriteFile(target, []byte("nothing to see here"), 0o644))

	require.NoError(t, RewriteInstallPrefix(dir, filepath.Join(dir, "_insttmp"), filepath.Join(dir, "_install")))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "nothing to see here", string(got))
}

func TestRewriteInstallPrefix_SkipsSymlinks(t *testing.T) {
	dir := t.TempDir()

	needle := filepath.Join(dir, "_insttmp")
	real := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(real, []byte(needle), 0o644))

	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(real, link))

	require.NoError(t, RewriteInstallPrefix(dir, needle, filepath.Join(dir, "_install")))

	target, err := os.Readlink(link)
	require.NoError(t, err)
	require.Equal(t, real, target, "symlink itself must be left untouched")
}
