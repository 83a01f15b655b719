package pathscheme_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/pathscheme"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "MyPkg", "mypkg"},
		{"strips-at", "@scope/pkg", "scope__slash__pkg"},
		{"doubles-underscore", "a_b", "a__b"},
		{"slash", "a/b", "a__slash__b"},
		{"dot", "a.b", "a__dot__b"},
		{"dash", "a-b", "a_b"},
		{"combined", "@Foo/Bar-Baz.Qux", "foo__slash__bar_baz__dot__qux"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, pathscheme.Normalize(tc.in))
		})
	}
}

func TestNormalize_NotIdempotentOnAlreadyNormalized(t *testing.T) {
	once := pathscheme.Normalize("my-package@1")
	twice := pathscheme.Normalize(once)

	require.NotEqual(t, once, twice, "doubling underscores is not idempotent, by design")
}
