package pathscheme

import "strings"

// Normalize applies the eject-time name-normalization rules (spec.md §4.5)
// used to turn a build's name into a Make-safe identifier:
//
//  1. lower-case
//  2. strip '@'
//  3. double any run of '_' (so "_" -> "__" and "__" -> "____")
//  4. replace '/' with "__slash__"
//  5. replace '.' with "__dot__"
//  6. replace '-' with '_'
//
// The doubling step must run before the later literal-underscore-producing
// replacements, otherwise it would double underscores it just introduced.
func Normalize(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "@", "")
	s = doubleUnderscores(s)
	s = strings.ReplaceAll(s, "/", "__slash__")
	s = strings.ReplaceAll(s, ".", "__dot__")
	s = strings.ReplaceAll(s, "-", "_")

	return s
}

// doubleUnderscores replaces every maximal run of N underscores with a run
// of 2N underscores, in a single left-to-right pass.
func doubleUnderscores(s string) string {
	var sb strings.Builder

	sb.Grow(len(s) * 2)

	for i := 0; i < len(s); i++ {
		sb.WriteByte(s[i])

		if s[i] == '_' {
			sb.WriteByte('_')
		}
	}

	return sb.String()
}
