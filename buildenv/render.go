package buildenv

import "strings"

// Render flattens env into the textual form spec.md §4.2/§6 specifies: one
// `export NAME="VALUE";` line per non-null variable, in composition order.
//
// VALUE is wrapped in double quotes without escaping embedded `"`, `$`,
// backtick, or backslash — a known, deliberately preserved limitation (see
// spec.md §9 "Shell quoting"), since existing stored envs and the ejected
// render-env helper both depend on this exact textual form.
func Render(env Environment) string {
	var sb strings.Builder

	for _, group := range env.Groups {
		for _, exp := range group.Exports {
			sb.WriteString("export ")
			sb.WriteString(exp.Name)
			sb.WriteString(`="`)
			sb.WriteString(exp.Value)
			sb.WriteString("\";\n")
		}
	}

	return sb.String()
}

// FindlibPath returns the `:`-separated findlib search path (spec.md §4.4
// step 6): FinalInstall(d)/lib for every transitive dependency in DFS
// post-order, followed by selfLib last.
func FindlibPath(depLibs []string, selfLib string) string {
	all := make([]string, 0, len(depLibs)+1)
	all = append(all, depLibs...)
	all = append(all, selfLib)

	return strings.Join(all, ":")
}
