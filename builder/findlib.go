package builder

import (
	"fmt"
	"strings"

	"github.com/forgebuild/forge"
	"github.com/forgebuild/forge/graph"
	"github.com/forgebuild/forge/pathscheme"
)

// FindlibConf renders the findlib.conf text for b under cfg (spec.md §4.4
// step 6). It is shared between the in-process builder (writing to
// build(b)/_esy/findlib.conf with real paths) and the ejecting builder
// (writing findlib.conf.in with $ESY_EJECT__* placeholder paths), since
// both are pure functions of (cfg, b) and cfg is the only thing that
// differs between the two back-ends (see pathscheme.Config vs
// pathscheme.EjectConfig).
func FindlibConf(cfg pathscheme.Config, b *forge.Build) string {
	selfLib := cfg.Install(b, "lib")

	var libs []string
	for _, dep := range graph.DepsPostOrder(b) {
		libs = append(libs, cfg.FinalInstall(dep, "lib"))
	}

	libs = append(libs, selfLib)

	var sb strings.Builder

	fmt.Fprintf(&sb, "path = %q\n", strings.Join(libs, ":"))
	fmt.Fprintf(&sb, "destdir = %q\n", selfLib)
	fmt.Fprintf(&sb, "ldconf = %q\n", "ignore")
	fmt.Fprintf(&sb, "ocamlc = %q\n", "ocamlc.opt")
	fmt.Fprintf(&sb, "ocamldep = %q\n", "ocamldep.opt")
	fmt.Fprintf(&sb, "ocamldoc = %q\n", "ocamldoc.opt")
	fmt.Fprintf(&sb, "ocamllex = %q\n", "ocamllex.opt")
	fmt.Fprintf(&sb, "ocamlopt = %q\n", "ocamlopt.opt")

	return sb.String()
}
